package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ThingsqlHomeDir is the per-user directory for configuration and logs.
var ThingsqlHomeDir = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".thingsql"
	}
	return filepath.Join(home, ".thingsql")
}()

type Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	DataEndpoint string `yaml:"dataEndpoint"`
	AccessKey    string `yaml:"accessKey"`
	SecretKey    string `yaml:"secretKey"`

	MaxResults int     `yaml:"maxResults"`
	MaxRetries int     `yaml:"maxRetries"`
	Timeout    string  `yaml:"timeout"`
	RateLimit  float64 `yaml:"rateLimit"`
	RateBurst  int     `yaml:"rateBurst"`
}

// Read loads the configuration file, falling back to defaults and
// environment variables. An empty path means the default location; a
// missing default file is not an error.
func Read(path string) (*Config, error) {
	usingDefaultPath := path == ""
	if usingDefaultPath {
		path = filepath.Join(ThingsqlHomeDir, "config.yml")
	}

	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		if !(usingDefaultPath && os.IsNotExist(err)) {
			return nil, errors.Wrap(err, "couldn't open configuration file")
		}
	} else {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, errors.Wrap(err, "couldn't decode yaml configuration")
		}
	}

	cfg.applyEnvironment()
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyEnvironment() {
	if value := os.Getenv("THINGSQL_REGION"); value != "" {
		cfg.Region = value
	}
	if value := os.Getenv("THINGSQL_ACCESS_KEY"); value != "" {
		cfg.AccessKey = value
	}
	if value := os.Getenv("THINGSQL_SECRET_KEY"); value != "" {
		cfg.SecretKey = value
	}
}

func (cfg *Config) fillDefaults() error {
	if cfg.Region == "" && cfg.Endpoint == "" {
		return errors.Errorf("region is required when no endpoint is configured")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = fmt.Sprintf("https://iot.%s.amazonaws.com", cfg.Region)
	}
	if cfg.DataEndpoint == "" {
		if cfg.Region == "" {
			cfg.DataEndpoint = cfg.Endpoint
		} else {
			cfg.DataEndpoint = fmt.Sprintf("https://data-ats.iot.%s.amazonaws.com", cfg.Region)
		}
	}
	if cfg.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			return errors.Wrapf(err, "couldn't parse timeout %s", cfg.Timeout)
		}
	}
	return nil
}

// RequestTimeout returns the parsed timeout, zero when unset.
func (cfg *Config) RequestTimeout() time.Duration {
	if cfg.Timeout == "" {
		return 0
	}
	parsed, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		// Validated in fillDefaults.
		return 0
	}
	return parsed
}
