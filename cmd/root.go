package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thingsql/thingsql/config"
	"github.com/thingsql/thingsql/iot"
	"github.com/thingsql/thingsql/logs"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "thingsql",
	Short: "Query the AWS IoT Core registry as relational tables",
	Example: `thingsql scan aws_things
thingsql scan aws_things --where "thing_type_name = 'sensor'" --limit 10
thingsql describe aws_thing_groups
thingsql explain aws_thing_groups --where "thing_group_name LIKE 'plant-%'"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := logs.InitializeFileLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "couldn't initialize logger: %s\n", err)
		os.Exit(1)
	}
	defer logs.CloseLogger()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file path (default ~/.thingsql/config.yml)")
}

func newClient() (*iot.Client, error) {
	cfg, err := config.Read(configPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't read config: %w", err)
	}

	credentials := &iot.StaticCredentials{
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Region:    cfg.Region,
	}
	return iot.NewClient(iot.ClientOptions{
		Endpoint:       cfg.Endpoint,
		DataEndpoint:   cfg.DataEndpoint,
		MaxResults:     cfg.MaxResults,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: cfg.RequestTimeout(),
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	}, credentials), nil
}
