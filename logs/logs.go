package logs

import (
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/thingsql/thingsql/config"
)

var output *os.File

// InitializeFileLogger redirects the standard logger into
// ~/.thingsql/logs.txt so CLI output stays clean.
func InitializeFileLogger() error {
	if err := os.MkdirAll(config.ThingsqlHomeDir, 0755); err != nil {
		return errors.Wrap(err, "couldn't create ~/.thingsql home directory")
	}
	path := filepath.Join(config.ThingsqlHomeDir, "logs.txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "couldn't open logs file")
	}
	output = f
	log.SetOutput(output)
	return nil
}

func CloseLogger() {
	if output != nil {
		output.Close()
	}
}
