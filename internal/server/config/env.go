package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	envPrefix = "campusvault"
	// envFileVar names a dotenv file to load; ".env" is tried otherwise.
	envFileVar = "CAMPUSVAULT_ENV_FILE"
)

// parseEnv loads the dotenv file, if present, and overlays CAMPUSVAULT_*
// variables. Variables already set in the process win over the file, and
// unset variables leave the current value alone.
func parseEnv(config *Config) error {
	path, explicit := os.LookupEnv(envFileVar)
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	if err := envconfig.Process(envPrefix, config); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
