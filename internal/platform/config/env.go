package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DotEnvPathVar names the variable that overrides which dotenv file is read.
const DotEnvPathVar = "SHAREDCART_ENV_FILE"

const defaultDotEnvPath = ".env"

// ParseEnv loads configuration from environment variables.
//
// A dotenv file is read first when present. Variables already set in the
// process environment are never overwritten by the file.
func ParseEnv(target any) error {
	if err := LoadDotEnv(); err != nil {
		return err
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv reads the dotenv file named by SHAREDCART_ENV_FILE, or ".env".
// A missing file is not an error.
func LoadDotEnv() error {
	path := strings.TrimSpace(os.Getenv(DotEnvPathVar))
	if path == "" {
		path = defaultDotEnvPath
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load dotenv %s: %w", path, err)
	}
	return nil
}
