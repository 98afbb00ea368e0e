package config

import (
	"os"
	"path/filepath"
)

// OncalPath returns the root directory for oncal data.
// It uses $ONCAL_PATH if set, otherwise defaults to ~/.oncal.
func OncalPath() string {
	if v := os.Getenv("ONCAL_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".oncal")
	}
	return filepath.Join(home, ".oncal")
}

// ConfigPath returns the path to the oncal config file.
func ConfigPath() string {
	return filepath.Join(OncalPath(), "config.jsonc")
}

// DotenvPath returns the path to the oncal .env file.
func DotenvPath() string {
	return filepath.Join(OncalPath(), ".env")
}
