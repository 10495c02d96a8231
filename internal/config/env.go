package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// envFiles are loaded in order; values already present in the process
// environment are never overwritten.
var envFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads the .env files present in the working directory.
// It returns the files that were loaded.
func LoadEnvFiles() []string {
	var loaded []string
	for _, name := range envFiles {
		err := godotenv.Load(name)
		switch {
		case err == nil:
			loaded = append(loaded, name)
			slog.Debug("Loaded environment variables", "path", name)
		case errors.Is(err, fs.ErrNotExist):
		default:
			slog.Warn("Failed to load env file", "path", name, "error", err)
		}
	}
	return loaded
}
