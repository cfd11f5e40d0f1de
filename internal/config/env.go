package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; the first one present wins.
var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads environment variables from the first .env file found.
// Existing process environment variables are not overwritten.
func loadEnvFile() {
	for _, p := range envFiles {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("Failed to load env file", "path", p, "error", err)
			return
		}
		slog.Debug("Loaded environment variables", "path", p)
		return
	}
}
