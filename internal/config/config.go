package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries service configuration, sourced from the environment with an
// optional .env file for local development.
type Config struct {
	// HTTP server
	Port string

	// Database; empty selects the in-memory store.
	DatabaseURL string

	// Display currency for formatted amounts (ISO 4217).
	Currency string

	// Full-scan page size for recalculation and index migration.
	RebuildBatchSize int

	// Actor IDs allowed to mutate the wallet; empty allows all.
	WalletWriters []string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Currency:         strings.ToUpper(getEnv("CURRENCY", "INR")),
		RebuildBatchSize: getEnvInt("REBUILD_BATCH_SIZE", 500),
		WalletWriters:    splitList(os.Getenv("WALLET_WRITERS")),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}
}

// Validate returns an error describing every invalid field.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if len(c.Currency) != 3 {
		problems = append(problems, fmt.Sprintf("invalid currency '%s': expected a 3-letter code", c.Currency))
	}

	if c.RebuildBatchSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid rebuild batch size %d: must be at least 1", c.RebuildBatchSize))
	} else if c.RebuildBatchSize > 10000 {
		problems = append(problems, fmt.Sprintf("invalid rebuild batch size %d: must be at most 10000", c.RebuildBatchSize))
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be json or text", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
