// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP (optional; empty URL disables the cascade queue)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Media host (optional; empty URL disables image uploads)
	MediaUploadURL string

	// Cascade
	CascadeBatchSize      int
	CascadeResumeInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledger.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "wallet_cascade"),

		MediaUploadURL: getEnv("MEDIA_UPLOAD_URL", ""),

		CascadeBatchSize:      getEnvInt("CASCADE_BATCH_SIZE", 50),
		CascadeResumeInterval: getEnvDuration("CASCADE_RESUME_INTERVAL", 5*time.Minute),
	}
}

// Validate returns an error describing every invalid field.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %q is not a valid port", c.Port))
	}
	if c.SQLiteDBPath == "" {
		problems = append(problems, "SQLITE_DB_PATH must not be empty")
	}
	if c.CascadeBatchSize < 1 {
		problems = append(problems, "CASCADE_BATCH_SIZE must be at least 1")
	}
	if c.AMQPURL != "" && !strings.HasPrefix(c.AMQPURL, "amqp://") && !strings.HasPrefix(c.AMQPURL, "amqps://") {
		problems = append(problems, fmt.Sprintf("AMQP_URL %q must start with amqp:// or amqps://", c.AMQPURL))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
