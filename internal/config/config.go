package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultSnapshotCron = "CRON_TZ=Europe/Berlin 55 23 * * *"

// Config holds application configuration
type Config struct {
	Store       string // postgres, sqlite or memory
	DatabaseURL string
	SqlitePath  string
	Port        int

	LogLevel  string
	LogPretty bool

	SnapshotEnabled bool
	SnapshotCron    string

	QuoteTTL                time.Duration
	ValueAtCostWhenUnquoted bool

	RateLimitRPS   float64
	RateLimitBurst int
	CorsOrigins    []string
}

// Load reads configuration from environment variables, after a .env file
// in the working directory if there is one.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Store:                   strings.ToLower(getEnv("FOLIO_STORE", "sqlite")),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		SqlitePath:              getEnv("FOLIO_SQLITE_PATH", "./data/folio.db"),
		Port:                    getEnvAsInt("FOLIO_PORT", 8080),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogPretty:               getEnvAsBool("LOG_PRETTY", false),
		SnapshotEnabled:         getEnvAsBool("SNAPSHOT_ENABLED", true),
		SnapshotCron:            getEnv("SNAPSHOT_CRON", DefaultSnapshotCron),
		QuoteTTL:                getEnvAsDuration("QUOTE_TTL", 15*time.Minute),
		ValueAtCostWhenUnquoted: getEnvAsBool("VALUE_AT_COST_WHEN_UNQUOTED", true),
		RateLimitRPS:            getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:          getEnvAsInt("RATE_LIMIT_BURST", 40),
		CorsOrigins:             getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.Store {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case "sqlite":
		if c.SqlitePath == "" {
			return fmt.Errorf("FOLIO_SQLITE_PATH is required for the sqlite store")
		}
	case "memory":
	default:
		return fmt.Errorf("FOLIO_STORE %q is not one of postgres, sqlite, memory", c.Store)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("FOLIO_PORT %d out of range", c.Port)
	}
	if c.SnapshotEnabled && c.SnapshotCron == "" {
		return fmt.Errorf("SNAPSHOT_CRON is required when snapshots are enabled")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
