// Package config provides configuration loading from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// StorageBackend represents the storage implementation type.
type StorageBackend string

const (
	// StorageMemory uses in-memory storage (for development/testing).
	StorageMemory StorageBackend = "memory"
	// StoragePostgres uses PostgreSQL storage (for production).
	StoragePostgres StorageBackend = "postgres"
)

// Base contains common configuration shared by every aicore entry point.
type Base struct {
	// Service identification
	ServiceName string
	Environment string // development, staging, production
	Version     string

	// Storage backend for call outcomes
	StorageBackend StorageBackend

	// Database (used when StorageBackend is "postgres")
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (budget counters)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Observability
	OTLPEndpoint string
	LogLevel     string
	LogFormat    string // json, text

	// Tracing
	TracingEnabled  bool
	TracingSampling float64
}

// Load loads base configuration from environment variables.
func Load(serviceName string) (*Base, error) {
	cfg := &Base{
		ServiceName: serviceName,
		Environment: Env("STACKSOS_ENV", "development"),
		Version:     Env("STACKSOS_VERSION", "dev"),

		StorageBackend: parseStorageBackend(Env("STACKSOS_STORAGE_BACKEND", "memory")),

		DBHost:     Env("STACKSOS_DB_HOST", "localhost"),
		DBPort:     EnvInt("STACKSOS_DB_PORT", 5432),
		DBUser:     Env("STACKSOS_DB_USER", "stacksos"),
		DBPassword: Env("STACKSOS_DB_PASSWORD", ""),
		DBName:     Env("STACKSOS_DB_NAME", "stacksos"),
		DBSSLMode:  Env("STACKSOS_DB_SSLMODE", "disable"),

		RedisAddr:     Env("STACKSOS_REDIS_ADDR", "localhost:6379"),
		RedisPassword: Env("STACKSOS_REDIS_PASSWORD", ""),
		RedisDB:       EnvInt("STACKSOS_REDIS_DB", 0),

		OTLPEndpoint: Env("STACKSOS_OTLP_ENDPOINT", "localhost:4317"),
		LogLevel:     Env("STACKSOS_LOG_LEVEL", "info"),
		LogFormat:    Env("STACKSOS_LOG_FORMAT", "json"),

		TracingEnabled:  EnvBool("STACKSOS_TRACING_ENABLED", false),
		TracingSampling: EnvFloat("STACKSOS_TRACING_SAMPLING", 1.0),
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Base) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// IsDevelopment returns true if running in development mode.
func (c *Base) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Base) IsProduction() bool {
	return c.Environment == "production"
}

// UseMemoryStorage returns true if using in-memory storage.
func (c *Base) UseMemoryStorage() bool {
	return c.StorageBackend == StorageMemory
}

// UsePostgresStorage returns true if using PostgreSQL storage.
func (c *Base) UsePostgresStorage() bool {
	return c.StorageBackend == StoragePostgres
}

func parseStorageBackend(s string) StorageBackend {
	switch s {
	case "postgres", "postgresql", "pg":
		return StoragePostgres
	default:
		return StorageMemory
	}
}

// Env returns the value of an environment variable, or a default if unset.
func Env(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// EnvInt parses an integer environment variable, falling back to the
// default when unset or malformed.
func EnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// EnvBool parses a boolean environment variable, falling back to the
// default when unset or malformed.
func EnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// EnvFloat parses a float environment variable, falling back to the
// default when unset or malformed.
func EnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// EnvDuration parses a duration environment variable, falling back to
// the default when unset or malformed.
func EnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
