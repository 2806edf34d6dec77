// Package config loads process configuration for the flowgraph binaries
// from the environment and an optional .env file.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// History backends.
const (
	HistoryMemory   = "memory"
	HistorySQLite   = "sqlite"
	HistoryPostgres = "postgres"
)

// Config holds all configuration for the server
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Engine   EngineConfig
	History  HistoryConfig
	Workflow WorkflowConfig
}

type ServerConfig struct {
	Addr           string        `validate:"required"`
	RequestTimeout time.Duration `validate:"min=0"`
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error"`
	Format string `validate:"oneof=text json"`
}

type EngineConfig struct {
	MaxSteps int           `validate:"min=0,max=100000"`
	CacheTTL time.Duration `validate:"min=0"`
}

type HistoryConfig struct {
	Backend     string        `validate:"oneof=memory sqlite postgres"`
	SQLitePath  string        `validate:"required_if=Backend sqlite"`
	DatabaseURL string        `validate:"required_if=Backend postgres"`
	TTL         time.Duration `validate:"min=0"`
	MaxMemoryMB int           `validate:"min=1"`
	// EncryptKey, when set, is a hex AES key for stored run payloads.
	EncryptKey string `validate:"omitempty,hexadecimal"`
}

type WorkflowConfig struct {
	Dir string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:           getEnvWithDefault("FLOWGRAPH_ADDR", ":8080"),
			RequestTimeout: getEnvAsDuration("FLOWGRAPH_REQUEST_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level:  getEnvWithDefault("FLOWGRAPH_LOG_LEVEL", "info"),
			Format: getEnvWithDefault("FLOWGRAPH_LOG_FORMAT", "text"),
		},
		Engine: EngineConfig{
			MaxSteps: getEnvAsInt("FLOWGRAPH_MAX_STEPS", 100),
			CacheTTL: getEnvAsDuration("FLOWGRAPH_CACHE_TTL", 5*time.Minute),
		},
		History: HistoryConfig{
			Backend:     getEnvWithDefault("FLOWGRAPH_HISTORY", HistoryMemory),
			SQLitePath:  getEnvWithDefault("FLOWGRAPH_SQLITE_PATH", "flowgraph.db"),
			DatabaseURL: getEnvWithDefault("DATABASE_URL", ""),
			TTL:         getEnvAsDuration("FLOWGRAPH_HISTORY_TTL", 24*time.Hour),
			MaxMemoryMB: getEnvAsInt("FLOWGRAPH_HISTORY_MAX_MB", 256),
			EncryptKey:  getEnvWithDefault("FLOWGRAPH_HISTORY_KEY", ""),
		},
		Workflow: WorkflowConfig{
			Dir: getEnvWithDefault("FLOWGRAPH_WORKFLOWS_DIR", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch len(c.History.EncryptKey) {
	case 0, 32, 48, 64:
	default:
		return fmt.Errorf("FLOWGRAPH_HISTORY_KEY must encode 16, 24 or 32 bytes")
	}
	return nil
}

// Key decodes EncryptKey. It returns nil when encryption is off.
func (h HistoryConfig) Key() ([]byte, error) {
	if h.EncryptKey == "" {
		return nil, nil
	}
	return hex.DecodeString(h.EncryptKey)
}

// Helper functions for environment variable parsing

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
