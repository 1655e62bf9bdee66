package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Stock sources the composer can check availability against
const (
	StockSourceAPI      = "api"
	StockSourcePostgres = "postgres"
	StockSourceMemory   = "memory"
)

// Session stores for in-progress drafts
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds all configuration for the application.
// Values come from environment variables; a local .env file is loaded first if present.
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Backend  BackendConfig
	Composer ComposerConfig
	Stock    StockConfig
	Session  SessionConfig
	Events   EventsConfig
	LogLevel string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

type AuthConfig struct {
	APIKeys []string // Valid API keys for authentication
}

// BackendConfig points at the warehouse REST API
type BackendConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type ComposerConfig struct {
	DefaultTerminalID string
	StockCheckTimeout time.Duration
	SubmitTimeout     time.Duration
}

type StockConfig struct {
	Source      string
	DatabaseURL string
}

type SessionConfig struct {
	Store    string
	RedisURL string
	TTL      time.Duration
}

// EventsConfig is optional; an empty URL disables order notifications
type EventsConfig struct {
	RabbitMQURL string
	Exchange    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsInt("READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("WRITE_TIMEOUT", 30),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 30),
		},
		Auth: AuthConfig{
			APIKeys: getEnvAsSlice("API_KEYS", []string{"apitest"}),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(getEnv("BACKEND_URL", "http://127.0.0.1:8000"), "/"),
			Token:   getEnv("BACKEND_TOKEN", ""),
			Timeout: getEnvAsSeconds("BACKEND_TIMEOUT", 15),
		},
		Composer: ComposerConfig{
			DefaultTerminalID: getEnv("POS_TERMINAL_ID", "POS001"),
			StockCheckTimeout: getEnvAsSeconds("STOCK_CHECK_TIMEOUT", 5),
			SubmitTimeout:     getEnvAsSeconds("SUBMIT_TIMEOUT", 15),
		},
		Stock: StockConfig{
			Source:      strings.ToLower(getEnv("STOCK_SOURCE", StockSourceAPI)),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		Session: SessionConfig{
			Store:    strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory)),
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
		},
		Events: EventsConfig{
			RabbitMQURL: getEnv("RABBITMQ_URL", ""),
			Exchange:    getEnv("ORDER_EXCHANGE", "orders_topic"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("at least one API key must be configured")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}

	if c.Composer.DefaultTerminalID == "" {
		return fmt.Errorf("POS_TERMINAL_ID must not be empty")
	}

	if c.Composer.StockCheckTimeout <= 0 || c.Composer.SubmitTimeout <= 0 || c.Backend.Timeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	// The HTTP client timeout also bounds order creation, and a whole submit
	// has to fit in one response write.
	if c.Backend.Timeout < c.Composer.SubmitTimeout {
		return fmt.Errorf("BACKEND_TIMEOUT (%v) must be at least SUBMIT_TIMEOUT (%v)",
			c.Backend.Timeout, c.Composer.SubmitTimeout)
	}
	writeTimeout := time.Duration(c.Server.WriteTimeout) * time.Second
	if submit := c.Composer.StockCheckTimeout + c.Composer.SubmitTimeout; submit >= writeTimeout {
		return fmt.Errorf("WRITE_TIMEOUT (%v) must exceed STOCK_CHECK_TIMEOUT + SUBMIT_TIMEOUT (%v)",
			writeTimeout, submit)
	}

	switch c.Stock.Source {
	case StockSourceAPI, StockSourceMemory:
	case StockSourcePostgres:
		if c.Stock.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STOCK_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("invalid stock source: %s (must be api, postgres, or memory)", c.Stock.Source)
	}

	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("invalid session store: %s (must be memory or redis)", c.Session.Store)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}

	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
