// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// BrokerConfig provides settings for the durable dispatch queue.
type BrokerConfig interface {
	GetRedisURL() string
	GetDispatchStream() string
	GetDispatchGroup() string
	GetDispatchDeadLetterStream() string
}

// SchedulerConfig provides settings for the asynq scheduling client/worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// DispatcherConfig provides settings for the dispatch worker process.
type DispatcherConfig interface {
	BrokerConfig
	GetDispatchInterval() time.Duration
}

// GatewayConfig provides fallback settings for the messaging gateway.
// Per-instance server URL and API key stored on the instance row take
// precedence; these values apply when an instance has none.
type GatewayConfig interface {
	GetGatewayURL() string
	GetGatewayAPIKey() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL         string
	AsynqQueue       string
	AsynqConcurrency int

	DispatchStream     string
	DispatchGroup      string
	DispatchDeadLetter string
	DispatchInterval   time.Duration

	GatewayURL    string
	GatewayAPIKey string
}

// Load reads configuration from the environment, with .env support for
// local development. Only the database URL and JWT secret are mandatory.
func Load() (*Config, error) {
	// Ignore missing .env; the environment is authoritative.
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTAccessSecret: os.Getenv("JWT_ACCESS_SECRET"),

		CORSAllowAll:   getBool("CORS_ALLOW_ALL", false),
		CORSOrigins:    getList("CORS_ORIGINS"),
		CORSAllowCreds: getBool("CORS_ALLOW_CREDENTIALS", true),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		AsynqQueue:       getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getInt("ASYNQ_CONCURRENCY", 10),

		DispatchStream:     getEnv("DISPATCH_STREAM", "dispatch:jobs"),
		DispatchGroup:      getEnv("DISPATCH_GROUP", "dispatchers"),
		DispatchDeadLetter: getEnv("DISPATCH_DEAD_LETTER", "dispatch:dead"),
		DispatchInterval:   getDuration("DISPATCH_INTERVAL", time.Minute),

		GatewayURL:    os.Getenv("GATEWAY_URL"),
		GatewayAPIKey: os.Getenv("GATEWAY_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	return cfg, nil
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueue }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetDispatchStream() string           { return c.DispatchStream }
func (c *Config) GetDispatchGroup() string            { return c.DispatchGroup }
func (c *Config) GetDispatchDeadLetterStream() string { return c.DispatchDeadLetter }
func (c *Config) GetDispatchInterval() time.Duration  { return c.DispatchInterval }

func (c *Config) GetGatewayURL() string    { return c.GatewayURL }
func (c *Config) GetGatewayAPIKey() string { return c.GatewayAPIKey }

// =============================================================================
// Env Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
