package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_ENV"` specify the environment variable name,
// `default:""` provides a fallback, and `required:"true"` makes a variable
// mandatory at startup.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"development"` // e.g., development, staging, production
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HttpServer  ServerConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Auth        AuthConfig
	CommerceAPI CommerceAPIConfig
	RateLimit   RateLimitConfig
	Engine      EngineConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName   string `envconfig:"POSTGRES_DBNAME" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// RedisConfig holds the cache connection used by the storefront rate limiter.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// AuthConfig holds the settings for validating admin/session JWTs. Tokens are
// issued by the commerce platform's identity service, not by this service.
type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
}

// CommerceAPIConfig points at the external commerce application that owns
// cart and order persistence.
type CommerceAPIConfig struct {
	BaseURL string        `envconfig:"COMMERCE_API_BASE_URL" required:"true"`
	Token   string        `envconfig:"COMMERCE_API_TOKEN" default:""`
	Timeout time.Duration `envconfig:"COMMERCE_API_TIMEOUT" default:"10s"`
}

// RateLimitConfig bounds the public quota endpoints (fixed window per IP).
type RateLimitConfig struct {
	Requests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// EngineConfig tunes the validation engine.
type EngineConfig struct {
	// RuleFetchLimit caps the bounded rule fetch per validation call. At this
	// deployment's scale 1000 rows per rule kind is "effectively all".
	RuleFetchLimit int `envconfig:"ENGINE_RULE_FETCH_LIMIT" default:"1000"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

var cfg Config

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	return &cfg, nil
}

// Get returns the loaded configuration.
// Panics if Load() has not been called successfully.
func Get() *Config {
	if cfg.Postgres.Host == "" { // Simple check to see if cfg is populated
		log.Fatal("Configuration has not been loaded. Call config.Load() first.")
	}
	return &cfg
}
