// Package config loads process configuration from the environment, with
// command line flags taking precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v6"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Port    string `env:"PORT" envDefault:"5000"`
	BaseURL string `env:"BASE_URL"`
	Env     string `env:"APP_ENV" envDefault:"development"`

	StoreBackend   string `env:"STORE_BACKEND" envDefault:"dynamodb"`
	DatabaseDSN    string `env:"DATABASE_DSN"`
	Region         string `env:"AWS_REGION" envDefault:"us-east-1"`
	Table          string `env:"DYNAMODB_TABLE" envDefault:"snip"`
	DynamoEndpoint string `env:"DYNAMODB_ENDPOINT"`

	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	RateLimit       int           `env:"RATE_LIMIT" envDefault:"10"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RedisURL        string        `env:"REDIS_URL"`

	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	Debug           bool          `env:"DEBUG" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load reads the environment, then applies flags parsed from args
// (without the program name).
func Load(args []string) (*Config, error) {
	return load(args, env.Options{})
}

func load(args []string, opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	fs := flag.NewFlagSet("snip", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	fs.StringVar(&cfg.Region, "region", cfg.Region, "AWS region")
	fs.StringVar(&cfg.Table, "table", cfg.Table, "DynamoDB table name")
	fs.StringVar(&cfg.DynamoEndpoint, "ddb-endpoint", cfg.DynamoEndpoint, "DynamoDB endpoint URL")
	fs.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "store backend: dynamodb, postgres or memory")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug mode")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%s", cfg.Port)
	}

	// test mode never touches a live database
	if cfg.IsTest() {
		cfg.StoreBackend = BackendMemory
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s (must be 1-65535)", c.Port)
	}

	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("invalid environment: %s (must be development, production, or test)", c.Env)
	}

	switch c.StoreBackend {
	case BackendDynamoDB:
		if c.Table == "" {
			return errors.New("dynamodb table cannot be empty")
		}
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return errors.New("DATABASE_DSN is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend: %s", c.StoreBackend)
	}

	if c.RateLimit < 1 {
		return fmt.Errorf("invalid rate limit: %d (must be positive)", c.RateLimit)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("invalid rate limit window: %s", c.RateLimitWindow)
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}
