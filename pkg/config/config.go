package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the review workflow engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values. Secrets
// (API keys, passwords) must only come from environment variables.
type Config struct {
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// AI photo-analysis backend configuration
	AI AIConfig `yaml:"ai"`

	// Analysis-result reconciliation poller configuration
	Poller PollerConfig `yaml:"poller"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           string `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"storescore"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Name           string `yaml:"name" env:"PGDATABASE" env-default:"storescore"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PG_MAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// URL builds the connection string for pgx.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// AIConfig holds photo-analysis backend selection and credentials.
// Provider is "openai" or "anthropic".
type AIConfig struct {
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	Model    string `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o"`
	Endpoint string `yaml:"endpoint" env:"AI_ENDPOINT" env-default:"https://api.openai.com/v1"`
	APIKey   string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML
}

// PollerConfig tunes the analysis-result reconciliation loop. Deployments
// adjust these for the latency of their analysis backend.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval" env:"POLLER_INTERVAL" env-default:"3s"`
	MaxAttempts int           `yaml:"max_attempts" env:"POLLER_MAX_ATTEMPTS" env-default:"10"`
}

// Load reads configuration from the given YAML file (if it exists) and the
// environment. A missing file is not an error; env vars alone are enough.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			return validate(&cfg)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from env: %w", err)
	}
	return validate(&cfg)
}

func validate(cfg *Config) (*Config, error) {
	if cfg.Poller.Interval <= 0 {
		return nil, fmt.Errorf("poller.interval must be positive, got %s", cfg.Poller.Interval)
	}
	if cfg.Poller.MaxAttempts <= 0 {
		return nil, fmt.Errorf("poller.max_attempts must be positive, got %d", cfg.Poller.MaxAttempts)
	}
	switch cfg.AI.Provider {
	case "openai", "anthropic":
	default:
		return nil, fmt.Errorf("unknown ai.provider %q", cfg.AI.Provider)
	}
	return cfg, nil
}
