// Package config loads runtime configuration from the environment.
//
// Values are read from MONITOR_* variables, optionally seeded from a .env
// file in the working directory. Command-line flags in cmd/ override them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every configuration variable.
const EnvPrefix = "MONITOR"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Config is the complete application configuration.
type Config struct {
	Storage  StorageConfig  `envconfig:"STORAGE"`
	Fetch    FetchConfig    `envconfig:"FETCH"`
	Provider ProviderConfig `envconfig:"PROVIDER"`
	Server   ServerConfig   `envconfig:"SERVER"`
}

// StorageConfig selects and locates the storage backend.
type StorageConfig struct {
	Backend     string `envconfig:"BACKEND" default:"bolt" validate:"oneof=memory bolt postgres"`
	BoltPath    string `envconfig:"BOLT_PATH" default:"data/monitor.db" validate:"required_if=Backend bolt"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" validate:"required_if=Backend postgres"`
	// ClickhouseDSN, when set, moves observations to ClickHouse. Metadata and
	// snapshots stay on Backend.
	ClickhouseDSN string `envconfig:"CLICKHOUSE_DSN" validate:"omitempty,url"`
}

// FetchConfig controls the incremental fetcher and metadata refresh.
type FetchConfig struct {
	HistoryDays     int `envconfig:"HISTORY_DAYS" default:"180" validate:"min=1"`
	OverlapDays     int `envconfig:"OVERLAP_DAYS" default:"7" validate:"min=1"`
	MetadataWorkers int `envconfig:"METADATA_WORKERS" default:"5" validate:"min=1,max=64"`
}

// ProviderConfig configures the market-data providers.
type ProviderConfig struct {
	UniverseURL  string        `envconfig:"UNIVERSE_URL" default:"https://en.wikipedia.org/wiki/List_of_S%26P_500_companies" validate:"url"`
	YahooBaseURL string        `envconfig:"YAHOO_BASE_URL" default:"https://query2.finance.yahoo.com" validate:"url"`
	ProfileRPS   float64       `envconfig:"PROFILE_RPS" default:"4" validate:"gte=0"`
	ChartWorkers int           `envconfig:"CHART_WORKERS" default:"5" validate:"min=1"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s" validate:"gt=0"`
	MaxRetries   int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=1"`
}

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080" validate:"required"`
	MetricsAddr     string        `envconfig:"METRICS_ADDR"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads the optional .env files, then the environment, and validates.
// A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv reads MONITOR_* variables and validates the result.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
