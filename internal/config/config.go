// Package config defines the service configuration. Configuration is loaded
// once at process start and is immutable thereafter; values come from the
// environment (optionally seeded by a .env file) following 12-factor
// conventions. Missing required values or invalid formats fail startup.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"groundwatch-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server    ServerConfig
	Upstream  UpstreamConfig
	Cache     CacheConfig
	Geo       GeoConfig
	Database  DatabaseConfig
	Directory DirectoryConfig
}

// ServerConfig holds HTTP server tuning.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// UpstreamConfig holds the observation-source client settings. FetchTimeout
// bounds each upstream fetch end to end; exceeding it surfaces as
// upstream_timeout.
type UpstreamConfig struct {
	BaseURL      string        `envconfig:"UPSTREAM_BASE_URL" validate:"required,url"`
	FetchTimeout time.Duration `envconfig:"UPSTREAM_FETCH_TIMEOUT" default:"10s"`
	MaxRetries   int           `envconfig:"UPSTREAM_MAX_RETRIES" default:"3"`
}

// CacheConfig holds the tiered TTLs of the result cache. These are
// configuration constants, never request parameters.
type CacheConfig struct {
	ComputedTTL time.Duration `envconfig:"CACHE_COMPUTED_TTL" default:"1h"`
	UpstreamTTL time.Duration `envconfig:"CACHE_UPSTREAM_TTL" default:"2h"`
	StaticTTL   time.Duration `envconfig:"CACHE_STATIC_TTL" default:"24h"`
}

// GeoConfig holds nearest-station resolution settings.
type GeoConfig struct {
	// MaxStationDistanceKm is the distance beyond which a match carries an
	// advisory note. It is not an error threshold.
	MaxStationDistanceKm float64 `envconfig:"GEO_MAX_STATION_DISTANCE_KM" default:"50"`
}

// DatabaseConfig holds PostgreSQL connection settings for the station
// directory repository. Only required when Directory.Source is "postgres".
type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// DirectoryConfig selects the station directory implementation.
type DirectoryConfig struct {
	Source   string `envconfig:"STATION_DIRECTORY_SOURCE" default:"postgres" validate:"oneof=postgres file"`
	FilePath string `envconfig:"STATION_DIRECTORY_FILE"`
}

// Load reads, populates, and validates the configuration. A .env file is
// loaded when present (non-fatal if absent).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.Directory.Source == "postgres" && cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STATION_DIRECTORY_SOURCE=postgres")
	}
	if cfg.Directory.Source == "file" && cfg.Directory.FilePath == "" {
		return nil, fmt.Errorf("STATION_DIRECTORY_FILE is required when STATION_DIRECTORY_SOURCE=file")
	}

	return &cfg, nil
}
