// Package config loads echotrails settings from defaults, an optional
// YAML file, an optional .env file and ECHOTRAILS_* environment variables,
// in that order of precedence.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kass/echo-trails/pkg/client"
	"github.com/kass/echo-trails/pkg/geo"
	"github.com/kass/echo-trails/pkg/models"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "ECHOTRAILS_"

// DefaultEnvFile is read when present in the working directory
const DefaultEnvFile = ".env"

// Config holds runtime settings
type Config struct {
	BackendURL        string        `yaml:"backend_url" env:"BACKEND_URL" validate:"required,url"`
	Token             string        `yaml:"token" env:"TOKEN"`
	HTTPTimeout       time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT" validate:"gt=0"`
	PollInterval      time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL" validate:"gt=0"`
	CacheTTL          time.Duration `yaml:"cache_ttl" env:"CACHE_TTL" validate:"gte=0"`
	Lat               float64       `yaml:"lat" env:"LAT" validate:"latitude"`
	Lon               float64       `yaml:"lon" env:"LON" validate:"longitude"`
	StrictCoordinates bool          `yaml:"strict_coordinates" env:"STRICT_COORDINATES"`
	SnapshotFile      string        `yaml:"snapshot_file" env:"SNAPSHOT_FILE" validate:"required"`
	MetricsAddr       string        `yaml:"metrics_addr" env:"METRICS_ADDR" validate:"omitempty,hostname_port"`
	LogLevel          string        `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat         string        `yaml:"log_format" env:"LOG_FORMAT" validate:"oneof=text json"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		BackendURL:   client.DefaultBaseURL,
		HTTPTimeout:  10 * time.Second,
		PollInterval: 5 * time.Second,
		CacheTTL:     30 * time.Second,
		Lat:          12.9716,
		Lon:          77.5946,
		SnapshotFile: "data/drops.gob",
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Position returns the configured location
func (c *Config) Position() models.GeoPoint {
	return models.GeoPoint{Lat: c.Lat, Lon: c.Lon}
}

// Validate checks the settings
func (c *Config) Validate() error {
	v := validator.New()
	geo.RegisterValidations(v)
	if err := v.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// Load builds a Config. configFile is a YAML file and must exist when set.
// envFile is loaded into the environment if it exists; variables that are
// already set keep their values.
func Load(configFile, envFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config")
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to load %s", envFile)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment variables")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
