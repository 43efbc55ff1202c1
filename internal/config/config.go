// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every CHOREWHEEL_* setting.
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	DBPath    string `env:"DB_PATH" envDefault:"chorewheel.db"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// MaterializeCron schedules the rolling-window materializer. Empty
	// disables it; occurrences are then only created on read.
	MaterializeCron  string `env:"MATERIALIZE_CRON" envDefault:"@daily"`
	MaterializeDays  int    `env:"MATERIALIZE_DAYS" envDefault:"14"`
	SkipConsumesTurn bool   `env:"SKIP_CONSUMES_TURN" envDefault:"true"`
	Workers          int    `env:"WORKERS" envDefault:"4"`

	// MaxWindowDays caps how many days one occurrence listing may
	// materialize.
	MaxWindowDays int `env:"MAX_WINDOW_DAYS" envDefault:"366"`

	// Timezone decides which calendar day "today" is.
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "CHOREWHEEL_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MaterializeDays < 1 {
		return fmt.Errorf("CHOREWHEEL_MATERIALIZE_DAYS must be >= 1, got %d", c.MaterializeDays)
	}
	if c.Workers < 1 {
		return fmt.Errorf("CHOREWHEEL_WORKERS must be >= 1, got %d", c.Workers)
	}
	if c.MaxWindowDays < 1 {
		return fmt.Errorf("CHOREWHEEL_MAX_WINDOW_DAYS must be >= 1, got %d", c.MaxWindowDays)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("CHOREWHEEL_TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the configured timezone. Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
