package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// Default service-area bounding box, the TriMet district plus a margin.
const defaultBBox = "-123.15500848101786,45.065490629501255,-121.741779801749,45.738910476408655"

const defaultTimeZone = "America/Los_Angeles"

type Config struct {
	TrimetAppID  string `validate:"required"`
	TrimetAPIURL string `validate:"required,url"`
	RedisURL     string `validate:"required"`
	DatabaseURL  string `validate:"required"`
	BBox         string `validate:"required"`
	TimeZone     string `validate:"required"`
}

// Load resolves the configuration from the environment. The process must not
// start without an upstream credential or store URLs, so validation failures
// are returned as errors for the caller to fail fast on.
func Load() (Config, error) {
	cfg := Config{
		TrimetAppID:  os.Getenv("TRIMET_APP_ID"),
		TrimetAPIURL: envOr("TRIMET_API_URL", "https://developer.trimet.org"),
		RedisURL:     os.Getenv("REDIS_URL"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		BBox:         envOr("TRIMET_BBOX", defaultBBox),
		TimeZone:     envOr("TIMEZONE", defaultTimeZone),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if val, found := os.LookupEnv(key); found && val != "" {
		return val
	}
	return def
}
