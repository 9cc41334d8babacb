package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// Env holds the settings read from the process environment.
type Env struct {
	Environment         string `env:"ENV" envDefault:"development"`
	Port                int    `env:"PORT"`
	LogMode             string `env:"LOG_MODE"`
	ProductionEndpoint  string `env:"PRODUCTION_API_ENDPOINT"`
	DevelopmentEndpoint string `env:"DEVELOPMENT_API_ENDPOINT" envDefault:"http://127.0.0.1:8000"`
}

// LoadDotEnv populates the environment from the given files. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %q: %w", path, err)
		}
	}
	return nil
}

// ParseEnv reads Env from the process environment.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	e.Environment = strings.ToLower(strings.TrimSpace(e.Environment))
	return e, nil
}

// BaseURL selects the proxy base URL for the configured environment.
func (e Env) BaseURL() (string, error) {
	var base string
	switch e.Environment {
	case EnvironmentProduction:
		base = e.ProductionEndpoint
	case EnvironmentDevelopment:
		base = e.DevelopmentEndpoint
	default:
		return "", fmt.Errorf("invalid environment: %s", e.Environment)
	}

	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", fmt.Errorf("no api endpoint configured for environment %s", e.Environment)
	}
	return base, nil
}

// Apply overlays environment settings onto the file configuration.
func (e Env) Apply(cfg *Config) error {
	if e.Port != 0 {
		cfg.Server.Port = e.Port
	}
	if e.LogMode != "" {
		cfg.Log.Mode = strings.ToLower(strings.TrimSpace(e.LogMode))
	}
	return cfg.Validate()
}
