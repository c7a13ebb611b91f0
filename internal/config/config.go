// Package config resolves the process's startup configuration from
// environment variables, validating it before the rest of the service
// starts.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds validated startup configuration. CLI flags (see
// cmd/theatre) take precedence over the environment values captured
// here; Load only establishes the environment-derived defaults.
type Config struct {
	Host            string
	Port            int
	CatalogPath     string
	LogLevel        string
	Development     bool
	IdleRoomSeconds int
}

// Load reads and validates environment variables, returning defaults
// for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Host:            "0.0.0.0",
		Port:            54321,
		CatalogPath:     "resources/entries.txt",
		LogLevel:        "info",
		Development:     false,
		IdleRoomSeconds: 60,
	}

	if v := os.Getenv("THEATRE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("THEATRE_PORT must be a valid port number between 1 and 65535 (got %q)", v)
		}
		cfg.Port = port
	}

	if v := os.Getenv("THEATRE_HOST"); v != "" {
		cfg.Host = v
	}

	if v := os.Getenv("THEATRE_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	cfg.Development = os.Getenv("THEATRE_DEV") == "true"

	return cfg, nil
}

// Addr returns the "host:port" string to bind the HTTP listener on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
