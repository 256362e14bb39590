// Package config loads runtime settings from the environment and import manifests from YAML
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vsinha/picktrack/pkg/domain/repositories"
	"github.com/vsinha/picktrack/pkg/infrastructure/logging"
)

// Capability overrides for QTY_ON_ORDER
const (
	CapabilityAuto = "auto"
	CapabilityOn   = "on"
	CapabilityOff  = "off"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime settings
type Config struct {
	DatabaseURL string
	StoreDriver string
	PageSize    int
	QtyOnOrder  string
	HTTPAddr    string
	Logging     logging.Config
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StoreDriver: strings.ToLower(os.Getenv("STORE_DRIVER")),
		QtyOnOrder:  strings.ToLower(getString("QTY_ON_ORDER", CapabilityAuto)),
		HTTPAddr:    getString("HTTP_ADDR", ":8080"),
		Logging: logging.Config{
			Level:       getString("LOG_LEVEL", "info"),
			Format:      getString("LOG_FORMAT", "console"),
			Development: os.Getenv("LOG_DEVELOPMENT") == "1",
		},
	}

	pageSize, err := getInt("STORE_PAGE_SIZE", repositories.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	cfg.PageSize = pageSize

	if cfg.StoreDriver == "" {
		cfg.StoreDriver = DriverMemory
		if cfg.DatabaseURL != "" {
			cfg.StoreDriver = DriverPostgres
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.QtyOnOrder {
	case CapabilityAuto, CapabilityOn, CapabilityOff:
	default:
		return fmt.Errorf("QTY_ON_ORDER must be auto, on or off, got %q", c.QtyOnOrder)
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("STORE_PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	return nil
}

// QtyOnOrderOverride returns the forced capability, or nil to probe the schema
func (c *Config) QtyOnOrderOverride() *bool {
	switch c.QtyOnOrder {
	case CapabilityOn:
		v := true
		return &v
	case CapabilityOff:
		v := false
		return &v
	default:
		return nil
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
