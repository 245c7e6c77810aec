package config

import (
	"fmt"
	"slices"

	"github.com/fraiseql/specql-sub006/internal/state"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

var backends = []string{state.BackendYAML, state.BackendSQLite, state.BackendPostgres}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.RegistryPath == "" {
		return fmt.Errorf("registry_path is required")
	}
	if _, ok := numbering.EncodingByName(c.Encoding); !ok {
		return fmt.Errorf("unknown encoding %q (expected decimal or hex)", c.Encoding)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.Store != nil {
		if err := c.Store.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the store selection.
func (s *StoreConfig) Validate() error {
	if s.Backend == "" {
		return nil
	}
	if !slices.Contains(backends, s.Backend) {
		return fmt.Errorf("unknown store backend %q (available: %v)", s.Backend, backends)
	}
	if s.Backend == state.BackendPostgres && s.DSN == "" {
		return fmt.Errorf("store.dsn is required for the postgres backend")
	}
	return nil
}
