// Package config provides configuration management for the specql CLI.
package config

import (
	"time"

	"github.com/fraiseql/specql-sub006/internal/state"
)

// StoreConfig selects the registry backend.
type StoreConfig struct {
	Backend     string        `koanf:"backend"`
	DSN         string        `koanf:"dsn"`
	LockTimeout time.Duration `koanf:"lock_timeout"`
}

// ServerConfig holds configuration for the coordinator service.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// Config holds all CLI configuration options.
type Config struct {
	RegistryPath string               `koanf:"registry_path"`
	OutputDir    string               `koanf:"output_dir"`
	Encoding     string               `koanf:"encoding"`
	Workers      int                  `koanf:"workers"`
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	Store        *StoreConfig         `koanf:"store"`
	Server       *ServerConfig        `koanf:"server"`
	Environments map[string]EnvConfig `koanf:"environments"`
	ProjectRoot  string               `koanf:"-"`
}

// EnvConfig holds environment-specific overrides, typically a shared
// PostgreSQL store for CI and a local YAML registry for development.
type EnvConfig struct {
	RegistryPath string       `koanf:"registry_path"`
	OutputDir    string       `koanf:"output_dir"`
	Store        *StoreConfig `koanf:"store"`
}

// Default configuration values.
const (
	DefaultConfigFile   = "specql.yaml"
	DefaultRegistryPath = "registry/domain_registry.yaml"
	DefaultOutputDir    = "generated"
	DefaultEncoding     = "decimal"
	DefaultEnv          = "dev"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultServerAddr   = "127.0.0.1:8790"
	DefaultLockTimeout  = 10 * time.Second
)

// GetServerConfig returns the server config with defaults applied.
func (c *Config) GetServerConfig() *ServerConfig {
	if c.Server == nil || c.Server.Addr == "" {
		return &ServerConfig{Addr: DefaultServerAddr}
	}
	return c.Server
}

// StateConfig translates the store section into a state.Config.
func (c *Config) StateConfig() state.Config {
	sc := state.Config{RegistryPath: c.RegistryPath}
	if c.Store != nil {
		sc.Backend = c.Store.Backend
		sc.DSN = c.Store.DSN
		sc.LockTimeout = c.Store.LockTimeout
	}
	return sc
}
