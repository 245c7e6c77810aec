package state

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Config selects and configures a registry backend.
type Config struct {
	// Backend is one of yaml, sqlite, postgres or memory.
	Backend string
	// RegistryPath is the YAML document for the yaml backend.
	RegistryPath string
	// DSN is the SQLite path or PostgreSQL connection string.
	DSN string
	// LockTimeout bounds the wait for the yaml backend's lock file.
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// DefaultSQLitePath is the database used when the sqlite backend has no DSN.
func DefaultSQLitePath(registryPath string) string {
	return filepath.Join(filepath.Dir(registryPath), ".specql", "registry.db")
}

// Open returns the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	switch cfg.Backend {
	case "", BackendYAML:
		if cfg.RegistryPath == "" {
			return nil, fmt.Errorf("yaml store requires a registry path")
		}
		opts := []FileOption{WithFileLogger(logger)}
		if cfg.LockTimeout > 0 {
			opts = append(opts, WithLockTimeout(cfg.LockTimeout))
		}
		return NewFileStore(cfg.RegistryPath, opts...), nil
	case BackendSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = DefaultSQLitePath(cfg.RegistryPath)
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return OpenSQLite(ctx, dsn, WithSQLLogger(logger))
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN, WithSQLLogger(logger))
	case BackendMemory:
		return NewMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (expected yaml, sqlite or postgres)", cfg.Backend)
	}
}
