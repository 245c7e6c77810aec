package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/fraiseql/specql-sub006/internal/fsutil"
	"github.com/fraiseql/specql-sub006/internal/registry"
)

// Default lock timings for FileStore.
const (
	DefaultLockTimeout  = 10 * time.Second
	DefaultStaleLockAge = 2 * time.Minute
	lockRetryInterval   = 25 * time.Millisecond
)

// FileStore keeps the registry as a YAML document on disk. Writers serialize
// through an exclusive lock file next to the document.
type FileStore struct {
	path         string
	lockTimeout  time.Duration
	staleLockAge time.Duration
	logger       *slog.Logger
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileLogger sets the logger used for lock diagnostics.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLockTimeout bounds how long Update and Save wait for the lock.
func WithLockTimeout(d time.Duration) FileOption {
	return func(s *FileStore) { s.lockTimeout = d }
}

// WithStaleLockAge sets the age after which an abandoned lock file is removed.
func WithStaleLockAge(d time.Duration) FileOption {
	return func(s *FileStore) { s.staleLockAge = d }
}

// NewFileStore creates a store for the registry document at path.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	s := &FileStore{
		path:         path,
		lockTimeout:  DefaultLockTimeout,
		staleLockAge: DefaultStaleLockAge,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of the registry document.
func (s *FileStore) Path() string { return s.path }

// Load reads and decodes the registry document.
func (s *FileStore) Load(_ context.Context) (*registry.Registry, error) {
	return s.read()
}

func (s *FileStore) read() (*registry.Registry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	reg, err := registry.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return reg, nil
}

// Save writes reg under the lock if its revision is still current.
func (s *FileStore) Save(ctx context.Context, reg *registry.Registry) error {
	lock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer s.release(lock)

	var current int64
	existing, err := s.read()
	switch {
	case err == nil:
		current = existing.Revision
	case errors.Is(err, ErrNotFound):
	default:
		return err
	}
	return s.write(reg, current)
}

// Update loads, mutates and saves the document while holding the lock.
func (s *FileStore) Update(ctx context.Context, fn func(reg *registry.Registry) error) error {
	lock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer s.release(lock)

	reg, err := s.read()
	if err != nil {
		return err
	}
	current := reg.Revision
	if err := fn(reg); err != nil {
		return err
	}
	return s.write(reg, current)
}

// write replaces the document atomically. The caller holds the lock.
func (s *FileStore) write(reg *registry.Registry, current int64) error {
	if reg.Revision != current {
		return fmt.Errorf("%w: have revision %d, stored %d", ErrConcurrentModification, reg.Revision, current)
	}
	prev := reg.Revision
	stamp(reg, current+1)

	data, err := reg.Marshal()
	if err != nil {
		reg.Revision = prev
		return err
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		reg.Revision = prev
		return err
	}
	s.logger.Debug("registry saved", slog.String("path", s.path), slog.Int64("revision", reg.Revision))
	return nil
}

// Close is a no-op; the lock is only held for the duration of a call.
func (s *FileStore) Close() error { return nil }
