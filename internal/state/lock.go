package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fileLock is an acquired lock file. The token identifies the owner so a
// release never removes a lock that was broken and re-acquired by someone else.
type fileLock struct {
	path  string
	token string
}

func (s *FileStore) lockPath() string {
	return s.path + ".lock"
}

// acquire creates the lock file exclusively, retrying until the lock timeout
// or ctx ends. Lock files older than the stale age are removed.
func (s *FileStore) acquire(ctx context.Context) (*fileLock, error) {
	path := s.lockPath()
	token := uuid.NewString()
	deadline := time.Now().Add(s.lockTimeout)

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%s %d %s\n", token, os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("failed to write lock file: %w", errors.Join(werr, cerr))
			}
			return &fileLock{path: path, token: token}, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
				return nil, fmt.Errorf("failed to create lock directory: %w", mkErr)
			}
			continue
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		if s.breakStale(path) {
			continue
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// breakStale removes the lock file when it is older than the stale age.
func (s *FileStore) breakStale(path string) bool {
	if s.staleLockAge <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	age := time.Since(info.ModTime())
	if age < s.staleLockAge {
		return false
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false
	}
	s.logger.Warn("removed stale registry lock",
		slog.String("path", path),
		slog.Duration("age", age.Round(time.Second)))
	return true
}

// release removes the lock file if it still carries our token.
func (s *FileStore) release(lock *fileLock) {
	data, err := os.ReadFile(lock.path)
	if err != nil {
		return
	}
	owner, _, _ := strings.Cut(string(data), " ")
	if owner != lock.token {
		s.logger.Warn("registry lock taken over by another writer", slog.String("path", lock.path))
		return
	}
	if err := os.Remove(lock.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove registry lock", slog.String("path", lock.path), slog.String("error", err.Error()))
	}
}
