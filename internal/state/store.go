// Package state persists the registry document.
//
// Every backend implements Store. Load and Save move the whole document;
// Update is the transactional boundary used by the allocator: it loads,
// applies a mutation and saves while holding the backend's lock, and
// compare-and-swaps on the document revision so a stale writer can never
// overwrite a newer registry.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/fraiseql/specql-sub006/internal/registry"
)

var (
	// ErrNotFound reports that no registry document exists in the backend.
	ErrNotFound = errors.New("registry not found")

	// ErrConcurrentModification reports a save against a revision that is no
	// longer current.
	ErrConcurrentModification = errors.New("registry modified concurrently")

	// ErrLockTimeout reports that the registry lock could not be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for registry lock")
)

// Store loads and saves the registry document.
type Store interface {
	// Load returns a private copy of the current document.
	Load(ctx context.Context) (*registry.Registry, error)

	// Save writes reg wholesale. reg.Revision must match the stored revision;
	// on success it is advanced to the new revision.
	Save(ctx context.Context, reg *registry.Registry) error

	// Update runs fn against the current document under the backend's lock
	// and saves the result. Nothing is written when fn returns an error.
	Update(ctx context.Context, fn func(reg *registry.Registry) error) error

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendYAML     = "yaml"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// stamp advances the document to the next revision.
func stamp(reg *registry.Registry, revision int64) {
	reg.Revision = revision
	reg.Touch(time.Now())
}
