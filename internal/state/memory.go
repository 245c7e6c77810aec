package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fraiseql/specql-sub006/internal/registry"
)

// MemoryStore keeps the registry in process memory. It backs tests and
// dry runs.
type MemoryStore struct {
	mu  sync.Mutex
	doc *registry.Registry
	log []Allocation
}

// NewMemoryStore returns a store seeded with a copy of reg. A nil reg leaves
// the store empty until the first Save.
func NewMemoryStore(reg *registry.Registry) *MemoryStore {
	s := &MemoryStore{}
	if reg != nil {
		s.doc = reg.Clone()
	}
	return s
}

// Load returns a copy of the stored document.
func (s *MemoryStore) Load(_ context.Context) (*registry.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil, ErrNotFound
	}
	return s.doc.Clone(), nil
}

// Save replaces the stored document.
func (s *MemoryStore) Save(_ context.Context, reg *registry.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(reg)
}

func (s *MemoryStore) saveLocked(reg *registry.Registry) error {
	var current int64
	if s.doc != nil {
		current = s.doc.Revision
	}
	if reg.Revision != current {
		return fmt.Errorf("%w: have revision %d, stored %d", ErrConcurrentModification, reg.Revision, current)
	}
	stamp(reg, current+1)
	s.doc = reg.Clone()
	return nil
}

// Update applies fn to a copy of the document and stores the result.
func (s *MemoryStore) Update(ctx context.Context, fn func(reg *registry.Registry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.doc == nil {
		return ErrNotFound
	}
	reg := s.doc.Clone()
	if err := fn(reg); err != nil {
		return err
	}
	return s.saveLocked(reg)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Record appends entries to the in-memory allocation log.
func (s *MemoryStore) Record(_ context.Context, entries ...Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		s.log = append(s.log, e)
	}
	return nil
}

// History returns up to limit entries, newest first.
func (s *MemoryStore) History(_ context.Context, limit int) ([]Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Allocation, 0, len(s.log))
	for i := len(s.log) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.log[i])
	}
	return out, nil
}
