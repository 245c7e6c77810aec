package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraiseql/specql-sub006/internal/fsutil"
	"github.com/fraiseql/specql-sub006/internal/testutil"
)

func TestWatchRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "domain_registry.yaml")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(testutil.RegistryYAML), 0o644))

	ctx, cancel := context.WithCancel(t.Context())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchRegistry(ctx, path, slog.New(slog.DiscardHandler), func() { calls.Add(1) })
	}()

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	time.Sleep(3 * watchDebounce)
	assert.Zero(t, calls.Load())

	// Atomic replacement is how every store save lands on disk. The watcher
	// may not be registered yet, so keep saving until a change is seen.
	assert.Eventually(t, func() bool {
		_ = fsutil.WriteFileAtomic(path, []byte(testutil.RegistryYAML), 0o644)
		return calls.Load() > 0
	}, 5*time.Second, 4*watchDebounce)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watchRegistry did not stop after cancel")
	}
}

func TestWatchRegistryMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "domain_registry.yaml")
	err := watchRegistry(t.Context(), path, slog.New(slog.DiscardHandler), func() {})
	assert.Error(t, err)
}

func TestWatchNeedsYAMLStore(t *testing.T) {
	setupProject(t, "store:\n  backend: sqlite\n  dsn: state/registry.db\n")

	_, err := execute(t, NewRegistryCommand(), "watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml store")
}
