package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/internal/state"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const watchDebounce = 100 * time.Millisecond

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-validate the registry file whenever it changes",
		Long: `Watch the YAML registry file and re-validate it on every change.

Only the yaml store keeps the registry in a file; press Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			fs, ok := cc.Store.(*state.FileStore)
			if !ok {
				return fmt.Errorf("watch needs the yaml store, not %s", backendName(cc.Cfg.StateConfig()))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := cc.Renderer
			report := func() {
				reg, err := fs.Load(ctx)
				if err != nil {
					r.StatusLine(fs.Path(), "error", err.Error())
					return
				}
				issues := reg.Validate()
				status := "success"
				if registry.HasErrors(issues) {
					status = "error"
				} else if len(issues) > 0 {
					status = "warning"
				}
				r.StatusLine(fs.Path(), status, fmt.Sprintf("revision %d, %d domains, %d entities, %d issues",
					reg.Revision, len(reg.DomainsByCode), len(reg.Entities()), len(issues)))
				for _, i := range issues {
					r.Println("    " + i.String())
				}
			}

			report()
			r.Println("Watching " + fs.Path() + " (Ctrl+C to stop)")
			return watchRegistry(ctx, fs.Path(), cc.Logger, report)
		},
	}
}

// watchRegistry calls onChange after the file at path is written, created or
// replaced, debounced so a burst of events triggers one call. The parent
// directory is watched because atomic saves replace the file.
func watchRegistry(ctx context.Context, path string, logger *slog.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				logger.Debug("registry changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))
				onChange()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}
