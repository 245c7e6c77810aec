package commands

import (
	"fmt"
	"log/slog"

	"github.com/fraiseql/specql-sub006/internal/allocator"
	"github.com/fraiseql/specql-sub006/internal/cli/config"
	"github.com/fraiseql/specql-sub006/internal/cli/output"
	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    state.Store
	Alloc    *allocator.Allocator
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an open registry store.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutStore(cmd)

	store, err := openStore(cmd, cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Store = store
	cc.Alloc = allocator.New(store, allocator.WithLogger(cc.Logger))

	cleanup := func() {
		_ = store.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a store.
// Useful for commands that only work on codes.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Load returns the current registry document.
func (cc *CommandContext) Load(cmd *cobra.Command) (*registry.Registry, error) {
	reg, err := cc.Store.Load(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

// getConfig returns the current configuration, loading defaults from the
// working directory when the root command did not run.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	if cfg, err := config.LoadConfig("", "", nil); err == nil {
		return cfg
	}
	return &config.Config{
		RegistryPath: config.DefaultRegistryPath,
		OutputDir:    config.DefaultOutputDir,
		Encoding:     config.DefaultEncoding,
		Environment:  config.DefaultEnv,
		OutputFormat: config.DefaultOutput,
		Store:        &config.StoreConfig{Backend: state.BackendYAML, LockTimeout: config.DefaultLockTimeout},
	}
}

func openStore(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (state.Store, error) {
	sc := cfg.StateConfig()
	sc.Logger = logger
	store, err := state.Open(cmd.Context(), sc)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry store: %w", err)
	}
	return store, nil
}
