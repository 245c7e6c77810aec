package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fraiseql/specql-sub006/internal/allocator"
	"github.com/fraiseql/specql-sub006/internal/cli/output"
	"github.com/fraiseql/specql-sub006/internal/manifest"
	"github.com/fraiseql/specql-sub006/internal/planner"
	"github.com/fraiseql/specql-sub006/internal/state"
	"github.com/fraiseql/specql-sub006/internal/writer"
	"github.com/spf13/cobra"
)

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	var dryRun bool
	var workers int

	cmd := &cobra.Command{
		Use:   "generate <manifest>",
		Short: "Allocate codes for a manifest and write the file tree",
		Long: `Allocate codes for every entity of a manifest and write the file tree.

Each entity gets its table code (explicit, registered or newly allocated),
codes for the requested sibling tables, functions and views, and one file
per artifact below the output directory. Allocations are committed as they
are made; if one fails, the files planned before it are still written and
the command reports the error.

With --dry-run allocations run against a private copy of the registry and
nothing is written.`,
		Example: `  specql generate entities.yaml
  specql generate entities.yaml --dry-run
  specql generate entities.yaml --output-dir build/sql --workers 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], dryRun, workers)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve paths without saving allocations or writing files")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Files written concurrently (default: GOMAXPROCS)")
	return cmd
}

func runGenerate(cmd *cobra.Command, manifestPath string, dryRun bool, workers int) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	alloc := cc.Alloc
	if dryRun {
		reg, err := cc.Load(cmd)
		if err != nil {
			return err
		}
		alloc = allocator.New(state.NewMemoryStore(reg), allocator.WithLogger(cc.Logger))
	}

	specs, planErr := planner.New(alloc, planner.WithLogger(cc.Logger)).Plan(ctx, m)

	reg, err := alloc.Store().Load(ctx)
	if err != nil {
		return errors.Join(planErr, fmt.Errorf("failed to load registry: %w", err))
	}

	if workers == 0 {
		workers = cc.Cfg.Workers
	}
	w := writer.New(cc.Cfg.OutputDir, reg,
		writer.WithWorkers(workers),
		writer.WithDryRun(dryRun),
		writer.WithLogger(cc.Logger),
	)
	results, writeErr := w.Write(ctx, specs)

	runErr := errors.Join(planErr, writeErr)
	if err := renderGenerate(cc.Renderer, cc.Cfg.OutputDir, dryRun, results, runErr); err != nil {
		return err
	}
	return runErr
}

func renderGenerate(r *output.Renderer, root string, dryRun bool, results []writer.Result, runErr error) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := output.GenerateOutput{DryRun: dryRun, Root: root, Files: make([]output.GeneratedFile, 0, len(results))}
		for _, res := range results {
			out.Files = append(out.Files, output.GeneratedFile{
				Code:    res.Spec.Code,
				Entity:  res.Path.Entity,
				Path:    res.Path.Path,
				Written: res.Written,
			})
		}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		return r.JSON(out)
	}

	title := "Generated files"
	if dryRun {
		title = "Planned files (dry run)"
	}
	r.Header(1, fmt.Sprintf("%s (%d)", title, len(results)))

	written := 0
	for _, res := range results {
		status := "pending"
		if res.Written {
			status = "success"
			written++
		}
		r.StatusLine(res.Path.Path, status, res.Spec.Code)
	}

	r.Println("")
	switch {
	case runErr != nil:
		r.Warning(fmt.Sprintf("stopped after %d files", len(results)))
	case dryRun:
		r.Success(fmt.Sprintf("%d files would be written below %s", len(results), root))
	default:
		r.Success(fmt.Sprintf("Wrote %d files below %s", written, filepath.Clean(root)))
	}
	return nil
}
