// Package writer places generated content at the hierarchical location
// derived from each file's code.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/fraiseql/specql-sub006/internal/fsutil"
	"github.com/fraiseql/specql-sub006/internal/pathgen"
	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

// FileSpec is one file to write. Name is the entity, view or function
// display name the layer's generator expects. A zero Kind uses the layer's
// default artifact kind.
type FileSpec struct {
	Code    string
	Name    string
	Kind    pathgen.Kind
	Content []byte
}

// Result reports where a spec was placed.
type Result struct {
	Spec    FileSpec
	Path    pathgen.FilePath
	Abs     string
	Written bool
}

// Writer resolves and writes file specs below a root directory.
type Writer struct {
	root    string
	reg     *registry.Registry
	logger  *slog.Logger
	workers int
	dryRun  bool
	perm    os.FileMode
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the writer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWorkers bounds the number of files written concurrently.
func WithWorkers(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithDryRun resolves paths without touching the filesystem.
func WithDryRun(dryRun bool) Option {
	return func(w *Writer) { w.dryRun = dryRun }
}

// New creates a writer rooted at root that names directories from reg.
func New(root string, reg *registry.Registry, opts ...Option) *Writer {
	w := &Writer{
		root:    root,
		reg:     reg,
		logger:  slog.New(slog.DiscardHandler),
		workers: runtime.GOMAXPROCS(0),
		perm:    0o644,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Resolve computes the location of every spec without writing. Two specs
// that resolve to the same file are an error.
func (w *Writer) Resolve(specs []FileSpec) ([]Result, error) {
	gens := make(map[numbering.SchemaLayer]pathgen.Generator)
	seen := make(map[string]string, len(specs))
	results := make([]Result, 0, len(specs))

	for _, spec := range specs {
		fp, err := w.resolve(gens, spec)
		if err != nil {
			return results, err
		}
		if prev, ok := seen[fp.Path]; ok {
			return results, fmt.Errorf("%s and %s both resolve to %s", prev, spec.Code, fp.Path)
		}
		seen[fp.Path] = spec.Code
		results = append(results, Result{Spec: spec, Path: fp, Abs: filepath.Join(w.root, fp.Path)})
	}
	return results, nil
}

func (w *Writer) resolve(gens map[numbering.SchemaLayer]pathgen.Generator, spec FileSpec) (pathgen.FilePath, error) {
	c, err := numbering.DecomposeWith(w.reg.CodeEncoding(), spec.Code)
	if err != nil {
		return pathgen.FilePath{}, err
	}
	gen, ok := gens[c.Layer]
	if !ok {
		gen, err = pathgen.ForLayer(c.Layer, w.reg, pathgen.WithLogger(w.logger))
		if err != nil {
			return pathgen.FilePath{}, err
		}
		gens[c.Layer] = gen
	}
	if spec.Kind == (pathgen.Kind{}) {
		return gen.GeneratePath(spec.Code, spec.Name)
	}
	return gen.GenerateArtifactPath(spec.Code, spec.Name, spec.Kind)
}

// Write resolves every spec and writes the files concurrently. Each file is
// replaced atomically. Results are returned in spec order.
func (w *Writer) Write(ctx context.Context, specs []FileSpec) ([]Result, error) {
	results, err := w.Resolve(specs)
	if err != nil {
		return nil, err
	}
	if w.dryRun {
		for _, r := range results {
			w.logger.Info("would write", slog.String("path", r.Abs))
		}
		return results, nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)

	for i := range results {
		r := &results[i]
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := fsutil.WriteFileAtomic(r.Abs, r.Spec.Content, w.perm); err != nil {
				return fmt.Errorf("failed to write %s: %w", r.Path.Path, err)
			}
			r.Written = true
			w.logger.Debug("wrote file", slog.String("path", r.Abs), slog.Int("bytes", len(r.Spec.Content)))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
