// Package planner turns an entity manifest into the list of files to write.
//
// For every entity the planner secures a table code, draws codes for the
// requested sibling tables, functions and views from the allocator, and asks
// a ContentSource for each file's body. Allocations are committed as they
// are made; a failure stops at the failing artifact and leaves earlier
// allocations in place.
package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fraiseql/specql-sub006/internal/allocator"
	"github.com/fraiseql/specql-sub006/internal/manifest"
	"github.com/fraiseql/specql-sub006/internal/pathgen"
	"github.com/fraiseql/specql-sub006/internal/writer"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

// Artifact identifies one generated file for a ContentSource.
type Artifact struct {
	Entity string
	Code   numbering.Code
	Kind   pathgen.Kind
	// Name is the display name handed to the path generator.
	Name string
	// Role is the table role, function action or view name.
	Role string
}

// ContentSource produces the body of a generated file.
type ContentSource interface {
	Content(ctx context.Context, a Artifact) ([]byte, error)
}

// ContentFunc adapts a function to ContentSource.
type ContentFunc func(ctx context.Context, a Artifact) ([]byte, error)

// Content calls f.
func (f ContentFunc) Content(ctx context.Context, a Artifact) ([]byte, error) {
	return f(ctx, a)
}

// HeaderSource writes a one-line header naming the artifact. It stands in
// for a real SQL generator.
type HeaderSource struct{}

// Content returns the header line.
func (HeaderSource) Content(_ context.Context, a Artifact) ([]byte, error) {
	return fmt.Appendf(nil, "-- %s %s %s\n", a.Code, a.Kind, a.Name), nil
}

// Planner plans generation against an allocator.
type Planner struct {
	alloc  *allocator.Allocator
	source ContentSource
	logger *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithContentSource sets the source of file bodies.
func WithContentSource(src ContentSource) Option {
	return func(p *Planner) {
		if src != nil {
			p.source = src
		}
	}
}

// WithLogger sets the planner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a planner.
func New(alloc *allocator.Allocator, opts ...Option) *Planner {
	p := &Planner{
		alloc:  alloc,
		source: HeaderSource{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan returns the files for every entity in m, in manifest order. On
// failure it returns the files planned before the failing artifact together
// with the error.
func (p *Planner) Plan(ctx context.Context, m *manifest.Manifest) ([]writer.FileSpec, error) {
	var specs []writer.FileSpec
	for _, e := range m.Entities {
		entitySpecs, err := p.planEntity(ctx, e)
		specs = append(specs, entitySpecs...)
		if err != nil {
			return specs, fmt.Errorf("entity %q: %w", e.Name, err)
		}
		p.logger.Info("planned entity", slog.String("entity", e.Name), slog.Int("files", len(entitySpecs)))
	}
	return specs, nil
}

func (p *Planner) planEntity(ctx context.Context, e manifest.Entity) ([]writer.FileSpec, error) {
	var specs []writer.FileSpec
	add := func(a Artifact) error {
		content, err := p.source.Content(ctx, a)
		if err != nil {
			return fmt.Errorf("failed to render %s %s: %w", a.Kind, a.Code, err)
		}
		specs = append(specs, writer.FileSpec{Code: a.Code.String(), Name: a.Name, Kind: a.Kind, Content: content})
		return nil
	}

	table, err := p.tableCode(ctx, e)
	if err != nil {
		return specs, err
	}
	if err := add(Artifact{Entity: e.Name, Code: table, Kind: pathgen.KindTable, Name: e.Name, Role: "primary"}); err != nil {
		return specs, err
	}

	for _, f := range e.Features {
		if !f.IsTable() {
			continue
		}
		code, err := p.alloc.AssignTableFile(ctx, e.Name, string(f))
		if err != nil {
			return specs, err
		}
		if err := add(Artifact{Entity: e.Name, Code: code, Kind: pathgen.KindTable, Name: e.Name, Role: string(f)}); err != nil {
			return specs, err
		}
	}

	if e.Has(manifest.FeatureComments) {
		if err := add(Artifact{Entity: e.Name, Code: table, Kind: pathgen.KindComments, Name: e.Name, Role: "comments"}); err != nil {
			return specs, err
		}
	}
	if e.Has(manifest.FeatureTests) {
		if err := add(Artifact{Entity: e.Name, Code: table, Kind: pathgen.KindTest, Name: e.Name, Role: "tests"}); err != nil {
			return specs, err
		}
	}

	for _, action := range e.Functions {
		code, err := p.alloc.AssignFunction(ctx, e.Name, action)
		if err != nil {
			return specs, err
		}
		name := "fn_" + e.Name + "." + action
		if err := add(Artifact{Entity: e.Name, Code: code, Kind: pathgen.KindFunction, Name: name, Role: action}); err != nil {
			return specs, err
		}
	}

	for _, view := range e.Views {
		code, err := p.alloc.AssignReadEntity(ctx, e.Domain, e.Subdomain, view)
		if err != nil {
			return specs, err
		}
		kind, name := pathgen.SplitViewName(view)
		if err := add(Artifact{Entity: e.Name, Code: code, Kind: kind, Name: name, Role: view}); err != nil {
			return specs, err
		}
	}
	return specs, nil
}

// tableCode registers an explicit code, or allocates one. An entity that is
// already registered keeps its code either way.
func (p *Planner) tableCode(ctx context.Context, e manifest.Entity) (numbering.Code, error) {
	if e.TableCode != "" {
		if _, err := p.alloc.RegisterEntity(ctx, e.Name, e.TableCode, e.Domain, e.Subdomain); err != nil {
			return numbering.Code{}, err
		}
	}
	return p.alloc.AllocateEntity(ctx, e.Name, e.Domain, e.Subdomain)
}
