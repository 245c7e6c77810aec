// Package pathgen derives the location of a generated file from its code.
//
// A path nests four directories, each carrying the code prefix accumulated
// so far followed by a readable name:
//
//	01_write_side/012_crm/0123_customer/01236_contact/0123611_tb_contact.sql
//
// Domain and subdomain names come from a registry snapshot. When a lookup
// misses, a placeholder such as domain_2 or subdomain_03 is used instead and
// reported in FilePath.Fallbacks.
//
// Generators hold no state between calls.
package pathgen

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/pkg/naming"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

var (
	// ErrWrongSchemaLayer reports a code whose layer does not match the generator.
	ErrWrongSchemaLayer = errors.New("wrong schema layer")

	// ErrMissingEntityName reports an entity name that is empty or could not
	// be isolated from a display name.
	ErrMissingEntityName = errors.New("missing entity name")
)

// PathError describes a path that could not be generated.
type PathError struct {
	Layer  numbering.SchemaLayer
	Code   string
	Entity string
	Err    error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("cannot generate %s path for %s (%q): %v", e.Layer.Name(), e.Code, e.Entity, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// FilePath is a generated location relative to the output root.
type FilePath struct {
	Dir       string
	Filename  string
	Path      string
	Code      numbering.Code
	Kind      Kind
	Entity    string
	Fallbacks []string
}

// Generator builds paths for one schema layer.
type Generator interface {
	Layer() numbering.SchemaLayer
	GeneratePath(code, entityName string) (FilePath, error)
	GenerateArtifactPath(code, entityName string, kind Kind) (FilePath, error)
}

// Option configures a generator.
type Option func(*base)

// WithLogger sets the logger that receives fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// ForLayer returns the generator for a schema layer.
func ForLayer(layer numbering.SchemaLayer, reg *registry.Registry, opts ...Option) (Generator, error) {
	switch layer {
	case numbering.LayerWriteSide:
		return NewWriteSide(reg, opts...), nil
	case numbering.LayerReadSide:
		return NewReadSide(reg, opts...), nil
	case numbering.LayerFunctions:
		return NewFunctions(reg, opts...), nil
	}
	return nil, fmt.Errorf("%w: no generator for layer %q", ErrWrongSchemaLayer, layer)
}

// base holds what every layer shares: the registry snapshot and the
// directory assembly.
type base struct {
	layer  numbering.SchemaLayer
	reg    *registry.Registry
	logger *slog.Logger
}

func newBase(layer numbering.SchemaLayer, reg *registry.Registry, opts []Option) base {
	if reg == nil {
		reg = registry.New()
	}
	b := base{layer: layer, reg: reg, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Layer returns the schema layer the generator accepts.
func (b *base) Layer() numbering.SchemaLayer { return b.layer }

func (b *base) fail(code, entity string, err error) (FilePath, error) {
	return FilePath{}, &PathError{Layer: b.layer, Code: code, Entity: entity, Err: err}
}

// decompose parses code and checks it belongs to this generator's layer.
func (b *base) decompose(code string) (numbering.Code, error) {
	c, err := numbering.DecomposeWith(b.reg.CodeEncoding(), code)
	if err != nil {
		return numbering.Code{}, err
	}
	if c.Layer != b.layer {
		return numbering.Code{}, fmt.Errorf("%w: code layer is %s, expected %s", ErrWrongSchemaLayer, c.Layer, b.layer)
	}
	return c, nil
}

// assemble joins the directory chain and filename. stem is the normalized
// entity name used in the entity directory; file is the part after the kind
// prefix in the filename.
func (b *base) assemble(code string, c numbering.Code, stem, file string, kind Kind) FilePath {
	domainName, subdomainName, fallbacks := b.names(c)
	if len(fallbacks) > 0 {
		b.logger.Warn("registry lookup missed, using placeholder directory names",
			slog.String("code", code),
			slog.String("fallbacks", strings.Join(fallbacks, ",")))
	}

	dir := filepath.Join(
		c.LayerPrefix()+"_"+b.reg.LayerName(c.Layer),
		c.DomainPrefix()+"_"+domainName,
		c.SubdomainPrefix()+"_"+subdomainName,
		c.EntityPrefix()+"_"+stem,
	)
	filename := code + "_" + kind.Prefix + file + "." + kind.Ext
	return FilePath{
		Dir:       dir,
		Filename:  filename,
		Path:      filepath.Join(dir, filename),
		Code:      c,
		Kind:      kind,
		Entity:    stem,
		Fallbacks: fallbacks,
	}
}

// names resolves the domain and subdomain directory names.
func (b *base) names(c numbering.Code) (string, string, []string) {
	var fallbacks []string
	domainKey := c.DomainKey()
	subdomainKey := c.SubdomainKey()

	domainName := "domain_" + domainKey
	subdomainName := "subdomain_" + subdomainKey

	d, ok := b.reg.GetDomain(domainKey)
	if ok && d.Name != "" {
		domainName = naming.Snake(d.Name)
	} else {
		fallbacks = append(fallbacks, domainName)
	}

	var s *registry.Subdomain
	if ok {
		s, ok = b.reg.GetSubdomain(d.Code, subdomainKey)
	}
	if ok && s.Name != "" {
		subdomainName = naming.Snake(s.Name)
	} else {
		fallbacks = append(fallbacks, subdomainName)
	}
	return domainName, subdomainName, fallbacks
}

// WriteSide generates paths for write-side tables (layer 01).
type WriteSide struct{ base }

// NewWriteSide creates a write-side generator over a registry snapshot.
func NewWriteSide(reg *registry.Registry, opts ...Option) *WriteSide {
	return &WriteSide{newBase(numbering.LayerWriteSide, reg, opts)}
}

// GeneratePath returns the table file path for code.
func (g *WriteSide) GeneratePath(code, entityName string) (FilePath, error) {
	return g.GenerateArtifactPath(code, entityName, KindTable)
}

// GenerateArtifactPath returns the path of a write-side artifact of kind.
// Legacy six-character codes are accepted.
func (g *WriteSide) GenerateArtifactPath(code, entityName string, kind Kind) (FilePath, error) {
	c, err := g.decompose(code)
	if err != nil {
		return g.fail(code, entityName, err)
	}
	stem := naming.Snake(entityName)
	if stem == "" {
		return g.fail(code, entityName, ErrMissingEntityName)
	}
	return g.assemble(code, c, stem, stem, kind), nil
}

// ReadSide generates paths for read-side views (layer 02).
type ReadSide struct{ base }

// NewReadSide creates a read-side generator over a registry snapshot.
func NewReadSide(reg *registry.Registry, opts ...Option) *ReadSide {
	return &ReadSide{newBase(numbering.LayerReadSide, reg, opts)}
}

// GeneratePath returns the view file path for code. A view name already
// carrying a view prefix (tv_, v_ or mv_) selects that kind; anything else
// is a table view.
func (g *ReadSide) GeneratePath(code, viewName string) (FilePath, error) {
	kind, name := SplitViewName(viewName)
	return g.GenerateArtifactPath(code, name, kind)
}

// GenerateArtifactPath returns the path of a read-side artifact of kind.
// Read-side codes are always seven characters.
func (g *ReadSide) GenerateArtifactPath(code, viewName string, kind Kind) (FilePath, error) {
	c, err := g.decompose(code)
	if err != nil {
		return g.fail(code, viewName, err)
	}
	if c.IsLegacy() {
		return g.fail(code, viewName, numbering.NewCodeError(code, "read-side codes must be seven characters"))
	}
	stem := naming.Snake(viewName)
	if stem == "" {
		return g.fail(code, viewName, ErrMissingEntityName)
	}
	return g.assemble(code, c, stem, stem, kind), nil
}

// Functions generates paths for functions (layer 03).
//
// The entity is taken from the function's display name: an optional fn_
// prefix, the entity, and an optional "." followed by the action, as in
// "fn_Contact.create" or "Contact". The file is named after both parts.
type Functions struct{ base }

// NewFunctions creates a functions generator over a registry snapshot.
func NewFunctions(reg *registry.Registry, opts ...Option) *Functions {
	return &Functions{newBase(numbering.LayerFunctions, reg, opts)}
}

// GeneratePath returns the function file path for code.
func (g *Functions) GeneratePath(code, displayName string) (FilePath, error) {
	return g.GenerateArtifactPath(code, displayName, KindFunction)
}

// GenerateArtifactPath returns the path of a functions-layer artifact of kind.
func (g *Functions) GenerateArtifactPath(code, displayName string, kind Kind) (FilePath, error) {
	c, err := g.decompose(code)
	if err != nil {
		return g.fail(code, displayName, err)
	}
	entity, action, ok := SplitFunctionName(displayName)
	if !ok {
		return g.fail(code, displayName, ErrMissingEntityName)
	}
	stem := naming.Snake(entity)
	file := stem
	if action != "" {
		file += "_" + naming.Snake(action)
	}
	return g.assemble(code, c, stem, file, kind), nil
}

// SplitFunctionName isolates the entity and action of a function display
// name. It reports false when no entity name remains.
func SplitFunctionName(displayName string) (entity, action string, ok bool) {
	name := strings.TrimSpace(displayName)
	name = strings.TrimPrefix(name, "fn_")
	entity, action, _ = strings.Cut(name, ".")
	entity = strings.TrimSpace(entity)
	if naming.Snake(entity) == "" {
		return "", "", false
	}
	return entity, strings.TrimSpace(action), true
}
