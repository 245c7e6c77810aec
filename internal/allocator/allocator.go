// Package allocator hands out sequence numbers and codes from the registry.
//
// Every operation is one Store.Update: the document is loaded, the counter
// is read and advanced, and the result is saved before the code is returned.
// An in-process mutex serializes callers sharing an Allocator; the store's
// own lock and revision check cover other processes. Issued values are never
// rolled back, so a failed downstream write leaves a gap in the sequence.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/internal/state"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

// Observer is notified of every allocation outcome.
type Observer interface {
	Allocated(scope registry.Scope, code string)
	Failed(scope registry.Scope, err error)
}

type nopObserver struct{}

func (nopObserver) Allocated(registry.Scope, string) {}
func (nopObserver) Failed(registry.Scope, error)     {}

// Allocator issues codes against a registry store.
type Allocator struct {
	mu       sync.Mutex
	store    state.Store
	logger   *slog.Logger
	observer Observer
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger sets the allocator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithObserver registers an allocation observer, such as a metrics sink.
func WithObserver(o Observer) Option {
	return func(a *Allocator) {
		if o != nil {
			a.observer = o
		}
	}
}

// New creates an allocator over store.
func New(store state.Store, opts ...Option) *Allocator {
	a := &Allocator{
		store:    store,
		logger:   slog.New(slog.DiscardHandler),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store returns the backing store.
func (a *Allocator) Store() state.Store { return a.store }

// errUnchanged aborts an Update whose result was already recorded.
var errUnchanged = errors.New("registry unchanged")

// update runs fn in one store transaction. fn returns the issued value and
// the entity it belongs to; returning errUnchanged reports an existing value
// without writing.
func (a *Allocator) update(ctx context.Context, scope registry.Scope, fn func(reg *registry.Registry) (string, string, error)) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var doc *registry.Registry
	var value, entity string
	err := a.store.Update(ctx, func(reg *registry.Registry) error {
		doc = reg
		var err error
		value, entity, err = fn(reg)
		return err
	})
	if errors.Is(err, errUnchanged) {
		a.logger.Debug("allocation reused", slog.String("scope", string(scope)), slog.String("code", value))
		return value, nil
	}
	if err != nil {
		a.observer.Failed(scope, err)
		a.logger.Debug("allocation failed", slog.String("scope", string(scope)), slog.String("error", err.Error()))
		return "", err
	}

	a.observer.Allocated(scope, value)
	a.logger.Info("allocated",
		slog.String("scope", string(scope)),
		slog.String("code", value),
		slog.String("entity", entity),
		slog.Int64("revision", doc.Revision))

	if rec, ok := a.store.(state.Recorder); ok {
		entry := state.Allocation{Revision: doc.Revision, Scope: scope, Code: value, Entity: entity}
		if err := rec.Record(ctx, entry); err != nil {
			a.logger.Warn("failed to record allocation", slog.String("code", value), slog.String("error", err.Error()))
		}
	}
	return value, nil
}

// AssignEntitySequence returns the subdomain's next entity sequence and
// advances the counter.
func (a *Allocator) AssignEntitySequence(ctx context.Context, domainRef, subdomainRef string) (int, error) {
	v, err := a.update(ctx, registry.ScopeEntity, func(reg *registry.Registry) (string, string, error) {
		d, s, err := reg.Resolve(domainRef, subdomainRef)
		if err != nil {
			return "", "", err
		}
		seq, err := takeEntitySequence(reg, d, s)
		if err != nil {
			return "", "", err
		}
		return strconv.Itoa(seq), "", nil
	})
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

func takeEntitySequence(reg *registry.Registry, d *registry.Domain, s *registry.Subdomain) (int, error) {
	maxDigit := reg.CodeEncoding().MaxDigit()
	seq := s.NextEntitySequence
	if seq > maxDigit {
		return 0, &registry.ExhaustedError{
			Scope: registry.ScopeEntity, Domain: d.Code, Subdomain: s.Code,
			Counter: seq, Max: maxDigit,
		}
	}
	s.NextEntitySequence = seq + 1
	return seq, nil
}

// AssignFunctionSequence issues the entity's next function code. The
// per-entity counter starts at 1.
func (a *Allocator) AssignFunctionSequence(ctx context.Context, entityName string) (numbering.Code, error) {
	return a.assignAuxiliary(ctx, registry.ScopeFunction, entityName, "")
}

// AssignTableFileSequence issues the entity's next table-file code, used for
// the primary table and its audit, info, node and junction siblings.
func (a *Allocator) AssignTableFileSequence(ctx context.Context, entityName string) (numbering.Code, error) {
	return a.assignAuxiliary(ctx, registry.ScopeTableFile, entityName, "")
}

// AssignFunction issues a function code for a named action once; later calls
// for the same action return the recorded code.
func (a *Allocator) AssignFunction(ctx context.Context, entityName, action string) (numbering.Code, error) {
	if action == "" {
		return numbering.Code{}, fmt.Errorf("function action is required")
	}
	return a.assignAuxiliary(ctx, registry.ScopeFunction, entityName, "function:"+action)
}

// AssignTableFile issues a sibling table code for a role such as "audit"
// once; later calls for the same role return the recorded code.
func (a *Allocator) AssignTableFile(ctx context.Context, entityName, role string) (numbering.Code, error) {
	if role == "" {
		return numbering.Code{}, fmt.Errorf("table role is required")
	}
	return a.assignAuxiliary(ctx, registry.ScopeTableFile, entityName, "table:"+role)
}

// assignAuxiliary draws from the function or table-file counter. A non-empty
// key makes the call idempotent through the registration's artifact map.
func (a *Allocator) assignAuxiliary(ctx context.Context, scope registry.Scope, entityName, key string) (numbering.Code, error) {
	var enc numbering.Encoding
	v, err := a.update(ctx, scope, func(reg *registry.Registry) (string, string, error) {
		enc = reg.CodeEncoding()
		e, ok := reg.GetEntity(entityName)
		if !ok {
			return "", "", registry.NewUnknownEntityError(entityName)
		}
		if key != "" {
			if code, ok := e.Artifacts[key]; ok {
				return code, entityName, errUnchanged
			}
		}
		d, s, err := reg.Scope(e)
		if err != nil {
			return "", "", err
		}
		base, err := numbering.DecomposeWith(enc, e.TableCode)
		if err != nil {
			return "", "", fmt.Errorf("entity %q: %w", entityName, err)
		}

		counters := s.NextFunctionSequence
		layer := numbering.LayerFunctions
		if scope == registry.ScopeTableFile {
			counters = s.NextTableFileSequence
			layer = ""
		}

		seq := counters[entityName]
		if seq == 0 {
			seq = 1
		}
		// Sibling tables never take the primary table's slot.
		if scope == registry.ScopeTableFile && seq <= base.Canonical().Sequence {
			seq = base.Canonical().Sequence + 1
		}
		if seq > enc.MaxDigit() {
			return "", "", &registry.ExhaustedError{
				Scope: scope, Domain: d.Code, Subdomain: s.Code, Entity: entityName,
				Counter: seq, Max: enc.MaxDigit(),
			}
		}
		code, err := base.Derive(layer, seq)
		if err != nil {
			return "", "", err
		}
		counters[entityName] = seq + 1

		if key != "" {
			if e.Artifacts == nil {
				e.Artifacts = make(map[string]string)
			}
			e.Artifacts[key] = code.String()
		}
		return code.String(), entityName, nil
	})
	if err != nil {
		return numbering.Code{}, err
	}
	return numbering.DecomposeWith(enc, v)
}

// RegisterEntity records an explicit table code for an entity. The entity's
// table-file counter moves past the primary table's slot.
func (a *Allocator) RegisterEntity(ctx context.Context, entityName, code, domainRef, subdomainRef string) (*registry.EntityRegistration, error) {
	var out *registry.EntityRegistration
	_, err := a.update(ctx, registry.ScopeEntity, func(reg *registry.Registry) (string, string, error) {
		_, s, err := reg.Resolve(domainRef, subdomainRef)
		if err != nil {
			return "", "", err
		}
		_, existed := s.Entities[entityName]

		e, err := reg.RegisterEntity(entityName, code, domainRef, subdomainRef)
		if err != nil {
			return "", "", err
		}
		out = e
		if existed {
			return e.TableCode, entityName, errUnchanged
		}
		reservePrimaryTable(reg.CodeEncoding(), s, e)
		return e.TableCode, entityName, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AllocateEntity assigns the next entity sequence in the subdomain and
// registers the entity with the resulting write-side table code. An entity
// already registered in the subdomain keeps its code.
func (a *Allocator) AllocateEntity(ctx context.Context, entityName, domainRef, subdomainRef string) (numbering.Code, error) {
	var enc numbering.Encoding
	v, err := a.update(ctx, registry.ScopeEntity, func(reg *registry.Registry) (string, string, error) {
		enc = reg.CodeEncoding()
		d, s, err := reg.Resolve(domainRef, subdomainRef)
		if err != nil {
			return "", "", err
		}
		if e, ok := s.Entities[entityName]; ok {
			return e.TableCode, entityName, errUnchanged
		}

		domainDigit := enc.Digit(d.Code[0])
		subdomainDigit, err := numbering.ParseSubdomainKey(s.Code)
		if err != nil {
			return "", "", err
		}
		seq, err := takeEntitySequence(reg, d, s)
		if err != nil {
			return "", "", err
		}
		code, err := numbering.NewCodeWith(enc, numbering.LayerWriteSide, domainDigit, subdomainDigit, seq, 1)
		if err != nil {
			return "", "", err
		}
		e, err := reg.RegisterEntity(entityName, code.String(), d.Code, s.Code)
		if err != nil {
			return "", "", err
		}
		reservePrimaryTable(reg.CodeEncoding(), s, e)
		return e.TableCode, entityName, nil
	})
	if err != nil {
		return numbering.Code{}, err
	}
	return numbering.DecomposeWith(enc, v)
}

// reservePrimaryTable records the registered code as the primary table so
// sibling tables start at the next file sequence.
func reservePrimaryTable(enc numbering.Encoding, s *registry.Subdomain, e *registry.EntityRegistration) {
	c, err := numbering.DecomposeWith(enc, e.TableCode)
	if err != nil {
		return
	}
	if s.NextTableFileSequence[e.Name] <= c.Sequence {
		s.NextTableFileSequence[e.Name] = c.Sequence + 1
	}
	if e.Artifacts == nil {
		e.Artifacts = make(map[string]string)
	}
	e.Artifacts["table:primary"] = e.TableCode
}
