// Package registry holds the domain registry document: the taxonomy of
// domains and subdomains together with every sequence counter and entity
// registration issued from it.
//
// A Registry is plain data. It performs no locking and no I/O; callers load
// and save it through a state.Store and mutate it inside Store.Update.
package registry

import (
	"slices"
	"strings"
	"time"

	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

// FormatVersion is written into newly created registry documents.
const FormatVersion = "1.0.0"

// Registry is the persisted registry document.
type Registry struct {
	Version       string             `yaml:"version"`
	Revision      int64              `yaml:"revision"`
	Encoding      string             `yaml:"encoding,omitempty"`
	LastUpdated   time.Time          `yaml:"last_updated,omitempty"`
	SchemaLayers  map[string]string  `yaml:"schema_layers,omitempty"`
	DomainsByCode map[string]*Domain `yaml:"domains"`
}

// Domain is a top-level business grouping keyed by a single-digit code.
type Domain struct {
	Code        string                `yaml:"-"`
	Name        string                `yaml:"name"`
	Description string                `yaml:"description,omitempty"`
	Aliases     []string              `yaml:"aliases,omitempty"`
	MultiTenant bool                  `yaml:"multi_tenant"`
	Subdomains  map[string]*Subdomain `yaml:"subdomains"`
}

// Subdomain is a grouping within a domain keyed by a two-digit code. It owns
// the entity, read-entity and per-entity file counters.
type Subdomain struct {
	Code                  string                         `yaml:"-"`
	Name                  string                         `yaml:"name"`
	Description           string                         `yaml:"description,omitempty"`
	NextEntitySequence    int                            `yaml:"next_entity_sequence"`
	Entities              map[string]*EntityRegistration `yaml:"entities"`
	NextReadEntity        int                            `yaml:"next_read_entity"`
	ReadEntities          map[string]*ReadEntity         `yaml:"read_entities"`
	NextFunctionSequence  map[string]int                 `yaml:"next_function_sequence,omitempty"`
	NextTableFileSequence map[string]int                 `yaml:"next_table_file_sequence,omitempty"`
}

// EntityRegistration records the base table code issued to an entity.
// Artifacts maps an artifact key such as "function:create" or "table:audit"
// to the auxiliary code issued for it; entries are only ever added.
type EntityRegistration struct {
	Name       string            `yaml:"-"`
	TableCode  string            `yaml:"table_code"`
	EntityCode string            `yaml:"entity_code,omitempty"`
	Domain     string            `yaml:"domain"`
	Subdomain  string            `yaml:"subdomain"`
	AssignedAt time.Time         `yaml:"assigned_at"`
	Artifacts  map[string]string `yaml:"artifacts,omitempty"`
}

// ReadEntity records a read-side view and the codes issued for its files.
type ReadEntity struct {
	Name       string    `yaml:"-"`
	Code       string    `yaml:"code"`
	Entity     int       `yaml:"entity_number"`
	Files      []string  `yaml:"files,omitempty"`
	AssignedAt time.Time `yaml:"assigned_at"`
}

// New returns an empty registry with the default schema layers.
func New() *Registry {
	r := &Registry{
		Version: FormatVersion,
		SchemaLayers: map[string]string{
			string(numbering.LayerWriteSide): numbering.LayerWriteSide.Name(),
			string(numbering.LayerReadSide):  numbering.LayerReadSide.Name(),
			string(numbering.LayerFunctions): numbering.LayerFunctions.Name(),
		},
		DomainsByCode: make(map[string]*Domain),
	}
	return r
}

// CodeEncoding returns the encoding declared by the document, Decimal when unset.
func (r *Registry) CodeEncoding() numbering.Encoding {
	enc, ok := numbering.EncodingByName(r.Encoding)
	if !ok {
		return numbering.Decimal
	}
	return enc
}

// LayerName returns the configured directory name for a schema layer.
func (r *Registry) LayerName(layer numbering.SchemaLayer) string {
	if name, ok := r.SchemaLayers[string(layer)]; ok && name != "" {
		return name
	}
	return layer.Name()
}

// GetDomain finds a domain by code, name or alias.
func (r *Registry) GetDomain(ref string) (*Domain, bool) {
	if d, ok := r.DomainsByCode[ref]; ok {
		return d, true
	}
	for _, d := range r.Domains() {
		if strings.EqualFold(d.Name, ref) {
			return d, true
		}
	}
	for _, d := range r.Domains() {
		for _, alias := range d.Aliases {
			if strings.EqualFold(alias, ref) {
				return d, true
			}
		}
	}
	return nil, false
}

// GetSubdomain finds a subdomain by key ("03" or "3") or name within a domain.
func (r *Registry) GetSubdomain(domainRef, ref string) (*Subdomain, bool) {
	d, ok := r.GetDomain(domainRef)
	if !ok {
		return nil, false
	}
	return d.subdomain(ref)
}

func (d *Domain) subdomain(ref string) (*Subdomain, bool) {
	if key, err := numbering.NormalizeSubdomainKey(ref); err == nil {
		if s, ok := d.Subdomains[key]; ok {
			return s, true
		}
	}
	for _, s := range d.SortedSubdomains() {
		if strings.EqualFold(s.Name, ref) {
			return s, true
		}
	}
	return nil, false
}

// GetEntity finds a registration by entity name across all subdomains.
func (r *Registry) GetEntity(name string) (*EntityRegistration, bool) {
	for _, d := range r.Domains() {
		for _, s := range d.SortedSubdomains() {
			if e, ok := s.Entities[name]; ok {
				return e, true
			}
		}
	}
	return nil, false
}

// Owner names the registration a code belongs to: the entity for write-side
// and function codes, the view for read-side codes.
func (r *Registry) Owner(c numbering.Code) (string, bool) {
	d, ok := r.DomainsByCode[c.DomainKey()]
	if !ok {
		return "", false
	}
	s, ok := d.Subdomains[c.SubdomainKey()]
	if !ok {
		return "", false
	}
	if c.Layer == numbering.LayerReadSide {
		for _, re := range s.SortedReadEntities() {
			if re.Entity == c.Entity {
				return re.Name, true
			}
		}
		return "", false
	}
	for _, e := range sortedEntities(s) {
		taken, err := numbering.DecomposeWith(r.CodeEncoding(), e.TableCode)
		if err == nil && taken.SameEntity(c) {
			return e.Name, true
		}
	}
	return "", false
}

// GetReadEntity finds a read-side view registration.
func (r *Registry) GetReadEntity(domainRef, subdomainRef, view string) (*ReadEntity, bool) {
	s, ok := r.GetSubdomain(domainRef, subdomainRef)
	if !ok {
		return nil, false
	}
	re, ok := s.ReadEntities[view]
	return re, ok
}

// Domains returns every domain ordered by code.
func (r *Registry) Domains() []*Domain {
	keys := make([]string, 0, len(r.DomainsByCode))
	for k := range r.DomainsByCode {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]*Domain, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.DomainsByCode[k])
	}
	return out
}

// Subdomains returns the subdomains of a domain ordered by key.
func (r *Registry) Subdomains(domainRef string) []*Subdomain {
	d, ok := r.GetDomain(domainRef)
	if !ok {
		return nil
	}
	return d.SortedSubdomains()
}

// SortedSubdomains returns the subdomains ordered by key.
func (d *Domain) SortedSubdomains() []*Subdomain {
	keys := make([]string, 0, len(d.Subdomains))
	for k := range d.Subdomains {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]*Subdomain, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.Subdomains[k])
	}
	return out
}

// Entities returns every registration ordered by domain, subdomain and name.
func (r *Registry) Entities() []*EntityRegistration {
	var out []*EntityRegistration
	for _, d := range r.Domains() {
		for _, s := range d.SortedSubdomains() {
			names := make([]string, 0, len(s.Entities))
			for n := range s.Entities {
				names = append(names, n)
			}
			slices.Sort(names)
			for _, n := range names {
				out = append(out, s.Entities[n])
			}
		}
	}
	return out
}

// SortedReadEntities returns the read-side views of a subdomain ordered by name.
func (s *Subdomain) SortedReadEntities() []*ReadEntity {
	names := make([]string, 0, len(s.ReadEntities))
	for n := range s.ReadEntities {
		names = append(names, n)
	}
	slices.Sort(names)

	out := make([]*ReadEntity, 0, len(names))
	for _, n := range names {
		out = append(out, s.ReadEntities[n])
	}
	return out
}

// Resolve returns the domain and subdomain for a mutating operation, failing
// with a *LookupError instead of reporting a miss.
func (r *Registry) Resolve(domainRef, subdomainRef string) (*Domain, *Subdomain, error) {
	d, ok := r.GetDomain(domainRef)
	if !ok {
		return nil, nil, NewUnknownDomainError(domainRef)
	}
	s, ok := d.subdomain(subdomainRef)
	if !ok {
		return nil, nil, NewUnknownSubdomainError(d.Code, subdomainRef)
	}
	return d, s, nil
}

// Scope returns the subdomain an entity is registered in.
func (r *Registry) Scope(entity *EntityRegistration) (*Domain, *Subdomain, error) {
	return r.Resolve(entity.Domain, entity.Subdomain)
}

// IsCodeAvailable reports whether code is well formed, not reserved, and not
// already held by a registered entity or read view.
func (r *Registry) IsCodeAvailable(code string) bool {
	c, err := numbering.DecomposeWith(r.CodeEncoding(), code)
	if err != nil {
		return false
	}
	if reserved(c) {
		return false
	}

	base := c.Base()
	for _, e := range r.Entities() {
		if taken, err := numbering.DecomposeWith(r.CodeEncoding(), e.TableCode); err == nil && taken.Base() == base {
			return false
		}
	}
	for _, d := range r.DomainsByCode {
		for _, s := range d.Subdomains {
			for _, re := range s.ReadEntities {
				if taken, err := numbering.DecomposeWith(r.CodeEncoding(), re.Code); err == nil && taken.Base() == base {
					return false
				}
			}
		}
	}
	return true
}

// reserved matches base codes made entirely of the lowest or highest digit.
func reserved(c numbering.Code) bool {
	base := c.Base()
	enc := c.Encoding()
	lo, hi := true, true
	for i := 0; i < len(base); i++ {
		d := enc.Digit(base[i])
		lo = lo && d == 0
		hi = hi && d == enc.MaxDigit()
	}
	return lo || hi
}

// Touch stamps the document as modified.
func (r *Registry) Touch(now time.Time) {
	r.LastUpdated = now.UTC()
}
