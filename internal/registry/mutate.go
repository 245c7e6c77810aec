package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

// RegisterEntity records the base table code of an entity in the given
// subdomain. Registering the identical code again is a no-op; a different
// code for a name already present fails with *DuplicateEntityError. The
// subdomain's entity counter is raised past the code's entity digit so the
// allocator never reissues it.
func (r *Registry) RegisterEntity(name, code, domainRef, subdomainRef string) (*EntityRegistration, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("entity name is required")
	}

	c, err := numbering.DecomposeWith(r.CodeEncoding(), code)
	if err != nil {
		return nil, err
	}
	canonical := c.Canonical().String()

	d, s, err := r.Resolve(domainRef, subdomainRef)
	if err != nil {
		return nil, err
	}
	if c.DomainKey() != d.Code || c.SubdomainKey() != s.Code {
		return nil, fmt.Errorf("%w: %s is not in domain %s subdomain %s", ErrScopeMismatch, code, d.Code, s.Code)
	}

	if existing, ok := s.Entities[name]; ok {
		if existing.TableCode == canonical {
			return existing, nil
		}
		return nil, &DuplicateEntityError{Name: name, Existing: existing.TableCode, Incoming: canonical}
	}
	// Entity names are global: name-only operations must address one entity.
	if other, ok := r.GetEntity(name); ok {
		return nil, &DuplicateEntityError{Name: name, Existing: other.TableCode, Incoming: canonical}
	}
	if !r.IsCodeAvailable(canonical) {
		return nil, fmt.Errorf("%w: %s", ErrCodeInUse, canonical)
	}

	reg := &EntityRegistration{
		Name:       name,
		TableCode:  canonical,
		Domain:     d.Code,
		Subdomain:  s.Code,
		AssignedAt: time.Now().UTC(),
	}
	if s.Entities == nil {
		s.Entities = make(map[string]*EntityRegistration)
	}
	s.Entities[name] = reg
	if s.NextEntitySequence <= c.Entity {
		s.NextEntitySequence = c.Entity + 1
	}
	return reg, nil
}

// AddDomain seeds a new domain. The code must be a single non-zero digit.
func (r *Registry) AddDomain(code, name, description string, multiTenant bool, aliases ...string) (*Domain, error) {
	enc := r.CodeEncoding()
	code = strings.ToUpper(code)
	if len(code) != 1 || enc.Digit(code[0]) < 1 {
		return nil, fmt.Errorf("domain code %q must be a single digit from 1 to %c", code, enc.Char(enc.MaxDigit()))
	}
	if name == "" {
		return nil, fmt.Errorf("domain name is required")
	}
	if _, ok := r.DomainsByCode[code]; ok {
		return nil, fmt.Errorf("%w: code %s", ErrDomainExists, code)
	}
	if _, ok := r.GetDomain(name); ok {
		return nil, fmt.Errorf("%w: name %q", ErrDomainExists, name)
	}

	d := &Domain{
		Code:        code,
		Name:        name,
		Description: description,
		Aliases:     aliases,
		MultiTenant: multiTenant,
		Subdomains:  make(map[string]*Subdomain),
	}
	if r.DomainsByCode == nil {
		r.DomainsByCode = make(map[string]*Domain)
	}
	r.DomainsByCode[code] = d
	return d, nil
}

// AddSubdomain seeds a new subdomain under an existing domain. The key is
// normalized to two digits.
func (r *Registry) AddSubdomain(domainRef, key, name, description string) (*Subdomain, error) {
	d, ok := r.GetDomain(domainRef)
	if !ok {
		return nil, NewUnknownDomainError(domainRef)
	}
	norm, err := numbering.NormalizeSubdomainKey(key)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("subdomain name is required")
	}
	if _, ok := d.Subdomains[norm]; ok {
		return nil, fmt.Errorf("%w: code %s in domain %s", ErrSubdomainExists, norm, d.Code)
	}
	if _, ok := d.subdomain(name); ok {
		return nil, fmt.Errorf("%w: name %q in domain %s", ErrSubdomainExists, name, d.Code)
	}

	s := newSubdomain(norm, name, description)
	if d.Subdomains == nil {
		d.Subdomains = make(map[string]*Subdomain)
	}
	d.Subdomains[norm] = s
	return s, nil
}

func newSubdomain(key, name, description string) *Subdomain {
	return &Subdomain{
		Code:                  key,
		Name:                  name,
		Description:           description,
		NextEntitySequence:    1,
		Entities:              make(map[string]*EntityRegistration),
		NextReadEntity:        1,
		ReadEntities:          make(map[string]*ReadEntity),
		NextFunctionSequence:  make(map[string]int),
		NextTableFileSequence: make(map[string]int),
	}
}
