package registry

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// Unmarshal decodes a YAML registry document.
func Unmarshal(data []byte) (*Registry, error) {
	r := New()
	r.SchemaLayers = nil
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, r); err != nil {
			return nil, fmt.Errorf("failed to parse registry: %w", err)
		}
	}
	if r.SchemaLayers == nil {
		r.SchemaLayers = New().SchemaLayers
	}
	r.index()
	return r, nil
}

// Marshal encodes the registry as YAML with two-space indentation.
func (r *Registry) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode registry: %w", err)
	}
	return buf.Bytes(), nil
}

// index fills the key-derived fields that are not serialized and allocates
// nil maps so callers can mutate without checks.
func (r *Registry) index() {
	if r.DomainsByCode == nil {
		r.DomainsByCode = make(map[string]*Domain)
	}
	for code, d := range r.DomainsByCode {
		if d == nil {
			d = &Domain{}
			r.DomainsByCode[code] = d
		}
		d.Code = code
		if d.Subdomains == nil {
			d.Subdomains = make(map[string]*Subdomain)
		}
		for key, s := range d.Subdomains {
			if s == nil {
				s = &Subdomain{}
				d.Subdomains[key] = s
			}
			s.Code = key
			if s.Entities == nil {
				s.Entities = make(map[string]*EntityRegistration)
			}
			if s.ReadEntities == nil {
				s.ReadEntities = make(map[string]*ReadEntity)
			}
			if s.NextFunctionSequence == nil {
				s.NextFunctionSequence = make(map[string]int)
			}
			if s.NextTableFileSequence == nil {
				s.NextTableFileSequence = make(map[string]int)
			}
			for name, e := range s.Entities {
				if e == nil {
					e = &EntityRegistration{}
					s.Entities[name] = e
				}
				e.Name = name
				if e.Domain == "" {
					e.Domain = code
				}
				if e.Subdomain == "" {
					e.Subdomain = key
				}
			}
			for name, re := range s.ReadEntities {
				if re == nil {
					re = &ReadEntity{}
					s.ReadEntities[name] = re
				}
				re.Name = name
			}
		}
	}
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	out := *r
	out.SchemaLayers = maps.Clone(r.SchemaLayers)
	out.DomainsByCode = make(map[string]*Domain, len(r.DomainsByCode))
	for code, d := range r.DomainsByCode {
		dc := *d
		dc.Aliases = slices.Clone(d.Aliases)
		dc.Subdomains = make(map[string]*Subdomain, len(d.Subdomains))
		for key, s := range d.Subdomains {
			sc := *s
			sc.Entities = make(map[string]*EntityRegistration, len(s.Entities))
			for name, e := range s.Entities {
				ec := *e
				ec.Artifacts = maps.Clone(e.Artifacts)
				sc.Entities[name] = &ec
			}
			sc.ReadEntities = make(map[string]*ReadEntity, len(s.ReadEntities))
			for name, re := range s.ReadEntities {
				rc := *re
				rc.Files = slices.Clone(re.Files)
				sc.ReadEntities[name] = &rc
			}
			sc.NextFunctionSequence = maps.Clone(s.NextFunctionSequence)
			sc.NextTableFileSequence = maps.Clone(s.NextTableFileSequence)
			dc.Subdomains[key] = &sc
		}
		out.DomainsByCode[code] = &dc
	}
	return &out
}
