package registry

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

// Severity classifies a validation issue.
type Severity string

// Issue severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single finding from Validate.
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks the document for structural problems and counter
// inconsistencies that would let the allocator reissue a code.
func (r *Registry) Validate() []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	enc := r.CodeEncoding()
	if _, ok := numbering.EncodingByName(r.Encoding); !ok {
		add(SeverityError, "encoding", "unknown encoding %q", r.Encoding)
	}
	if len(r.DomainsByCode) == 0 {
		add(SeverityError, "domains", "no domains found in registry")
	}

	seen := make(map[string]string)
	names := make(map[string]string)
	for _, d := range r.Domains() {
		dp := "domains." + d.Code
		if len(d.Code) != 1 || enc.Digit(d.Code[0]) < 1 {
			add(SeverityError, dp, "invalid domain code %q", d.Code)
		}
		if d.Name == "" {
			add(SeverityError, dp, "missing name")
		}
		if d.Description == "" {
			add(SeverityWarning, dp, "missing description")
		}

		for _, s := range d.SortedSubdomains() {
			sp := dp + ".subdomains." + s.Code
			v, err := numbering.ParseSubdomainKey(s.Code)
			switch {
			case err != nil:
				add(SeverityError, sp, "invalid subdomain code %q", s.Code)
			case v > enc.MaxDigit():
				add(SeverityError, sp, "subdomain %s cannot be encoded as a single %s digit", s.Code, enc.Name())
			}
			if s.Name == "" {
				add(SeverityError, sp, "missing name")
			}
			if s.NextEntitySequence < 0 {
				add(SeverityError, sp, "next_entity_sequence is negative")
			}
			if s.NextReadEntity < 0 {
				add(SeverityError, sp, "next_read_entity is negative")
			}

			for _, e := range sortedEntities(s) {
				ep := sp + ".entities." + e.Name
				if other, ok := names[e.Name]; ok {
					add(SeverityError, ep, "entity name is also registered at %s", other)
				} else {
					names[e.Name] = sp
				}
				c, err := numbering.DecomposeWith(enc, e.TableCode)
				if err != nil {
					add(SeverityError, ep, "%v", err)
					continue
				}
				if c.DomainKey() != d.Code || c.SubdomainKey() != s.Code {
					add(SeverityError, ep, "table code %s does not belong to domain %s subdomain %s", e.TableCode, d.Code, s.Code)
				}
				if c.Entity >= s.NextEntitySequence {
					add(SeverityError, ep, "entity digit %d is not below next_entity_sequence %d", c.Entity, s.NextEntitySequence)
				}
				for _, key := range slices.Sorted(maps.Keys(e.Artifacts)) {
					ac, err := numbering.DecomposeWith(enc, e.Artifacts[key])
					if err != nil {
						add(SeverityError, ep+".artifacts."+key, "%v", err)
						continue
					}
					if !ac.SameEntity(c) {
						add(SeverityError, ep+".artifacts."+key, "code %s does not belong to entity %s", e.Artifacts[key], e.TableCode)
					}
				}
				if owner, ok := seen[c.Base()]; ok {
					add(SeverityError, ep, "table code %s collides with %s", e.TableCode, owner)
				} else {
					seen[c.Base()] = e.Name
				}
			}

			for _, re := range s.SortedReadEntities() {
				rp := sp + ".read_entities." + re.Name
				c, err := numbering.DecomposeWith(enc, re.Code)
				if err != nil {
					add(SeverityError, rp, "%v", err)
					continue
				}
				if c.Layer != numbering.LayerReadSide {
					add(SeverityError, rp, "read code %s is not in schema layer %s", re.Code, numbering.LayerReadSide)
				}
				if c.Entity >= s.NextReadEntity {
					add(SeverityError, rp, "entity digit %d is not below next_read_entity %d", c.Entity, s.NextReadEntity)
				}
			}

			for _, name := range slices.Sorted(maps.Keys(s.NextFunctionSequence)) {
				if _, ok := s.Entities[name]; !ok {
					add(SeverityWarning, sp+".next_function_sequence."+name, "counter for unregistered entity")
				}
			}
			for _, name := range slices.Sorted(maps.Keys(s.NextTableFileSequence)) {
				if _, ok := s.Entities[name]; !ok {
					add(SeverityWarning, sp+".next_table_file_sequence."+name, "counter for unregistered entity")
				}
			}
		}
	}
	return issues
}

func sortedEntities(s *Subdomain) []*EntityRegistration {
	out := make([]*EntityRegistration, 0, len(s.Entities))
	for _, e := range s.Entities {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *EntityRegistration) int { return strings.Compare(a.Name, b.Name) })
	return out
}
