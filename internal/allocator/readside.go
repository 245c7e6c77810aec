package allocator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

// AssignReadEntity issues the read-side code for a view in a subdomain. The
// subdomain's read-entity counter supplies the entity digit and the file
// digit is 0. A view that already has a code keeps it.
func (a *Allocator) AssignReadEntity(ctx context.Context, domainRef, subdomainRef, view string) (numbering.Code, error) {
	if view == "" {
		return numbering.Code{}, fmt.Errorf("view name is required")
	}

	var enc numbering.Encoding
	v, err := a.update(ctx, registry.ScopeReadEntity, func(reg *registry.Registry) (string, string, error) {
		enc = reg.CodeEncoding()
		d, s, err := reg.Resolve(domainRef, subdomainRef)
		if err != nil {
			return "", "", err
		}
		if re, ok := s.ReadEntities[view]; ok {
			return re.Code, view, errUnchanged
		}

		n := s.NextReadEntity
		if n == 0 {
			n = 1
		}
		if n > enc.MaxDigit() {
			return "", "", &registry.ExhaustedError{
				Scope: registry.ScopeReadEntity, Domain: d.Code, Subdomain: s.Code,
				Entity: view, Counter: n, Max: enc.MaxDigit(),
			}
		}
		subdomainDigit, err := numbering.ParseSubdomainKey(s.Code)
		if err != nil {
			return "", "", err
		}
		code, err := numbering.NewCodeWith(enc, numbering.LayerReadSide, enc.Digit(d.Code[0]), subdomainDigit, n, 0)
		if err != nil {
			return "", "", err
		}

		s.NextReadEntity = n + 1
		s.ReadEntities[view] = &registry.ReadEntity{
			Name:       view,
			Code:       code.String(),
			Entity:     n,
			Files:      []string{code.String()},
			AssignedAt: time.Now().UTC(),
		}
		return code.String(), view, nil
	})
	if err != nil {
		return numbering.Code{}, err
	}
	return numbering.DecomposeWith(enc, v)
}

// AssignReadFile records an additional file of a registered view, such as
// its comments or a materialized variant, and returns its code.
func (a *Allocator) AssignReadFile(ctx context.Context, domainRef, subdomainRef, view string, fileNum int) (numbering.Code, error) {
	var enc numbering.Encoding
	v, err := a.update(ctx, registry.ScopeReadEntity, func(reg *registry.Registry) (string, string, error) {
		enc = reg.CodeEncoding()
		_, s, err := reg.Resolve(domainRef, subdomainRef)
		if err != nil {
			return "", "", err
		}
		re, ok := s.ReadEntities[view]
		if !ok {
			return "", "", registry.NewUnknownEntityError(view)
		}
		base, err := numbering.DecomposeWith(enc, re.Code)
		if err != nil {
			return "", "", fmt.Errorf("view %q: %w", view, err)
		}
		code, err := base.Derive("", fileNum)
		if err != nil {
			return "", "", err
		}
		if slices.Contains(re.Files, code.String()) {
			return code.String(), view, errUnchanged
		}
		re.Files = append(re.Files, code.String())
		return code.String(), view, nil
	})
	if err != nil {
		return numbering.Code{}, err
	}
	return numbering.DecomposeWith(enc, v)
}
