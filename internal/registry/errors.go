package registry

import (
	"errors"
	"fmt"
)

// Sentinels for classifying registry failures with errors.Is.
var (
	ErrUnknownDomain     = errors.New("unknown domain")
	ErrUnknownSubdomain  = errors.New("unknown subdomain")
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrDuplicateEntity   = errors.New("duplicate entity")
	ErrSequenceExhausted = errors.New("sequence exhausted")
	ErrDomainExists      = errors.New("domain already exists")
	ErrSubdomainExists   = errors.New("subdomain already exists")
	ErrCodeInUse         = errors.New("code already in use")
	ErrScopeMismatch     = errors.New("code does not belong to scope")
)

// LookupError reports a taxonomy or entity lookup miss during a mutating operation.
type LookupError struct {
	Kind      error
	Domain    string
	Subdomain string
	Entity    string
}

// NewUnknownDomainError creates a lookup error for a missing domain.
func NewUnknownDomainError(domain string) *LookupError {
	return &LookupError{Kind: ErrUnknownDomain, Domain: domain}
}

// NewUnknownSubdomainError creates a lookup error for a missing subdomain.
func NewUnknownSubdomainError(domain, subdomain string) *LookupError {
	return &LookupError{Kind: ErrUnknownSubdomain, Domain: domain, Subdomain: subdomain}
}

// NewUnknownEntityError creates a lookup error for an unregistered entity.
func NewUnknownEntityError(entity string) *LookupError {
	return &LookupError{Kind: ErrUnknownEntity, Entity: entity}
}

func (e *LookupError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrUnknownEntity):
		return fmt.Sprintf("%v: %q is not registered", e.Kind, e.Entity)
	case errors.Is(e.Kind, ErrUnknownSubdomain):
		return fmt.Sprintf("%v: %q not found in domain %q", e.Kind, e.Subdomain, e.Domain)
	default:
		return fmt.Sprintf("%v: %q not found", e.Kind, e.Domain)
	}
}

func (e *LookupError) Unwrap() error { return e.Kind }

// Scope names the counter an allocation drew from.
type Scope string

// Counter scopes.
const (
	ScopeEntity     Scope = "entity"
	ScopeReadEntity Scope = "read_entity"
	ScopeFunction   Scope = "function"
	ScopeTableFile  Scope = "table_file"
)

// ExhaustedError reports a counter that has issued every slot of its scope.
type ExhaustedError struct {
	Scope     Scope
	Domain    string
	Subdomain string
	Entity    string
	Counter   int
	Max       int
}

func (e *ExhaustedError) Error() string {
	where := fmt.Sprintf("domain %s subdomain %s", e.Domain, e.Subdomain)
	if e.Entity != "" {
		where += fmt.Sprintf(" entity %q", e.Entity)
	}
	return fmt.Sprintf("%s sequence exhausted for %s: next value %d exceeds %d", e.Scope, where, e.Counter, e.Max)
}

func (e *ExhaustedError) Unwrap() error { return ErrSequenceExhausted }

// DuplicateEntityError reports a second registration of a name under a different code.
type DuplicateEntityError struct {
	Name     string
	Existing string
	Incoming string
}

func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("entity %q already registered with code %s, cannot register %s", e.Name, e.Existing, e.Incoming)
}

func (e *DuplicateEntityError) Unwrap() error { return ErrDuplicateEntity }
