package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fraiseql/specql-sub006/internal/registry"
)

// RegistryYAML is a small registry used across package tests.
//
// Domain 2 (crm) has subdomain 03 (customer) with Company registered as
// entity 5; domain 3 (catalog) has subdomains 01 and 02 with fresh counters.
const RegistryYAML = `version: "1.0.0"
schema_layers:
  "01": write_side
  "02": read_side
  "03": functions
domains:
  "2":
    name: crm
    description: Customer relationship management
    aliases: [management]
    multi_tenant: true
    subdomains:
      "03":
        name: customer
        description: Customer contact entities
        next_entity_sequence: 6
        entities:
          Company:
            table_code: "0123511"
            entity_code: COM
            domain: "2"
            subdomain: "03"
            assigned_at: 2025-11-09T10:00:00Z
        next_read_entity: 1
        read_entities: {}
  "3":
    name: catalog
    description: Products and manufacturers
    subdomains:
      "01":
        name: manufacturer
        description: Manufacturers and brands
        next_entity_sequence: 1
        entities: {}
        next_read_entity: 1
        read_entities: {}
      "02":
        name: product
        description: Product definitions
        next_entity_sequence: 1
        entities: {}
        next_read_entity: 1
        read_entities: {}
`

// NewRegistry parses RegistryYAML.
func NewRegistry(t testing.TB) *registry.Registry {
	t.Helper()
	reg, err := registry.Unmarshal([]byte(RegistryYAML))
	if err != nil {
		t.Fatalf("failed to parse test registry: %v", err)
	}
	return reg
}

// WriteRegistry writes RegistryYAML into dir and returns its path.
func WriteRegistry(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "registry.yaml")
	if err := os.WriteFile(path, []byte(RegistryYAML), 0o644); err != nil {
		t.Fatalf("failed to write test registry: %v", err)
	}
	return path
}
