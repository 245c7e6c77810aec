// Package manifest reads the entity manifest that drives generation.
//
// A manifest lists entities with the taxonomy node they belong to and the
// artifacts to generate for them:
//
//	entities:
//	  - name: Contact
//	    domain: crm
//	    subdomain: customer
//	    features: [audit, comments]
//	    functions: [create, update]
//	    views: [tv_contact]
package manifest

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Feature selects an optional artifact of an entity.
type Feature string

// Features. The table features each add a sibling table file to the entity.
const (
	FeatureAudit    Feature = "audit"
	FeatureInfo     Feature = "info"
	FeatureNode     Feature = "node"
	FeatureJunction Feature = "junction"
	FeatureComments Feature = "comments"
	FeatureTests    Feature = "tests"
)

var features = []Feature{
	FeatureAudit, FeatureInfo, FeatureNode, FeatureJunction,
	FeatureComments, FeatureTests,
}

// IsTable reports whether the feature is a sibling table.
func (f Feature) IsTable() bool {
	switch f {
	case FeatureAudit, FeatureInfo, FeatureNode, FeatureJunction:
		return true
	}
	return false
}

// Entity is one manifest entry. TableCode is optional; without it the code
// is taken from the registry or allocated.
type Entity struct {
	Name      string    `koanf:"name"`
	Domain    string    `koanf:"domain"`
	Subdomain string    `koanf:"subdomain"`
	TableCode string    `koanf:"table_code"`
	Features  []Feature `koanf:"features"`
	Functions []string  `koanf:"functions"`
	Views     []string  `koanf:"views"`
}

// Has reports whether the entity requests feature f.
func (e Entity) Has(f Feature) bool {
	return slices.Contains(e.Features, f)
}

// Manifest is a parsed manifest file.
type Manifest struct {
	Entities []Entity `koanf:"entities"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	var m Manifest
	if err := k.UnmarshalWithConf("", &m, unmarshalConf(&m)); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

// unmarshalConf decodes weakly so numeric domain and subdomain keys need no
// quotes, accepts comma-separated lists and rejects unknown keys.
func unmarshalConf(out *Manifest) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
				trimSpaceHook,
			),
			ErrorUnused:      true,
			WeaklyTypedInput: true,
			Result:           out,
		},
	}
}

// trimSpaceHook trims list items and scalars written as "audit, comments".
func trimSpaceHook(from, to reflect.Kind, data any) (any, error) {
	if from != reflect.String || to != reflect.String {
		return data, nil
	}
	return strings.TrimSpace(data.(string)), nil
}

// Validate checks that every entity names its taxonomy node, that names are
// unique and that every feature is known.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Entities))
	for i, e := range m.Entities {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("entities[%d]: name is required", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("entities[%d]: duplicate entity %q", i, e.Name)
		}
		seen[e.Name] = true
		if e.Domain == "" || e.Subdomain == "" {
			return fmt.Errorf("entity %q: domain and subdomain are required", e.Name)
		}
		for _, f := range e.Features {
			if !slices.Contains(features, f) {
				return fmt.Errorf("entity %q: unknown feature %q", e.Name, f)
			}
		}
		for _, fn := range e.Functions {
			if strings.TrimSpace(fn) == "" {
				return fmt.Errorf("entity %q: empty function name", e.Name)
			}
		}
	}
	return nil
}
