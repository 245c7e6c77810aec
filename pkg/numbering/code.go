// Package numbering implements the fixed-width code grammar used to identify
// generated schema artifacts.
//
// A code is laid out as:
//
//	LL D S E V [F]
//	│  │ │ │ │  └─ file/function sequence (current width only)
//	│  │ │ │ └──── variant digit
//	│  │ │ └────── entity sequence within the subdomain
//	│  │ └──────── subdomain (single digit, two-digit zero-padded in the registry)
//	│  └────────── domain
//	└───────────── schema layer
//
// Legacy codes are six characters wide and stand for the current-width code
// with a file/function sequence of 1. Decompose keeps the width as a tag so
// re-encoding is lossless; Canonical normalizes to the current width.
package numbering

import (
	"fmt"
	"strconv"
)

// Width is the number of characters in a code.
type Width int

// Supported code widths.
const (
	LegacyWidth  Width = 6
	CurrentWidth Width = 7
)

// BaseWidth is the length of a base code: every field except the trailing
// file/function sequence.
const BaseWidth = 6

// ImplicitSequence is the file/function sequence carried by a legacy code.
const ImplicitSequence = 1

// DefaultVariant is the variant digit issued for every allocated code.
const DefaultVariant = 1

// SchemaLayer is the two-character artifact category at the start of a code.
type SchemaLayer string

// Reserved schema layers.
const (
	LayerWriteSide SchemaLayer = "01"
	LayerReadSide  SchemaLayer = "02"
	LayerFunctions SchemaLayer = "03"
)

// Name returns the directory-friendly name of the layer.
func (l SchemaLayer) Name() string {
	switch l {
	case LayerWriteSide:
		return "write_side"
	case LayerReadSide:
		return "read_side"
	case LayerFunctions:
		return "functions"
	}
	return "schema_" + string(l)
}

// Code is a decomposed artifact code. The zero value is not a valid code;
// obtain one from Decompose, NewCode or Derive.
type Code struct {
	Layer     SchemaLayer
	Domain    int
	Subdomain int
	Entity    int
	Variant   int
	Sequence  int
	Width     Width

	enc Encoding
}

// Decompose parses a decimal code of either width.
func Decompose(code string) (Code, error) {
	return DecomposeWith(Decimal, code)
}

// DecomposeWith parses code using the given encoding.
func DecomposeWith(enc Encoding, code string) (Code, error) {
	width := Width(len(code))
	if width != LegacyWidth && width != CurrentWidth {
		return Code{}, NewCodeError(code, fmt.Sprintf("must be %d or %d characters, got %d", LegacyWidth, CurrentWidth, len(code)))
	}

	digits := make([]int, len(code))
	for i := 0; i < len(code); i++ {
		d := enc.Digit(code[i])
		if d < 0 {
			return Code{}, NewCodeError(code, fmt.Sprintf("character %q at position %d is not a %s digit", code[i], i, enc.Name()))
		}
		digits[i] = d
	}

	c := Code{
		Layer:     SchemaLayer([]byte{enc.Char(digits[0]), enc.Char(digits[1])}),
		Domain:    digits[2],
		Subdomain: digits[3],
		Entity:    digits[4],
		Variant:   digits[5],
		Sequence:  ImplicitSequence,
		Width:     width,
		enc:       enc,
	}
	if width == CurrentWidth {
		c.Sequence = digits[6]
	}
	return c, nil
}

// NewCode builds a current-width decimal code with the default variant.
func NewCode(layer SchemaLayer, domain, subdomain, entity, sequence int) (Code, error) {
	return NewCodeWith(Decimal, layer, domain, subdomain, entity, sequence)
}

// NewCodeWith builds a current-width code in the given encoding.
func NewCodeWith(enc Encoding, layer SchemaLayer, domain, subdomain, entity, sequence int) (Code, error) {
	c := Code{
		Layer:     layer,
		Domain:    domain,
		Subdomain: subdomain,
		Entity:    entity,
		Variant:   DefaultVariant,
		Sequence:  sequence,
		Width:     CurrentWidth,
		enc:       enc,
	}
	if err := c.validate(); err != nil {
		return Code{}, err
	}
	return c, nil
}

func (c Code) validate() error {
	enc := c.Encoding()
	if len(c.Layer) != 2 || enc.Digit(c.Layer[0]) < 0 || enc.Digit(c.Layer[1]) < 0 {
		return NewCodeError(string(c.Layer), "schema layer must be two digits")
	}
	fields := []struct {
		name  string
		value int
	}{
		{"domain", c.Domain},
		{"subdomain", c.Subdomain},
		{"entity", c.Entity},
		{"variant", c.Variant},
		{"sequence", c.Sequence},
	}
	for _, f := range fields {
		if f.value < 0 || f.value > enc.MaxDigit() {
			return NewCodeError(string(c.Layer), fmt.Sprintf("%s %d does not fit a single %s digit", f.name, f.value, enc.Name()))
		}
	}
	return nil
}

// Encoding returns the encoding the code was parsed or built with.
func (c Code) Encoding() Encoding {
	if c.enc.alphabet == "" {
		return Decimal
	}
	return c.enc
}

// String re-encodes the code at its own width.
func (c Code) String() string {
	enc := c.Encoding()
	b := make([]byte, 0, CurrentWidth)
	b = append(b, c.Layer...)
	b = append(b, enc.Char(c.Domain), enc.Char(c.Subdomain), enc.Char(c.Entity), enc.Char(c.Variant))
	if c.Width != LegacyWidth {
		b = append(b, enc.Char(c.Sequence))
	}
	return string(b)
}

// Base returns the first six characters: the code without its file/function sequence.
func (c Code) Base() string {
	return c.String()[:BaseWidth]
}

// IsLegacy reports whether the code was written in the six-character form.
func (c Code) IsLegacy() bool {
	return c.Width == LegacyWidth
}

// Canonical returns the current-width form of the code.
func (c Code) Canonical() Code {
	if c.Width == LegacyWidth {
		c.Sequence = ImplicitSequence
	}
	c.Width = CurrentWidth
	return c
}

// LayerPrefix is the schema layer digits, e.g. "01".
func (c Code) LayerPrefix() string {
	return string(c.Layer)
}

// DomainPrefix is the layer plus domain digit, e.g. "012".
func (c Code) DomainPrefix() string {
	return c.LayerPrefix() + string(c.Encoding().Char(c.Domain))
}

// SubdomainPrefix is the domain prefix plus subdomain digit, e.g. "0123".
func (c Code) SubdomainPrefix() string {
	return c.DomainPrefix() + string(c.Encoding().Char(c.Subdomain))
}

// EntityPrefix is the subdomain prefix plus entity sequence, e.g. "01236".
func (c Code) EntityPrefix() string {
	return c.SubdomainPrefix() + string(c.Encoding().Char(c.Entity))
}

// DomainKey is the registry key of the code's domain, e.g. "2".
func (c Code) DomainKey() string {
	return string(c.Encoding().Char(c.Domain))
}

// SubdomainKey is the two-digit registry key of the code's subdomain, e.g. "03".
func (c Code) SubdomainKey() string {
	return SubdomainKey(c.Subdomain)
}

// SameEntity reports whether both codes identify the same entity, ignoring
// schema layer, variant and file/function sequence.
func (c Code) SameEntity(other Code) bool {
	return c.Domain == other.Domain &&
		c.Subdomain == other.Subdomain &&
		c.Entity == other.Entity
}

// SameArtifactKind reports whether both codes identify the same entity in
// the same schema layer.
func (c Code) SameArtifactKind(other Code) bool {
	return c.SameEntity(other) && c.Layer == other.Layer
}

// SubdomainKey renders a subdomain digit as the two-digit registry key.
func SubdomainKey(subdomain int) string {
	return fmt.Sprintf("%02d", subdomain)
}

// ParseSubdomainKey converts a two-digit registry key back to its value.
func ParseSubdomainKey(key string) (int, error) {
	if len(key) != 2 {
		return 0, fmt.Errorf("subdomain key %q must be two digits", key)
	}
	v, err := strconv.Atoi(key)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("subdomain key %q must be two digits", key)
	}
	return v, nil
}

// NormalizeSubdomainKey accepts "3" or "03" and returns "03".
func NormalizeSubdomainKey(key string) (string, error) {
	if len(key) == 1 {
		key = "0" + key
	}
	v, err := ParseSubdomainKey(key)
	if err != nil {
		return "", err
	}
	return SubdomainKey(v), nil
}
