package numbering

import "strings"

// Encoding maps single code positions to digit values.
// Decimal is the contract every registry uses today. Hexadecimal widens each
// position to 16 slots and is only active when a caller opts in explicitly.
type Encoding struct {
	name     string
	alphabet string
}

var (
	// Decimal encodes each position with 0-9.
	Decimal = Encoding{name: "decimal", alphabet: "0123456789"}

	// Hexadecimal encodes each position with 0-9A-F. Codes are case-sensitive:
	// lowercase letters are outside the alphabet.
	Hexadecimal = Encoding{name: "hex", alphabet: "0123456789ABCDEF"}
)

// EncodingByName returns the encoding registered under name.
// The empty string selects Decimal.
func EncodingByName(name string) (Encoding, bool) {
	switch strings.ToLower(name) {
	case "", "decimal", "dec":
		return Decimal, true
	case "hex", "hexadecimal":
		return Hexadecimal, true
	}
	return Encoding{}, false
}

// Name returns the configuration name of the encoding.
func (e Encoding) Name() string {
	if e.alphabet == "" {
		return Decimal.name
	}
	return e.name
}

// MaxDigit is the largest value a single position can hold.
func (e Encoding) MaxDigit() int {
	return len(e.abc()) - 1
}

// Digit returns the value of c, or -1 when c is outside the alphabet.
func (e Encoding) Digit(c byte) int {
	return strings.IndexByte(e.abc(), c)
}

// Char renders v as a single position. v must be within [0, MaxDigit].
func (e Encoding) Char(v int) byte {
	return e.abc()[v]
}

func (e Encoding) abc() string {
	if e.alphabet == "" {
		return Decimal.alphabet
	}
	return e.alphabet
}
