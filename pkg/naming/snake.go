// Package naming normalizes entity names into the lowercase, underscore
// separated form used in generated directory and file names.
package naming

import (
	"strings"
	"unicode"
)

// Snake converts an entity name to snake_case.
//
// Word boundaries are placed between a lowercase letter and an uppercase
// letter, at the end of an acronym ("HTTPServer" -> "http_server"), between a
// lowercase letter and a digit, and between a digit and a letter. An
// uppercase letter followed by a digit stays in one word, so "HTTPServerV2"
// becomes "http_server_v2". Spaces, hyphens, dots and existing underscores
// are treated as separators and collapsed.
func Snake(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)

	pendingSep := false
	for i, r := range runes {
		if isSeparator(r) {
			pendingSep = b.Len() > 0
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}

		if b.Len() > 0 && (pendingSep || boundary(runes, i)) {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// boundary reports whether a word starts at runes[i].
func boundary(runes []rune, i int) bool {
	if i == 0 {
		return false
	}
	prev, cur := runes[i-1], runes[i]
	switch {
	case isSeparator(prev):
		return false
	case unicode.IsLower(prev) && unicode.IsUpper(cur):
		return true
	case unicode.IsUpper(prev) && unicode.IsUpper(cur):
		return i+1 < len(runes) && unicode.IsLower(runes[i+1])
	case unicode.IsLower(prev) && unicode.IsDigit(cur):
		return true
	case unicode.IsDigit(prev) && unicode.IsLetter(cur):
		return true
	}
	return false
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
}
