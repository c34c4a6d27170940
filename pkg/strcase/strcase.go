// Package strcase converts Go identifiers and structured logging keys between naming conventions.
package strcase

import (
	"strings"
	"unicode"
)

// isDelimiter reports whether r separates words in the input.
func isDelimiter(r rune) bool {
	switch r {
	case ' ', '_', '-', '.':
		return true
	default:
		return false
	}
}

// Snake converts a string to snake_case, e.g. a struct field name to its column name.
func Snake(s string) string {
	return convert(s, unicode.LowerCase)
}

// ScreamingSnake converts a string to SCREAMING_SNAKE_CASE, e.g. a logging key to a journal field name.
func ScreamingSnake(s string) string {
	return convert(s, unicode.UpperCase)
}

// convert splits camelCase words, digit runs and delimited words of s
// and joins them with underscores in the given case.
func convert(s string, _case int) string {
	s = strings.TrimSpace(s)

	n := strings.Builder{}
	n.Grow(len(s) + 2) // Allow adding at least 2 underscores without another allocation.

	// prev is 0 at the start and after a delimiter.
	var prev rune
	for _, r := range s {
		if isDelimiter(r) {
			n.WriteByte('_')
			prev = 0

			continue
		}

		if prev != 0 && boundary(prev, r) {
			n.WriteByte('_')
		}

		n.WriteRune(unicode.To(_case, r))
		prev = r
	}

	return n.String()
}

// boundary reports whether a new word starts with r following prev.
func boundary(prev, r rune) bool {
	return unicode.IsNumber(prev) != unicode.IsNumber(r) || unicode.IsLower(prev) && unicode.IsUpper(r)
}
