package store

import (
	"strings"
	"unicode"
)

// SanitizeQuery strips every character except letters, digits, whitespace,
// hyphen, and underscore, collapses whitespace runs to a single space, and
// lowercases the result. Matching is case-insensitive throughout, so both
// the in-process scorer and the FTS pushdown sanitize with this function.
func SanitizeQuery(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	for _, r := range query {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r == '-' || r == '_':
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// SanitizeQueryTerms sanitizes a query and splits it into terms.
// Returns an empty slice for empty or punctuation-only queries.
func SanitizeQueryTerms(query string) []string {
	sanitized := SanitizeQuery(query)
	if sanitized == "" {
		return []string{}
	}
	return strings.Fields(sanitized)
}

// CountOccurrences counts occurrences of term among the whitespace-
// delimited words of text. Both arguments are expected to already be
// sanitized; matching is word-level, so "note" does not match inside
// "notebook".
func CountOccurrences(text, term string) int {
	if term == "" || text == "" {
		return 0
	}
	count := 0
	for _, word := range strings.Fields(text) {
		if word == term {
			count++
		}
	}
	return count
}
