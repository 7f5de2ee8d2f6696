// Package normalize provides utilities for normalizing and comparing names.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Name cleans a user-supplied display name: NFC composition, null bytes
// dropped, surrounding whitespace trimmed and inner whitespace runs collapsed
// to a single space.
// "  Ursula   K.  Le Guin " -> "Ursula K. Le Guin".
func Name(raw string) string {
	s := norm.NFC.String(sanitizeString(raw))
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Key returns the comparison key for a name. Two names with the same key
// are considered the same catalog entry.
// "Le Guin" and "LE  GUIN" share a key.
func Key(raw string) string {
	// cases.Caser keeps state between calls, so each call gets its own.
	return cases.Fold().String(Name(raw))
}

// Equal reports whether two names compare equal under Key.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}

// Names cleans every entry, drops blanks and removes duplicates by Key,
// keeping the first spelling seen.
func Names(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		n := Name(r)
		if n == "" {
			continue
		}
		k := Key(n)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out
}

// sanitizeString removes null bytes, which break both SQL text columns and
// JSON encoding.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
