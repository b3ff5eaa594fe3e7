// Package taxonomy implements form-token extraction and conflict-aware
// resolution of free-text ingredient form descriptions against the canonical
// form taxonomy.
package taxonomy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics strips combining marks so label text like "açaí" matches
// the ASCII taxonomy keys.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize standardizes label text for matching:
//  1. Strips diacritics
//  2. Lowercases
//  3. Collapses runs of non-alphanumeric characters into single spaces
//  4. Trims
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	inGap := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if inGap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			inGap = false
			b.WriteRune(r)
		} else {
			inGap = true
		}
	}

	return b.String()
}

// numericOnly reports whether a token is bare digits. Composed tokens like
// "4:1" or "95%" carry structure and are not numeric-only.
func numericOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
