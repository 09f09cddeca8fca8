// Package normalizer folds recipe text into the canonical form used by both
// the index and the query path. It decomposes accented characters, drops
// anything outside ASCII, strips punctuation, lower-cases, and collapses
// whitespace.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes characters (NFKD) and removes every non-ASCII rune,
// which drops combining accents and leaves the base letter.
func asciiFold() transform.Transformer {
	return transform.Chain(
		norm.NFKD,
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
}

// Normalize returns the canonical form of text. It is idempotent and never
// fails: input it cannot transform yields "".
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	folded, _, err := transform.String(asciiFold(), text)
	if err != nil {
		return ""
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Fold removes accents and lower-cases text but keeps punctuation and
// spacing, for callers that still need to see separators such as "." or ":".
func Fold(text string) string {
	folded, _, err := transform.String(asciiFold(), text)
	if err != nil {
		return ""
	}
	return strings.ToLower(folded)
}

// Value normalizes v when it is a string and returns "" for anything else.
func Value(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Normalize(s)
}

// Terms splits normalized text into whitespace-separated terms.
func Terms(text string) []string {
	return strings.Fields(Normalize(text))
}
