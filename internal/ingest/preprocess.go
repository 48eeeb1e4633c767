package ingest

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted text before it is stored: trims it, drops
// control characters and collapses whitespace runs to single spaces.
func Preprocess(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		case unicode.IsControl(r) || r == '\uFFFD':
			continue
		default:
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
