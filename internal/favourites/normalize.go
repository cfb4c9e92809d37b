package favourites

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxNormalizeRounds bounds the fold loop in [Normalize].
const maxNormalizeRounds = 8

// Normalize derives the default key for a snippet: the text is lowercased,
// composed to NFC, and every run of whitespace becomes a single "-".
// Leading and trailing runs are kept as "-" too.
//
// Lowercasing can undo a composition and composing can yield a rune that
// lowercases again, so the fold repeats until the key stops changing. That
// makes Normalize idempotent.
func Normalize(text string) string {
	for range maxNormalizeRounds {
		next := fold(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func fold(text string) string {
	text = norm.NFC.String(strings.ToLower(text))

	var b strings.Builder
	b.Grow(len(text))
	inSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
