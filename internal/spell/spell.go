// Package spell turns free text into its spelled-out form.
//
// Every input character produces exactly one [Token], in input order. A
// character is uppercased on its own (so the character count never changes)
// and looked up in an [alphabet.Table]. The space character becomes a break
// marker, every other hit becomes a word, and anything the table does not
// know becomes the word [alphabet.Fallback]. Spelling never fails.
package spell

import (
	"fmt"
	"unicode"

	"github.com/MrWong99/spellin/pkg/alphabet"
)

// Kind distinguishes words from break markers.
type Kind int

const (
	// KindWord is a spelled word, including the fallback word.
	KindWord Kind = iota

	// KindBreak separates word groups. Only the space character produces it.
	KindBreak
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindBreak:
		return "break"
	}
	return "unknown"
}

// MarshalText implements [encoding.TextMarshaler].
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "word":
		*k = KindWord
	case "break":
		*k = KindBreak
	default:
		return fmt.Errorf("spell: unknown token kind %q", b)
	}
	return nil
}

// Token is one unit of spelling output.
type Token struct {
	// Kind is the token type.
	Kind Kind `json:"kind"`

	// Text is the display text: the mapped word, the break text, or the
	// fallback word.
	Text string `json:"text"`

	// Symbol is the normalised input character the token was produced from.
	Symbol string `json:"symbol"`
}

// Word returns a word token for text. The symbol is left empty.
func Word(text string) Token {
	return Token{Kind: KindWord, Text: text}
}

// IsBreak reports whether t is the break marker produced by a space.
func IsBreak(t Token) bool {
	return t.Kind == KindBreak
}

// Option configures an [Engine].
type Option func(*Engine)

// WithTable replaces the lookup table. Default: [alphabet.Default].
func WithTable(t alphabet.Table) Option {
	return func(e *Engine) {
		e.table = t
	}
}

// WithExtendedNumbers selects [alphabet.Extended] so digits are read with
// their maritime code words.
func WithExtendedNumbers() Option {
	return WithTable(alphabet.Extended)
}

// Engine spells text with a fixed table. It is read-only after construction
// and safe for concurrent use.
type Engine struct {
	table alphabet.Table
}

// New returns an [Engine] configured with opts.
func New(opts ...Option) *Engine {
	e := &Engine{table: alphabet.Default}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Spell returns one token per character of input. The result is never nil.
func (e *Engine) Spell(input string) []Token {
	tokens := make([]Token, 0, len(input))
	for _, r := range input {
		tokens = append(tokens, e.token(string(unicode.ToUpper(r))))
	}
	return tokens
}

func (e *Engine) token(symbol string) Token {
	word, ok := e.table.Lookup(symbol)
	switch {
	case !ok:
		return Token{Kind: KindWord, Text: alphabet.Fallback, Symbol: symbol}
	case alphabet.IsBreakSymbol(symbol):
		return Token{Kind: KindBreak, Text: word, Symbol: symbol}
	default:
		return Token{Kind: KindWord, Text: word, Symbol: symbol}
	}
}

var defaultEngine = New()

// Spell spells input with the default table.
func Spell(input string) []Token {
	return defaultEngine.Spell(input)
}

// Words returns the display text of every token.
func Words(tokens []Token) []string {
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
	}
	return words
}

// Groups splits tokens at break markers. Breaks themselves are dropped, and
// consecutive breaks yield empty groups so the layout keeps blank lines.
func Groups(tokens []Token) [][]Token {
	groups := [][]Token{{}}
	for _, t := range tokens {
		if IsBreak(t) {
			groups = append(groups, []Token{})
			continue
		}
		last := len(groups) - 1
		groups[last] = append(groups[last], t)
	}
	return groups
}

// Stats summarises a token sequence.
type Stats struct {
	Words     int
	Breaks    int
	Fallbacks int
}

// Count tallies tokens by kind. Fallback words are counted both as words and
// as fallbacks.
func Count(tokens []Token) Stats {
	var s Stats
	for _, t := range tokens {
		if IsBreak(t) {
			s.Breaks++
			continue
		}
		s.Words++
		if t.Text == alphabet.Fallback {
			s.Fallbacks++
		}
	}
	return s
}
