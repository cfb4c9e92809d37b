// Package alphabet holds the fixed phonetic spelling tables used by the
// spelling engine.
//
// A [Table] maps one normalised symbol (an uppercase letter, a digit, one of
// the digit-group symbols "00" and "000", a punctuation character, or the
// space character) to the word that is read out for it. Tables are immutable:
// the package-level [Default] and [Extended] values are built once at init and
// every accessor returns copies, so they are safe for concurrent use.
package alphabet

import (
	"maps"
	"slices"
)

const (
	// Space is the symbol that separates word groups. It maps to [BreakWord].
	Space = " "

	// BreakWord is the display text of the break marker.
	BreakWord = "- break -"

	// Fallback is the word emitted for symbols that have no table entry.
	Fallback = "N/A"
)

// letters is the NATO phonetic alphabet keyed by uppercase letter.
var letters = map[string]string{
	"A": "Alfa",
	"B": "Bravo",
	"C": "Charlie",
	"D": "Delta",
	"E": "Echo",
	"F": "Foxtrot",
	"G": "Golf",
	"H": "Hotel",
	"I": "India",
	"J": "Juliet",
	"K": "Kilo",
	"L": "Lima",
	"M": "Mike",
	"N": "November",
	"O": "Oscar",
	"P": "Papa",
	"Q": "Quebec",
	"R": "Romeo",
	"S": "Sierra",
	"T": "Tango",
	"U": "Uniform",
	"V": "Victor",
	"W": "Whiskey",
	"X": "X-ray",
	"Y": "Yankee",
	"Z": "Zulu",
}

var numbers = map[string]string{
	"0":   "Zero",
	"1":   "One",
	"2":   "Two",
	"3":   "Three",
	"4":   "Four",
	"5":   "Five",
	"6":   "Six",
	"7":   "Seven",
	"8":   "Eight",
	"9":   "Nine",
	"00":  "Hundred",
	"000": "Thousand",
}

// extendedNumbers pairs each digit with its maritime code word.
var extendedNumbers = map[string]string{
	"0":   "Zero, nadazero",
	"1":   "One, unaone",
	"2":   "Two, bissotwo",
	"3":   "Three, terrathree",
	"4":   "Four, kartefour",
	"5":   "Five, pantafive",
	"6":   "Six, soxisix",
	"7":   "Seven, setteseven",
	"8":   "Eight, oktoeight",
	"9":   "Nine, novenine",
	"00":  "Hundred",
	"000": "Thousand",
}

var symbols = map[string]string{
	"-": "- dash -",
	".": "- full stop -",
	",": "- comma -",
	"_": "- underscore -",
}

// Table is an immutable symbol → word mapping. The zero value is an empty
// table in which every lookup misses.
type Table struct {
	words map[string]string
}

var (
	// Default is the standard table: NATO letters, plain digit names,
	// punctuation and the break marker.
	Default = build(letters, numbers, symbols)

	// Extended is [Default] with the maritime digit spellings.
	Extended = build(letters, extendedNumbers, symbols)
)

func build(parts ...map[string]string) Table {
	words := make(map[string]string, 64)
	for _, p := range parts {
		maps.Copy(words, p)
	}
	words[Space] = BreakWord
	return Table{words: words}
}

// Lookup returns the word for symbol. Symbols are expected to be normalised
// already (letters uppercased); Lookup itself is case-sensitive.
func (t Table) Lookup(symbol string) (string, bool) {
	w, ok := t.words[symbol]
	return w, ok
}

// Len returns the number of symbols in the table.
func (t Table) Len() int {
	return len(t.words)
}

// Symbols returns every key of the table in ascending order.
func (t Table) Symbols() []string {
	return slices.Sorted(maps.Keys(t.words))
}

// IsBreakSymbol reports whether symbol is the word-group separator.
func IsBreakSymbol(symbol string) bool {
	return symbol == Space
}
