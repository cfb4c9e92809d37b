// Package render lays out spelled tokens as text for terminals and plain
// HTTP responses.
//
// Two layouts exist. Horizontal puts each word group on one line with the
// break marker on a line of its own between groups. Vertical puts every
// token on its own line. Emphasis of the first letter and zebra shading
// depend on the output [Style]: ANSI escapes for terminals, Markdown
// strong markers, or nothing at all for plain text.
package render

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/spellin/internal/config"
	"github.com/MrWong99/spellin/internal/spell"
)

// Style selects how emphasis and shading are encoded.
type Style int

const (
	// StylePlain emits bare text. Emphasis and zebra shading are dropped.
	StylePlain Style = iota

	// StyleANSI uses terminal escape sequences.
	StyleANSI

	// StyleMarkdown marks the strong first letter with "**". Zebra shading
	// has no Markdown equivalent and is dropped.
	StyleMarkdown
)

// wordSep separates words on a horizontal line. Words may contain single
// spaces themselves ("- full stop -").
const wordSep = "  "

const (
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
	ansiShade = "\x1b[48;5;236m"
	ansiReset = "\x1b[0m"
)

// Options controls the layout.
type Options struct {
	Orientation    config.Orientation
	StrongFirstCap bool
	Zebra          bool
	Style          Style
}

// FromConfig builds [Options] from the display section of the config.
func FromConfig(d config.DisplayConfig, style Style) Options {
	return Options{
		Orientation:    d.Orientation,
		StrongFirstCap: d.StrongFirstCap,
		Zebra:          d.Zebra,
		Style:          style,
	}
}

// line is one output row before styling.
type line struct {
	words   []string
	isBreak bool
}

// Write renders tokens to w. Every line, including the last, ends in "\n".
// No tokens produce no output.
func Write(w io.Writer, tokens []spell.Token, opts Options) error {
	row := 0
	for _, l := range layout(tokens, opts.Orientation) {
		var s string
		if l.isBreak {
			s = opts.breakLine(l.words[0])
		} else {
			s = opts.wordLine(l.words, row)
			row++
		}
		if _, err := io.WriteString(w, s+"\n"); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	return nil
}

// String renders tokens and returns the result.
func String(tokens []spell.Token, opts Options) string {
	var b strings.Builder
	// strings.Builder never fails.
	_ = Write(&b, tokens, opts)
	return b.String()
}

func layout(tokens []spell.Token, o config.Orientation) []line {
	var lines []line
	if o == config.OrientationVertical {
		for _, t := range tokens {
			lines = append(lines, line{words: []string{t.Text}, isBreak: spell.IsBreak(t)})
		}
		return lines
	}

	var cur []string
	for _, t := range tokens {
		if !spell.IsBreak(t) {
			cur = append(cur, t.Text)
			continue
		}
		if len(cur) > 0 {
			lines = append(lines, line{words: cur})
			cur = nil
		}
		lines = append(lines, line{words: []string{t.Text}, isBreak: true})
	}
	if len(cur) > 0 {
		lines = append(lines, line{words: cur})
	}
	return lines
}

func (o Options) wordLine(words []string, row int) string {
	styled := make([]string, len(words))
	for i, w := range words {
		styled[i] = o.word(w)
	}
	s := strings.Join(styled, wordSep)
	if o.Zebra && o.Style == StyleANSI && row%2 == 1 {
		// Re-apply the shade after every reset emitted by bold first letters.
		s = ansiShade + strings.ReplaceAll(s, ansiReset, ansiReset+ansiShade) + ansiReset
	}
	return s
}

func (o Options) word(w string) string {
	if !o.StrongFirstCap || o.Style == StylePlain {
		return w
	}
	w = strings.TrimSpace(w)
	_, size := utf8.DecodeRuneInString(w)
	if size == 0 {
		return w
	}
	first, rest := w[:size], w[size:]
	switch o.Style {
	case StyleANSI:
		return ansiBold + first + ansiReset + rest
	case StyleMarkdown:
		return "**" + first + "**" + rest
	}
	return w
}

func (o Options) breakLine(text string) string {
	if o.Style == StyleANSI {
		return ansiDim + text + ansiReset
	}
	return text
}
