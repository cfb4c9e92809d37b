package spell_test

import (
	"encoding/json"
	"slices"
	"testing"
	"unicode/utf8"

	"github.com/MrWong99/spellin/internal/spell"
	"github.com/MrWong99/spellin/pkg/alphabet"
)

func TestSpell_Scenario(t *testing.T) {
	t.Parallel()

	got := spell.Words(spell.Spell("RONCTTLA"))
	want := []string{"Romeo", "Oscar", "November", "Charlie", "Tango", "Tango", "Lima", "Alfa"}
	if !slices.Equal(got, want) {
		t.Fatalf("Spell(%q) = %v, want %v", "RONCTTLA", got, want)
	}
	for i, tok := range spell.Spell("RONCTTLA") {
		if spell.IsBreak(tok) {
			t.Errorf("token %d (%q) is a break, want word", i, tok.Text)
		}
	}
}

func TestSpell_BreakBetweenWords(t *testing.T) {
	t.Parallel()

	// Seven letters and one space: one token per character.
	tokens := spell.Spell("HI THERE")
	if len(tokens) != 8 {
		t.Fatalf("len(Spell(%q)) = %d, want 8", "HI THERE", len(tokens))
	}

	var breaks []int
	for i, tok := range tokens {
		if spell.IsBreak(tok) {
			breaks = append(breaks, i)
		}
	}
	if !slices.Equal(breaks, []int{2}) {
		t.Fatalf("break positions = %v, want [2]", breaks)
	}
	if tokens[2].Text != alphabet.BreakWord {
		t.Errorf("break text = %q, want %q", tokens[2].Text, alphabet.BreakWord)
	}
}

func TestSpell_CaseInsensitive(t *testing.T) {
	t.Parallel()

	lower := spell.Words(spell.Spell("hello"))
	upper := spell.Words(spell.Spell("HELLO"))
	if !slices.Equal(lower, upper) {
		t.Errorf("Spell(lower) = %v, Spell(upper) = %v, want equal", lower, upper)
	}
}

func TestSpell_Empty(t *testing.T) {
	t.Parallel()

	got := spell.Spell("")
	if got == nil {
		t.Fatal("Spell(\"\") returned nil, want empty slice")
	}
	if len(got) != 0 {
		t.Fatalf("len(Spell(\"\")) = %d, want 0", len(got))
	}
}

func TestSpell_Fallback(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"?", "!", "é", "\t", "😀", "\xff"} {
		tokens := spell.Spell(in)
		if len(tokens) != 1 {
			t.Errorf("Spell(%q): %d tokens, want 1", in, len(tokens))
			continue
		}
		if tokens[0].Text != alphabet.Fallback {
			t.Errorf("Spell(%q) = %q, want %q", in, tokens[0].Text, alphabet.Fallback)
		}
		if spell.IsBreak(tokens[0]) {
			t.Errorf("Spell(%q): fallback token reported as break", in)
		}
	}
}

func TestSpell_LengthMatchesCharacterCount(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"a",
		"Hello, World.",
		"  double  spaces  ",
		"ß straße",
		"ﬁ ligature",
		"İstanbul",
		"mixed 123_456-789",
		"日本語 テキスト",
		"bad \xff\xfe bytes",
	}
	for _, in := range inputs {
		if got, want := len(spell.Spell(in)), utf8.RuneCountInString(in); got != want {
			t.Errorf("len(Spell(%q)) = %d, want %d", in, got, want)
		}
	}
}

func TestSpell_EveryTableSymbol(t *testing.T) {
	t.Parallel()

	for _, sym := range alphabet.Default.Symbols() {
		if utf8.RuneCountInString(sym) != 1 {
			// Digit groups are only reachable through Table.Lookup.
			continue
		}
		want, _ := alphabet.Default.Lookup(sym)
		got := spell.Spell(sym)
		if len(got) != 1 || got[0].Text != want {
			t.Errorf("Spell(%q) = %+v, want single token %q", sym, got, want)
		}
		if got[0].Symbol != sym {
			t.Errorf("Spell(%q).Symbol = %q, want %q", sym, got[0].Symbol, sym)
		}
	}
}

func TestSpell_DigitGroupsAreNotMerged(t *testing.T) {
	t.Parallel()

	got := spell.Words(spell.Spell("1000"))
	want := []string{"One", "Zero", "Zero", "Zero"}
	if !slices.Equal(got, want) {
		t.Errorf("Spell(%q) = %v, want %v", "1000", got, want)
	}
}

func TestIsBreak(t *testing.T) {
	t.Parallel()

	if !spell.IsBreak(spell.Spell(" ")[0]) {
		t.Error("IsBreak(Spell(\" \")[0]) = false, want true")
	}
	if spell.IsBreak(spell.Spell("A")[0]) {
		t.Error("IsBreak(Spell(\"A\")[0]) = true, want false")
	}
	if spell.IsBreak(spell.Word(alphabet.Fallback)) {
		t.Error("IsBreak(Word(N/A)) = true, want false")
	}
	// A word whose text happens to equal the break text is still a word.
	if spell.IsBreak(spell.Word(alphabet.BreakWord)) {
		t.Error("IsBreak(Word(break text)) = true, want false")
	}
}

func TestEngine_ExtendedNumbers(t *testing.T) {
	t.Parallel()

	e := spell.New(spell.WithExtendedNumbers())
	got := spell.Words(e.Spell("A1"))
	want := []string{"Alfa", "One, unaone"}
	if !slices.Equal(got, want) {
		t.Errorf("Spell(%q) = %v, want %v", "A1", got, want)
	}
}

func TestEngine_CustomTable(t *testing.T) {
	t.Parallel()

	var empty alphabet.Table
	e := spell.New(spell.WithTable(empty))
	tokens := e.Spell("a b")
	if len(tokens) != 3 {
		t.Fatalf("len = %d, want 3", len(tokens))
	}
	for i, tok := range tokens {
		if tok.Text != alphabet.Fallback || spell.IsBreak(tok) {
			t.Errorf("token %d = %+v, want fallback word", i, tok)
		}
	}
}

func TestGroups(t *testing.T) {
	t.Parallel()

	groups := spell.Groups(spell.Spell("AB  C"))
	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}
	sizes := []int{len(groups[0]), len(groups[1]), len(groups[2])}
	if !slices.Equal(sizes, []int{2, 0, 1}) {
		t.Errorf("group sizes = %v, want [2 0 1]", sizes)
	}
}

func TestToken_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(spell.Spell("A "))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	const want = `[{"kind":"word","text":"Alfa","symbol":"A"},{"kind":"break","text":"- break -","symbol":" "}]`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var back []spell.Token
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !spell.IsBreak(back[1]) {
		t.Error("decoded token 1 is not a break")
	}
}

func TestConcurrentSpell(t *testing.T) {
	t.Parallel()

	e := spell.New()
	done := make(chan struct{})
	for range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 100 {
				if len(e.Spell("concurrent use")) != 14 {
					t.Error("unexpected token count")
					return
				}
			}
		}()
	}
	for range 8 {
		<-done
	}
}

func TestCount(t *testing.T) {
	t.Parallel()

	got := spell.Count(spell.Spell("Hi ?!"))
	want := spell.Stats{Words: 4, Breaks: 1, Fallbacks: 2}
	if got != want {
		t.Errorf("Count = %+v, want %+v", got, want)
	}
	if got := spell.Count(nil); got != (spell.Stats{}) {
		t.Errorf("Count(nil) = %+v, want zero", got)
	}
}
