package alphabet_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/spellin/pkg/alphabet"
)

func TestDefault_Letters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		symbol string
		want   string
	}{
		{"A", "Alfa"},
		{"J", "Juliet"},
		{"X", "X-ray"},
		{"Z", "Zulu"},
	}
	for _, tc := range tests {
		got, ok := alphabet.Default.Lookup(tc.symbol)
		if !ok {
			t.Errorf("Lookup(%q): ok=false, want true", tc.symbol)
			continue
		}
		if got != tc.want {
			t.Errorf("Lookup(%q) = %q, want %q", tc.symbol, got, tc.want)
		}
	}
}

func TestDefault_IsCaseSensitive(t *testing.T) {
	t.Parallel()

	if _, ok := alphabet.Default.Lookup("a"); ok {
		t.Error("Lookup(\"a\"): ok=true, callers must uppercase before lookup")
	}
}

func TestDefault_NumbersAndGroups(t *testing.T) {
	t.Parallel()

	for symbol, want := range map[string]string{
		"0":   "Zero",
		"7":   "Seven",
		"00":  "Hundred",
		"000": "Thousand",
	} {
		got, ok := alphabet.Default.Lookup(symbol)
		if !ok || got != want {
			t.Errorf("Lookup(%q) = (%q, %v), want (%q, true)", symbol, got, ok, want)
		}
	}
}

func TestExtended_Numbers(t *testing.T) {
	t.Parallel()

	got, ok := alphabet.Extended.Lookup("3")
	if !ok || got != "Three, terrathree" {
		t.Errorf("Extended.Lookup(\"3\") = (%q, %v), want (%q, true)", got, ok, "Three, terrathree")
	}
	// Letters are shared with the default table.
	if got, _ := alphabet.Extended.Lookup("Q"); got != "Quebec" {
		t.Errorf("Extended.Lookup(\"Q\") = %q, want %q", got, "Quebec")
	}
}

func TestSpaceMapsToBreak(t *testing.T) {
	t.Parallel()

	for name, table := range map[string]alphabet.Table{"default": alphabet.Default, "extended": alphabet.Extended} {
		got, ok := table.Lookup(alphabet.Space)
		if !ok || got != alphabet.BreakWord {
			t.Errorf("%s: Lookup(space) = (%q, %v), want (%q, true)", name, got, ok, alphabet.BreakWord)
		}
	}
	if !alphabet.IsBreakSymbol(" ") {
		t.Error("IsBreakSymbol(\" \") = false, want true")
	}
	if alphabet.IsBreakSymbol("-") {
		t.Error("IsBreakSymbol(\"-\") = true, want false")
	}
}

func TestSymbols(t *testing.T) {
	t.Parallel()

	syms := alphabet.Default.Symbols()
	// 26 letters + 10 digits + 2 groups + 4 punctuation + space.
	if len(syms) != 43 || alphabet.Default.Len() != 43 {
		t.Fatalf("Symbols() len = %d, Len() = %d, want 43", len(syms), alphabet.Default.Len())
	}
	if !slices.IsSorted(syms) {
		t.Error("Symbols() is not sorted")
	}

	// Mutating the returned slice must not affect the table.
	syms[0] = "mutated"
	if slices.Contains(alphabet.Default.Symbols(), "mutated") {
		t.Error("Symbols() exposed internal state")
	}
}

func TestZeroTable(t *testing.T) {
	t.Parallel()

	var table alphabet.Table
	if _, ok := table.Lookup("A"); ok {
		t.Error("zero Table: Lookup hit, want miss")
	}
}
