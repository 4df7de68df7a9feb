package analyzer

import (
	"reflect"
	"testing"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer(false)

	got := tok.Tokenize("The Quick brown-fox, 42 jumps!")
	want := []string{"the", "quick", "brown", "fox", "42", "jumps"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestTokenizer_StopwordRemoval(t *testing.T) {
	tok := NewTokenizer(true)

	tokens := tok.Tokenize("the quick brown fox")
	for _, token := range tokens {
		if token == "the" {
			t.Errorf("stopword 'the' should be removed, got %v", tokens)
		}
	}
	if len(tokens) != 3 {
		t.Errorf("expected 3 tokens, got %v", tokens)
	}
}

func TestTokenizer_ShortWordRemoval(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("a I go to é")
	for _, token := range tokens {
		if len([]rune(token)) < 2 {
			t.Errorf("short word should be removed: %s", token)
		}
	}
	if len(tokens) != 2 {
		t.Errorf("expected [go to], got %v", tokens)
	}
}

func TestTokenizer_TermFrequencies(t *testing.T) {
	tok := NewTokenizer(false)

	tf := tok.TermFrequencies("sentence one. Sentence two.")
	if tf["sentence"] != 2 {
		t.Errorf("expected sentence=2, got %d", tf["sentence"])
	}
	if tf["one"] != 1 || tf["two"] != 1 {
		t.Errorf("unexpected frequencies %v", tf)
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer(true)

	tokens := tok.Tokenize("")
	if len(tokens) != 0 {
		t.Errorf("expected 0 tokens for empty input, got %d", len(tokens))
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"hello_world", 1},
		{"hello-world", 2},
		{"page (1, 2)", 3},
		{"123numbers456", 1},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}
