package chunker

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"docqa/internal/domain"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"No terminal punctuation", []string{"No terminal punctuation"}},
		{"One. Two! Three? Four", []string{"One.", "Two!", "Three?", "Four"}},
		{"Version 1.2 is out. Yes.", []string{"Version 1.2 is out.", "Yes."}},
		{"Wait...  what?\nOk.", []string{"Wait...", "what?", "Ok."}},
	}
	for _, tt := range tests {
		got := SplitSentences(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitSentences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewSentenceChunkerRejectsBadLimits(t *testing.T) {
	if _, err := NewSentenceChunker(0, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for max_chars=0, got %v", err)
	}
	if _, err := NewSentenceChunker(10, -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative overlap, got %v", err)
	}
}

func TestSentenceChunkerTwoPages(t *testing.T) {
	c, err := NewSentenceChunker(30, 5)
	if err != nil {
		t.Fatal(err)
	}

	pages := []string{
		"Sentence one. Sentence two. Sentence three.",
		"Another sentence here.",
	}
	chunks, err := c.Chunk("doc1", pages)
	if err != nil {
		t.Fatal(err)
	}

	var page1, page2 []domain.Chunk
	for _, ch := range chunks {
		if utf8.RuneCountInString(ch.Text) > 30 {
			t.Errorf("chunk %s exceeds 30 chars: %q", ch.ID, ch.Text)
		}
		switch ch.Page {
		case 1:
			page1 = append(page1, ch)
		case 2:
			page2 = append(page2, ch)
		}
	}

	if len(page1) < 2 {
		t.Fatalf("expected at least 2 chunks for page 1, got %d", len(page1))
	}
	if len(page2) != 1 {
		t.Fatalf("expected 1 chunk for page 2, got %d", len(page2))
	}
	if page1[0].Text != "Sentence one. Sentence two." {
		t.Errorf("unexpected first chunk %q", page1[0].Text)
	}
	if page1[1].Text != "two. Sentence three." {
		t.Errorf("unexpected second chunk %q", page1[1].Text)
	}
	want := fmt.Sprintf("doc1_p2_c%d", len(page1))
	if page2[0].ID != want {
		t.Errorf("expected page 2 chunk id %s, got %s", want, page2[0].ID)
	}
}

func TestSentenceChunkerSizeBound(t *testing.T) {
	c, _ := NewSentenceChunker(40, 10)
	long := strings.Repeat("x", 60) + "."
	page := "Short one. " + long + " Short two. Short three. Short four."

	chunks, err := c.Chunk("d", []string{page})
	if err != nil {
		t.Fatal(err)
	}

	for _, ch := range chunks {
		n := utf8.RuneCountInString(ch.Text)
		if n <= 40 {
			continue
		}
		if ch.Text != long {
			t.Errorf("oversized chunk must be a single verbatim sentence, got %q", ch.Text)
		}
	}
}

func TestSentenceChunkerIndicesAndIDs(t *testing.T) {
	c, _ := NewSentenceChunker(25, 8)
	pages := []string{
		"Alpha beta gamma. Delta epsilon zeta. Eta theta iota.",
		"",
		"Kappa lambda mu. Nu xi omicron. Pi rho sigma. Tau upsilon.",
	}

	chunks, err := c.Chunk("doc", pages)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if seen[ch.ID] {
			t.Errorf("duplicate chunk id %s", ch.ID)
		}
		seen[ch.ID] = true
		if ch.ID != ChunkID("doc", ch.Page, ch.Index) {
			t.Errorf("id %s does not match page/index", ch.ID)
		}
		if ch.Page == 2 {
			t.Error("empty page must not produce chunks")
		}
		if ch.Text == "" {
			t.Error("chunk has empty text")
		}
	}
}

func TestSentenceChunkerOverlap(t *testing.T) {
	c, _ := NewSentenceChunker(50, 12)
	page := "The first sentence is here. The second one follows it. " +
		"A third sentence appears. Then comes the fourth. Finally the fifth."

	chunks, err := c.Chunk("doc", []string{page})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("need at least 2 chunks, got %d", len(chunks))
	}

	for i := 0; i < len(chunks)-1; i++ {
		prev, next := chunks[i].Text, chunks[i+1].Text
		tail := overlapTail(prev, 12)
		if tail == "" || !strings.HasPrefix(next, tail) {
			t.Errorf("chunk %d (%q) does not start with the tail of chunk %d (%q)", i+1, next, i, prev)
		}
	}
}

func TestSentenceChunkerOverlapShrinksToFit(t *testing.T) {
	c, _ := NewSentenceChunker(30, 10)
	chunks, err := c.Chunk("d", []string{"Alpha beta gamma delta ep. Zeta eta theta iota kap."})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"Alpha beta gamma delta ep.",
		"ep. Zeta eta theta iota kap.",
	}
	var got []string
	for _, ch := range chunks {
		got = append(got, ch.Text)
		if n := utf8.RuneCountInString(ch.Text); n > 30 {
			t.Errorf("chunk %q has %d chars", ch.Text, n)
		}
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSentenceChunkerOverlapDroppedWithoutRoom(t *testing.T) {
	c, _ := NewSentenceChunker(20, 10)
	chunks, err := c.Chunk("d", []string{"Short words here ok. Nineteen chars yes."})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Text != "Nineteen chars yes." {
		t.Errorf("no room for overlap, got %q", chunks[1].Text)
	}
}

func TestSentenceChunkerOverlapLargerThanMax(t *testing.T) {
	c, _ := NewSentenceChunker(20, 100)
	page := "Aa bb cc. Dd ee ff. Gg hh ii. Jj kk ll. Mm nn oo."

	chunks, err := c.Chunk("doc", []string{page})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) == 0 || len(chunks) > 5 {
		t.Fatalf("expected between 1 and 5 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[len(chunks)-1].Text, "Mm nn oo.") {
		t.Errorf("last sentence missing from final chunk: %q", chunks[len(chunks)-1].Text)
	}
}

func TestSentenceChunkerNoOverlap(t *testing.T) {
	c, _ := NewSentenceChunker(15, 0)
	chunks, err := c.Chunk("doc", []string{"One two. Three four. Five six."})
	if err != nil {
		t.Fatal(err)
	}

	var rebuilt []string
	for _, ch := range chunks {
		rebuilt = append(rebuilt, ch.Text)
	}
	if got := strings.Join(rebuilt, " "); got != "One two. Three four. Five six." {
		t.Errorf("chunks without overlap should rebuild the page, got %q", got)
	}
}

func TestSentenceChunkerEmptyInput(t *testing.T) {
	c, _ := NewSentenceChunker(100, 10)

	chunks, err := c.Chunk("doc", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}

	chunks, _ = c.Chunk("doc", []string{"", "  "})
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for blank pages, got %d", len(chunks))
	}
}
