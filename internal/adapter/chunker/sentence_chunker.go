package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"docqa/internal/domain"
)

// SentenceChunker packs whole sentences into chunks of at most maxChars characters.
// Consecutive chunks of a page share the trailing overlap characters of the earlier one.
type SentenceChunker struct {
	maxChars int
	overlap  int
}

func NewSentenceChunker(maxChars, overlap int) (*SentenceChunker, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: max_chars must be positive, got %d", domain.ErrInvalidInput, maxChars)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap_chars must not be negative, got %d", domain.ErrInvalidInput, overlap)
	}
	return &SentenceChunker{
		maxChars: maxChars,
		overlap:  overlap,
	}, nil
}

// Chunk splits every page independently. Chunk indices run across the whole document.
func (c *SentenceChunker) Chunk(docID string, pages []string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	index := 0

	for i, page := range pages {
		pageNum := i + 1
		sentences := SplitSentences(page)
		carry := ""

		for next := 0; next < len(sentences); {
			parts := make([]string, 0, 4)
			length := 0

			// The size bound wins over the overlap: the carried tail shrinks to
			// the room left before the next sentence, and is dropped when none is.
			if carry != "" {
				if budget := c.maxChars - 1 - runeLen(sentences[next]); runeLen(carry) > budget {
					carry = overlapTail(carry, budget)
				}
			}
			if carry != "" {
				parts = append(parts, carry)
				length = runeLen(carry)
			}

			for next < len(sentences) {
				n := runeLen(sentences[next])
				if length > 0 {
					n++
					if length+n > c.maxChars {
						break
					}
				}
				parts = append(parts, sentences[next])
				length += n
				next++
			}

			text := strings.TrimSpace(strings.Join(parts, " "))
			chunks = append(chunks, domain.Chunk{
				ID:    ChunkID(docID, pageNum, index),
				DocID: docID,
				Page:  pageNum,
				Index: index,
				Text:  text,
			})
			index++

			carry = ""
			if next < len(sentences) {
				carry = overlapTail(text, c.overlap)
			}
		}
	}

	return chunks, nil
}

// ChunkID derives the stable identifier of a chunk.
func ChunkID(docID string, page, index int) string {
	return fmt.Sprintf("%s_p%d_c%d", docID, page, index)
}

// SplitSentences splits after '.', '!' or '?' when followed by whitespace.
// Empty segments are dropped.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
		default:
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i+1:])
		if size == 0 || !unicode.IsSpace(r) {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// overlapTail returns the last n characters of text, moved forward to a word
// boundary when the cut falls inside a word and a later boundary exists.
func overlapTail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(text)
	if n >= len(r) {
		return text
	}

	start := len(r) - n
	if !unicode.IsSpace(r[start-1]) && !unicode.IsSpace(r[start]) {
		for j := start; j < len(r)-1; j++ {
			if unicode.IsSpace(r[j]) {
				start = j + 1
				break
			}
		}
	}
	return strings.TrimSpace(string(r[start:]))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
