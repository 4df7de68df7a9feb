// Package cleaner normalizes raw extracted page text.
package cleaner

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// glyphs are bullet and decoration characters left behind by PDF and OCR extraction.
var glyphs = map[rune]struct{}{
	'•': {}, '■': {}, '□': {}, '◆': {}, '◇': {}, '◦': {}, '●': {},
}

// Clean normalizes a single page of text. It never fails and Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false

	for _, r := range text {
		if _, ok := glyphs[r]; ok {
			continue
		}
		if r == ' ' || r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}

	return b.String()
}

// CleanPages cleans every page, keeping order and count, and reports how many
// characters were removed in total.
func CleanPages(pages []string) ([]string, int) {
	out := make([]string, len(pages))
	removed := 0
	for i, p := range pages {
		out[i] = Clean(p)
		removed += utf8.RuneCountInString(p) - utf8.RuneCountInString(out[i])
	}
	return out, removed
}
