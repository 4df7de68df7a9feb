package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only whitespace", " \t\n ", ""},
		{"collapses runs", "a   b\n\n\tc", "a b c"},
		{"non-breaking space", "a\u00a0\u00a0b", "a b"},
		{"control characters", "a\x00b\x07c\x7fd", "a b c d"},
		{"glyphs removed", "• first ■ second", "first second"},
		{"glyph between words leaves one space", "a ● b", "a b"},
		{"trims edges", "  hello world  ", "hello world"},
		{"unicode kept", "café naïve", "café naïve"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"   lead and trail  ",
		"x\x01 \x02y",
		"◆◇◦ mixed\tbullets ● here □",
		"line one.\r\nline two.\fline three.",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %q", in)
	}
}

func TestCleanPages(t *testing.T) {
	pages := []string{"  a  b ", "", "•c"}

	out, removed := CleanPages(pages)

	assert.Equal(t, []string{"a b", "", "c"}, out)
	assert.Equal(t, 5, removed)
}
