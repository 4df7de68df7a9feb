package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"docqa/internal/domain"
)

func TestBuildContext_Budget(t *testing.T) {
	hits := []domain.RetrievalHit{
		{Text: "alpha", DocID: "d1", Page: 1}, // "alpha [d1:1]" = 12
		{Text: "beta", DocID: "d1", Page: 2},  // 2 + "beta [d1:2]" = 13
		{Text: "gamma", DocID: "d2", Page: 1}, // 2 + 12 = 14
	}

	ctx := BuildContext(hits, 25)
	assert.Equal(t, "alpha [d1:1]\n\nbeta [d1:2]", ctx.Text)
	assert.Len(t, ctx.Used, 2)
	assert.LessOrEqual(t, utf8.RuneCountInString(ctx.Text), 25)

	ctx = BuildContext(hits, 1000)
	assert.Len(t, ctx.Used, 3)
}

func TestBuildContext_FirstHitAlwaysIncluded(t *testing.T) {
	long := strings.Repeat("x", 100)
	hits := []domain.RetrievalHit{
		{Text: long, DocID: "d", Page: 1},
		{Text: "short", DocID: "d", Page: 2},
	}

	ctx := BuildContext(hits, 10)
	assert.Equal(t, long+" [d:1]", ctx.Text)
	assert.Len(t, ctx.Used, 1, "assembly stops after an oversized first hit")
}

func TestBuildContext_StopsAtFirstOverflow(t *testing.T) {
	hits := []domain.RetrievalHit{
		{Text: "one", DocID: "d", Page: 1},
		{Text: strings.Repeat("y", 50), DocID: "d", Page: 2},
		{Text: "two", DocID: "d", Page: 3},
	}

	ctx := BuildContext(hits, 30)
	assert.Equal(t, "one [d:1]", ctx.Text)
	assert.Len(t, ctx.Used, 1, "a later hit that would fit is not pulled forward")
}

func TestBuildContext_SkipsEmptyAndCitations(t *testing.T) {
	hits := []domain.RetrievalHit{
		{Text: "   ", DocID: "d", Page: 1},
		{Text: " no citation ", Page: 4},
		{Text: "cited", DocID: "d", Page: 9},
	}

	ctx := BuildContext(hits, 100)
	assert.Equal(t, "no citation\n\ncited [d:9]", ctx.Text)
	assert.Equal(t, []domain.RetrievalHit{hits[1], hits[2]}, ctx.Used)
}

func TestBuildContext_Empty(t *testing.T) {
	ctx := BuildContext(nil, 100)
	assert.Empty(t, ctx.Text)
	assert.Empty(t, ctx.Used)
}

func TestPackUseCase_DefaultBudget(t *testing.T) {
	u := NewPackUseCase(0)
	hit := domain.RetrievalHit{Text: strings.Repeat("z", 1990), DocID: "d", Page: 1}
	ctx := u.Pack([]domain.RetrievalHit{hit, {Text: "tail", DocID: "d", Page: 2}})
	assert.Len(t, ctx.Used, 1)
}
