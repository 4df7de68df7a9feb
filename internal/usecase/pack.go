package usecase

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"docqa/internal/domain"
)

const contextSeparator = "\n\n"

// PackUseCase assembles retrieved hits into prompt context under a character budget.
type PackUseCase struct {
	maxChars int
}

// NewPackUseCase creates a new pack use case.
func NewPackUseCase(maxChars int) *PackUseCase {
	if maxChars <= 0 {
		maxChars = 2000
	}
	return &PackUseCase{maxChars: maxChars}
}

// Pack builds context with the configured budget.
func (u *PackUseCase) Pack(hits []domain.RetrievalHit) domain.Context {
	return BuildContext(hits, u.maxChars)
}

// BuildContext visits hits in rank order and appends "text [doc_id:page]"
// parts separated by blank lines while the total, separators included, stays
// within maxChars. The first usable hit is always taken. Packing stops at the
// first part that does not fit.
func BuildContext(hits []domain.RetrievalHit, maxChars int) domain.Context {
	var (
		parts []string
		used  []domain.RetrievalHit
		total int
	)

	for _, h := range hits {
		text := strings.TrimSpace(h.Text)
		if text == "" {
			continue
		}
		part := text + citation(h)
		size := utf8.RuneCountInString(part)
		if len(parts) > 0 {
			size += len(contextSeparator)
		}

		if total+size > maxChars {
			if len(parts) == 0 {
				parts = append(parts, part)
				used = append(used, h)
			}
			break
		}
		parts = append(parts, part)
		used = append(used, h)
		total += size
	}

	return domain.Context{
		Text: strings.Join(parts, contextSeparator),
		Used: used,
	}
}

func citation(h domain.RetrievalHit) string {
	if h.DocID == "" {
		return ""
	}
	return " [" + h.DocID + ":" + strconv.Itoa(h.Page) + "]"
}
