package usecase

import (
	"context"
	"strings"
	"time"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/metrics"
)

// SnippetChars caps the text of each returned source.
const SnippetChars = 400

// AskUseCase answers a question from the indexed documents.
type AskUseCase struct {
	retrieve    *RetrieveUseCase
	pack        *PackUseCase
	answer      *AnswerUseCase
	defaultTopK int
	log         logger.Logger
	metrics     *metrics.Metrics
}

func NewAskUseCase(
	retrieve *RetrieveUseCase,
	pack *PackUseCase,
	answer *AnswerUseCase,
	defaultTopK int,
	log logger.Logger,
	m *metrics.Metrics,
) *AskUseCase {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if log == nil {
		log = logger.Default()
	}
	return &AskUseCase{
		retrieve:    retrieve,
		pack:        pack,
		answer:      answer,
		defaultTopK: defaultTopK,
		log:         log,
		metrics:     m,
	}
}

// Ask retrieves, packs and answers. Sources follow the rank order of the
// hits that made it into the context.
func (u *AskUseCase) Ask(ctx context.Context, req domain.AskRequest) (domain.Answer, error) {
	start := time.Now()
	ans, err := u.ask(ctx, req)
	if err != nil {
		u.metrics.QueryAnswered("error")
		u.log.Warn("Question failed", "error", err)
		return domain.Answer{}, err
	}
	u.metrics.QueryAnswered("ok")
	u.log.Info("Question answered",
		"sources", len(ans.Sources),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return ans, nil
}

func (u *AskUseCase) ask(ctx context.Context, req domain.AskRequest) (domain.Answer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.Answer{}, domain.Invalid(domain.ErrInvalidInput, "Query must not be empty")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = u.defaultTopK
	}

	hits, err := u.retrieve.Retrieve(ctx, query, topK)
	if err != nil {
		return domain.Answer{}, err
	}
	packed := u.pack.Pack(hits)
	u.log.Debug("Context assembled", "hits", len(hits), "used", len(packed.Used), "chars", len(packed.Text))

	text, err := u.answer.Answer(ctx, query, packed.Text, req.Model)
	if err != nil {
		return domain.Answer{}, err
	}

	sources := make([]domain.Source, 0, len(packed.Used))
	for _, h := range packed.Used {
		sources = append(sources, domain.Source{
			DocID:       h.DocID,
			Page:        h.Page,
			TextSnippet: truncate(h.Text, SnippetChars),
		})
	}
	return domain.Answer{Answer: text, Sources: sources}, nil
}

// truncate keeps at most n runes.
func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
