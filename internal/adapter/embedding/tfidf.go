package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/port"
)

var _ port.Embedder = (*TFIDFEmbedder)(nil)

// TFIDFEmbedder is the lexical fallback. IDF weights are fit on each document
// batch; terms are hashed into a fixed number of columns so that vectors from
// separately fitted batches and from queries share one space.
type TFIDFEmbedder struct {
	dimension int
	stopwords bool
	tokenizer *analyzer.Tokenizer
}

type TFIDFOption func(*TFIDFEmbedder)

// WithStopwords drops common English words before hashing. Vectors built with
// and without stopwords do not share a space, so the provider name differs.
func WithStopwords(enabled bool) TFIDFOption {
	return func(e *TFIDFEmbedder) { e.stopwords = enabled }
}

func NewTFIDFEmbedder(maxFeatures int, opts ...TFIDFOption) *TFIDFEmbedder {
	if maxFeatures <= 0 {
		maxFeatures = 4096
	}
	e := &TFIDFEmbedder{dimension: maxFeatures}
	for _, opt := range opts {
		opt(e)
	}
	e.tokenizer = analyzer.NewTokenizer(e.stopwords)
	return e
}

func (e *TFIDFEmbedder) Name() string {
	return tfidfName(e.dimension, e.stopwords)
}

func tfidfName(dimension int, stopwords bool) string {
	name := "tfidf:" + strconv.Itoa(dimension)
	if stopwords {
		name += ":stopwords"
	}
	return name
}

func (e *TFIDFEmbedder) Dimension() int {
	return e.dimension
}

// EmbedDocuments fits smoothed IDF on texts, idf = ln((1+n)/(1+df)) + 1,
// and returns L2-normalized tf*idf vectors.
func (e *TFIDFEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	tfs := make([]map[string]int, len(texts))
	df := make(map[string]int)
	for i, text := range texts {
		tfs[i] = e.tokenizer.TermFrequencies(text)
		for term := range tfs[i] {
			df[term]++
		}
	}

	n := float64(len(texts))
	idf := make(map[string]float64, len(df))
	for term, d := range df {
		idf[term] = math.Log((1+n)/(1+float64(d))) + 1
	}

	vectors := make([][]float32, len(texts))
	for i, tf := range tfs {
		vectors[i] = e.vectorize(tf, func(term string) float64 { return idf[term] })
	}
	return vectors, nil
}

// EmbedQuery weights query terms by raw frequency. Stored vectors are
// normalized, so cosine ranking still favours chunks with rare shared terms.
func (e *TFIDFEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	tf := e.tokenizer.TermFrequencies(text)
	return e.vectorize(tf, func(string) float64 { return 1 }), nil
}

func (e *TFIDFEmbedder) vectorize(tf map[string]int, weight func(string) float64) []float32 {
	dense := make([]float64, e.dimension)
	for term, count := range tf {
		dense[e.column(term)] += float64(count) * weight(term)
	}

	var norm float64
	for _, v := range dense {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dimension)
	if norm == 0 {
		return out
	}
	for i, v := range dense {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *TFIDFEmbedder) column(term string) int {
	h := fnv.New32a()
	h.Write([]byte(term))
	return int(h.Sum32() % uint32(e.dimension))
}
