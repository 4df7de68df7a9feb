package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"docqa/config"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/store"
	"docqa/internal/logger"
	"docqa/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding .docqa/index.db")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./data -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Index manifest (provider, dimension, chunk count)")
		fmt.Println("  2. Similarity of the top hits for the query")
		os.Exit(1)
	}
	_ = godotenv.Load()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fail("Error loading config: %v", err)
	}
	cfg.ApplyEnv(os.Getenv)

	st, err := store.NewBoltStore(cfg.IndexDBPath(*dir))
	if err != nil {
		fail("Error opening index: %v", err)
	}
	defer st.Close()

	index, err := store.NewBoltVectorIndex(st)
	if err != nil {
		fail("Error loading vectors: %v", err)
	}

	ctx := context.Background()
	manifest, err := index.Manifest(ctx)
	if err != nil {
		fail("Error reading manifest: %v", err)
	}
	if manifest == nil {
		fail("Index is empty - run 'docqa ingest' first")
	}
	count, _ := index.Count(ctx)

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks indexed: %d\n", count)
	fmt.Printf("Provider:       %s\n", manifest.Provider)
	fmt.Printf("Dimension:      %d\n", manifest.Dimension)
	fmt.Println()

	chain := embedding.NewChainFromConfig(cfg.Embedding, logger.NewNop(), nil)
	retrieve := usecase.NewRetrieveUseCase(chain, index)

	fmt.Printf("Query: %q\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	hits, err := retrieve.Retrieve(ctx, *query, *topK)
	if err != nil {
		fail("Search error: %v", err)
	}
	if len(hits) == 0 {
		fmt.Println("No hits.")
		return
	}

	total := 0.0
	for i, h := range hits {
		preview := strings.ReplaceAll(h.Text, "\n", " ")
		if r := []rune(preview); len(r) > 150 {
			preview = string(r[:150]) + "..."
		}
		total += h.Score
		fmt.Printf("%d. [%s %.3f] %s page %d\n", i+1, rating(h.Score), h.Score, h.DocID, h.Page)
		fmt.Printf("   %s\n\n", preview)
	}

	avg := total / float64(len(hits))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avg)
	fmt.Printf("  Top-1 similarity:   %.3f\n", hits[0].Score)
	switch {
	case avg > 0.5:
		fmt.Println("  Status: GOOD - retrieval working well")
	case avg > 0.3:
		fmt.Println("  Status: OK - results are somewhat related")
	default:
		fmt.Println("  Status: POOR - consider a semantic provider or re-ingesting")
	}
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
