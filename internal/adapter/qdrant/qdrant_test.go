package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

// fakeQdrant implements the handful of REST endpoints the index uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]map[string]point
	distance    map[string]string
	failures    int
	apiKeys     []string
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{
		collections: make(map[string]map[string]point),
		distance:    make(map[string]string),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"status": map[string]any{"error": "Not found"}})
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	if f.failures > 0 {
		f.failures--
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": map[string]any{"error": "overloaded"}})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "collections" {
		notFound(w)
		return
	}
	name := parts[1]
	coll, exists := f.collections[name]

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		if !exists {
			notFound(w)
			return
		}
		writeJSON(w, 200, map[string]any{"result": map[string]any{"status": "green"}, "status": "ok"})

	case len(parts) == 2 && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.collections[name] = make(map[string]point)
		f.distance[name] = body.Vectors.Distance
		writeJSON(w, 200, map[string]any{"result": true, "status": "ok"})

	case len(parts) == 2 && r.Method == http.MethodDelete:
		delete(f.collections, name)
		writeJSON(w, 200, map[string]any{"result": exists, "status": "ok"})

	case !exists:
		notFound(w)

	case len(parts) == 3 && parts[2] == "points" && r.Method == http.MethodPut:
		var body struct {
			Points []point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			coll[p.ID] = p
		}
		writeJSON(w, 200, map[string]any{"result": map[string]any{"status": "completed"}, "status": "ok"})

	case len(parts) == 4 && parts[2] == "points" && parts[3] == "search":
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		var results []searchResult
		for _, p := range coll {
			var dot float64
			for i := range p.Vector {
				dot += float64(p.Vector[i]) * float64(body.Vector[i])
			}
			results = append(results, searchResult{ID: p.ID, Score: dot, Payload: p.Payload})
		}
		sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
		if len(results) > body.Limit {
			results = results[:body.Limit]
		}
		writeJSON(w, 200, map[string]any{"result": results, "status": "ok"})

	case len(parts) == 4 && parts[2] == "points" && parts[3] == "delete":
		var body struct {
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for id, p := range coll {
			if p.Payload["doc_id"] == body.Filter.Must[0].Match.Value {
				delete(coll, id)
			}
		}
		writeJSON(w, 200, map[string]any{"result": map[string]any{"status": "completed"}, "status": "ok"})

	case len(parts) == 4 && parts[2] == "points" && parts[3] == "count":
		writeJSON(w, 200, map[string]any{"result": map[string]any{"count": len(coll)}, "status": "ok"})

	case len(parts) == 4 && parts[2] == "points" && r.Method == http.MethodGet:
		p, ok := coll[parts[3]]
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, 200, map[string]any{"result": map[string]any{"id": p.ID, "payload": p.Payload}, "status": "ok"})

	default:
		notFound(w)
	}
}

func newTestIndex(t *testing.T, distance string) (*Index, *fakeQdrant) {
	t.Helper()
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	idx, err := New(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "document_chunks", Distance: distance})
	require.NoError(t, err)
	return idx, fake
}

func TestIndex_EmptyIsQueryable(t *testing.T) {
	idx, _ := newTestIndex(t, "Cosine")
	ctx := context.Background()

	m, err := idx.Manifest(ctx)
	require.NoError(t, err)
	assert.Nil(t, m)

	hits, err := idx.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, idx.ResetSchema(ctx), "reset on a fresh server is fine")
}

func TestIndex_UpsertQueryDelete(t *testing.T) {
	idx, fake := newTestIndex(t, "Cosine")
	ctx := context.Background()

	require.NoError(t, idx.SetManifest(ctx, domain.IndexManifest{Provider: "tfidf:2", Dimension: 2}))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexedObject{
		{ID: "a_p1_c0", Vector: []float32{1, 0}, Text: "alpha", DocID: "a", Page: 1},
		{ID: "b_p3_c4", Vector: []float32{0, 1}, Text: "beta", DocID: "b", Page: 3},
	}))
	assert.Equal(t, "Cosine", fake.distance["document_chunks"])
	assert.Contains(t, fake.collections["document_chunks"], PointID("a_p1_c0"))

	hits, err := idx.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, domain.RetrievalHit{ID: "b_p3_c4", Text: "beta", DocID: "b", Page: 3, Score: 1}, hits[0])

	m, err := idx.Manifest(ctx)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "tfidf:2", m.Provider)
	assert.Equal(t, 2, m.Dimension)

	require.NoError(t, idx.DeleteDocument(ctx, "a"))
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, idx.DeleteDocument(ctx, "b"))
	m, err = idx.Manifest(ctx)
	require.NoError(t, err)
	assert.Nil(t, m)

	for _, k := range fake.apiKeys {
		assert.Equal(t, "secret", k)
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	idx, _ := newTestIndex(t, "Cosine")
	ctx := context.Background()

	require.NoError(t, idx.SetManifest(ctx, domain.IndexManifest{Provider: "p", Dimension: 3}))
	err := idx.Upsert(ctx, []domain.IndexedObject{{ID: "x", Vector: []float32{1, 0}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = idx.Query(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIndex_ResetSchemaTwice(t *testing.T) {
	idx, fake := newTestIndex(t, "Cosine")
	ctx := context.Background()

	require.NoError(t, idx.SetManifest(ctx, domain.IndexManifest{Provider: "p", Dimension: 1}))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexedObject{{ID: "x", Vector: []float32{1}, DocID: "d"}}))

	require.NoError(t, idx.ResetSchema(ctx))
	require.NoError(t, idx.ResetSchema(ctx))
	assert.Empty(t, fake.collections)

	// the collection is recreated on the next upsert
	require.NoError(t, idx.SetManifest(ctx, domain.IndexManifest{Provider: "q", Dimension: 2}))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexedObject{{ID: "y", Vector: []float32{1, 0}, DocID: "d"}}))
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIndex_DistanceScoresAreNegated(t *testing.T) {
	idx, fake := newTestIndex(t, "euclidean")
	ctx := context.Background()

	require.NoError(t, idx.SetManifest(ctx, domain.IndexManifest{Provider: "p", Dimension: 1}))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexedObject{{ID: "x", Vector: []float32{2}, DocID: "d"}}))
	assert.Equal(t, "Euclid", fake.distance["document_chunks"])

	hits, err := idx.Query(ctx, []float32{3}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, -6.0, hits[0].Score)
}

func TestIndex_ServerErrorsAreRetryable(t *testing.T) {
	idx, fake := newTestIndex(t, "Cosine")
	fake.failures = 1

	_, err := idx.Count(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestPointIDStable(t *testing.T) {
	assert.Equal(t, PointID("doc_p1_c0"), PointID("doc_p1_c0"))
	assert.NotEqual(t, PointID("doc_p1_c0"), PointID("doc_p1_c1"))
}

func TestIndex_SetManifestCreateIfAbsent(t *testing.T) {
	idx, _ := newTestIndex(t, "Cosine")
	ctx := context.Background()

	candidates := []domain.IndexManifest{
		{Provider: "fake:three", Dimension: 3},
		{Provider: "fake:four", Dimension: 4},
	}
	errs := make([]error, len(candidates))
	var wg sync.WaitGroup
	for i, m := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = idx.SetManifest(ctx, m)
		}()
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		}
	}
	assert.Equal(t, 1, won, "exactly one manifest is recorded")

	m, err := idx.Manifest(ctx)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.NoError(t, idx.SetManifest(ctx, *m), "recording the same manifest again is a no-op")
	other := candidates[0]
	if m.Provider == other.Provider {
		other = candidates[1]
	}
	assert.ErrorIs(t, idx.SetManifest(ctx, other), domain.ErrDimensionMismatch)
}
