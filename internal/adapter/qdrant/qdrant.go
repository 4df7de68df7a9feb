package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var _ port.VectorIndex = (*Index)(nil)

const manifestSuffix = "__manifest"

// manifestPointID is the one point of the manifest collection.
var manifestPointID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("docqa:manifest")).String()

// Index is a Qdrant collection accessed over the REST API. The manifest is
// kept as the payload of a single point in a companion collection.
type Index struct {
	client     *resty.Client
	collection string
	metric     string

	mu      sync.Mutex
	ensured bool

	// manifestMu serializes manifest check-and-set within this process.
	manifestMu sync.Mutex
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Distance   string
	Timeout    time.Duration
}

func New(cfg Config) (*Index, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		return nil, fmt.Errorf("%w: qdrant url is required", domain.ErrConfig)
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "document_chunks"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}

	return &Index{
		client:     client,
		collection: collection,
		metric:     chooseMetric(cfg.Distance),
	}, nil
}

func chooseMetric(metric string) string {
	switch strings.ToLower(strings.TrimSpace(metric)) {
	case "euclid", "euclidean", "l2":
		return "Euclid"
	case "manhattan", "l1":
		return "Manhattan"
	case "dot", "dotproduct":
		return "Dot"
	default:
		return "Cosine"
	}
}

// PointID maps a chunk ID to the UUID Qdrant requires. The chunk ID itself
// travels in the payload.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type searchResult struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type apiError struct {
	Status any `json:"status"`
}

func (x *Index) Upsert(ctx context.Context, objects []domain.IndexedObject) error {
	if len(objects) == 0 {
		return nil
	}
	dim := len(objects[0].Vector)
	m, err := x.Manifest(ctx)
	if err != nil {
		return err
	}
	if m != nil {
		dim = m.Dimension
	}
	points := make([]point, 0, len(objects))
	for _, o := range objects {
		if len(o.Vector) != dim {
			return fmt.Errorf("%w: object %s has dimension %d, index expects %d",
				domain.ErrDimensionMismatch, o.ID, len(o.Vector), dim)
		}
		points = append(points, point{
			ID:     PointID(o.ID),
			Vector: o.Vector,
			Payload: map[string]any{
				"chunk_id": o.ID,
				"doc_id":   o.DocID,
				"page":     o.Page,
				"text":     o.Text,
			},
		})
	}

	if err := x.ensureCollection(ctx, x.collection, dim, x.metric); err != nil {
		return err
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", x.collection)
	return x.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil)
}

func (x *Index) Query(ctx context.Context, vector []float32, topK int) ([]domain.RetrievalHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	m, err := x.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	if len(vector) != m.Dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index holds %d",
			domain.ErrDimensionMismatch, len(vector), m.Dimension)
	}

	var out struct {
		Result []searchResult `json:"result"`
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	path := fmt.Sprintf("/collections/%s/points/search", x.collection)
	if err := x.do(ctx, http.MethodPost, path, req, &out); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	hits := make([]domain.RetrievalHit, 0, len(out.Result))
	for _, r := range out.Result {
		hit := domain.RetrievalHit{ID: fmt.Sprint(r.ID), Score: r.Score}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			hit.ID = v
		}
		if v, ok := r.Payload["doc_id"].(string); ok {
			hit.DocID = v
		}
		if v, ok := r.Payload["page"].(float64); ok {
			hit.Page = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			hit.Text = v
		}
		// distances grow with dissimilarity
		if x.metric == "Euclid" || x.metric == "Manhattan" {
			hit.Score = -hit.Score
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// ResetSchema drops the chunk and manifest collections. Missing collections are fine.
func (x *Index) ResetSchema(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, c := range []string{x.collection, x.collection + manifestSuffix} {
		if err := x.do(ctx, http.MethodDelete, "/collections/"+c, nil, nil); err != nil && !isNotFound(err) {
			return err
		}
	}
	x.ensured = false
	return nil
}

func (x *Index) Manifest(ctx context.Context) (*domain.IndexManifest, error) {
	var out struct {
		Result struct {
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s%s/points/%s", x.collection, manifestSuffix, manifestPointID)
	if err := x.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(out.Result.Payload) == 0 {
		return nil, nil
	}
	var m domain.IndexManifest
	if err := json.Unmarshal(out.Result.Payload, &m); err != nil {
		return nil, fmt.Errorf("qdrant: decode manifest: %w", err)
	}
	return &m, nil
}

// SetManifest records m unless a manifest exists. Qdrant has no
// compare-and-set, so the check and the write are atomic per process only.
func (x *Index) SetManifest(ctx context.Context, m domain.IndexManifest) error {
	x.manifestMu.Lock()
	defer x.manifestMu.Unlock()

	cur, err := x.Manifest(ctx)
	if err != nil {
		return err
	}
	if cur != nil {
		if cur.Matches(m) {
			return nil
		}
		return domain.ManifestConflict(*cur, m)
	}

	if m.SchemaVersion == 0 {
		m.SchemaVersion = 1
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	c := x.collection + manifestSuffix
	if err := x.createCollection(ctx, c, 1, "Cosine"); err != nil {
		return err
	}
	body := map[string]any{"points": []point{{ID: manifestPointID, Vector: []float32{1}, Payload: payload}}}
	return x.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", c), body, nil)
}

// DeleteDocument removes the document's points. The manifest is dropped with the last point.
func (x *Index) DeleteDocument(ctx context.Context, docID string) error {
	req := map[string]any{
		"filter": map[string]any{
			"must": []any{map[string]any{
				"key":   "doc_id",
				"match": map[string]any{"value": docID},
			}},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", x.collection)
	if err := x.do(ctx, http.MethodPost, path, req, nil); err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}

	n, err := x.Count(ctx)
	if err != nil || n > 0 {
		return err
	}
	err = x.do(ctx, http.MethodDelete, "/collections/"+x.collection+manifestSuffix, nil, nil)
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (x *Index) Count(ctx context.Context) (int, error) {
	var out struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", x.collection)
	if err := x.do(ctx, http.MethodPost, path, map[string]any{"exact": true}, &out); err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return out.Result.Count, nil
}

func (x *Index) ensureCollection(ctx context.Context, name string, dim int, metric string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.ensured {
		return nil
	}
	if err := x.createCollection(ctx, name, dim, metric); err != nil {
		return err
	}
	x.ensured = true
	return nil
}

// createCollection creates the collection unless it already exists.
func (x *Index) createCollection(ctx context.Context, name string, dim int, metric string) error {
	err := x.do(ctx, http.MethodGet, "/collections/"+name, nil, nil)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": metric,
		},
	}
	return x.do(ctx, http.MethodPut, "/collections/"+name, body, nil)
}

type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant: request failed with status %d: %s", e.code, e.msg)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

// do sends one request. Transport failures and 5xx answers wrap
// domain.ErrIndexUnavailable so callers may retry them.
func (x *Index) do(ctx context.Context, method, path string, body, out any) error {
	var apiErr apiError
	req := x.client.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%w: qdrant %s %s: %v", domain.ErrIndexUnavailable, method, path, err)
	}
	if resp.IsError() {
		se := &statusError{code: resp.StatusCode(), msg: statusMessage(apiErr.Status, resp.Status())}
		if resp.StatusCode() >= 500 {
			return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, se)
		}
		return se
	}
	return nil
}

// statusMessage pulls the error text out of Qdrant's status field, which is
// either "ok" or {"error": "..."}.
func statusMessage(status any, fallback string) string {
	if m, ok := status.(map[string]any); ok {
		if e, ok := m["error"].(string); ok {
			return e
		}
	}
	return fallback
}
