package vector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kbukum/vaultflow/httpclient"
	"github.com/kbukum/vaultflow/logger"
)

// QdrantConfig configures a QdrantStore.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	VectorSize int
	// Retries is the number of extra attempts per request, with Backoff
	// doubling between them.
	Retries int
	Backoff time.Duration
	Timeout time.Duration
}

// QdrantStore is a Store backed by the Qdrant REST API.
type QdrantStore struct {
	http       *httpclient.Client
	collection string
	size       int
	log        *logger.Logger
}

var payloadIndexes = []struct{ field, schema string }{
	{"source", "keyword"},
	{"domain", "keyword"},
	{"date", "text"},
	{"id", "keyword"},
}

// NewQdrantStore creates a store for cfg.Collection. log may be nil.
func NewQdrantStore(cfg QdrantConfig, log *logger.Logger) (*QdrantStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("vector: collection is required")
	}
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("vector: vector size must be positive")
	}
	retry := httpclient.DefaultRetryConfig()
	retry.MaxAttempts = max(cfg.Retries, 0) + 1
	if cfg.Backoff > 0 {
		retry.InitialBackoff = cfg.Backoff
	}
	retry.Jitter = 0

	client, err := httpclient.New(httpclient.Config{
		BaseURL:        cfg.URL,
		Timeout:        cfg.Timeout,
		Auth:           httpclient.APIKeyAuthHeader(cfg.APIKey, "api-key"),
		Retry:          retry,
		CircuitBreaker: httpclient.DefaultCircuitBreakerConfig("qdrant"),
	})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &QdrantStore{
		http:       client,
		collection: cfg.Collection,
		size:       cfg.VectorSize,
		log:        log.WithComponent("qdrant"),
	}, nil
}

func (s *QdrantStore) path(suffix string) string {
	return "/collections/" + url.PathEscape(s.collection) + suffix
}

// Ready checks GET /readyz.
func (s *QdrantStore) Ready(ctx context.Context) error {
	_, err := s.http.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/readyz"})
	return httpclient.ToAppError("qdrant", err)
}

// EnsureCollection creates the collection with cosine distance when it does
// not exist, then creates the payload indexes used by Filter. Index
// creation failures are logged only.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	_, err := s.http.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: s.path("")})
	switch {
	case err == nil:
		return nil
	case !httpclient.IsNotFound(err):
		return httpclient.ToAppError("qdrant", err)
	}

	body := map[string]any{
		"vectors": map[string]any{"size": s.size, "distance": "Cosine"},
	}
	if err := httpclient.PutJSON(ctx, s.http, s.path(""), body, nil); err != nil {
		return httpclient.ToAppError("qdrant", err)
	}
	for _, idx := range payloadIndexes {
		req := map[string]any{"field_name": idx.field, "field_schema": idx.schema}
		if err := httpclient.PutJSON(ctx, s.http, s.path("/index"), req, nil); err != nil {
			s.log.Warn("payload index not created", logger.Fields("field", idx.field, "error", err.Error()))
		}
	}
	s.log.Info("collection created", logger.Fields("collection", s.collection, "size", s.size))
	return nil
}

// Upsert writes points and waits for the operation to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	_, err := s.http.Do(ctx, httpclient.Request{
		Method: http.MethodPut,
		Path:   s.path("/points"),
		Query:  map[string]string{"wait": "true"},
		Body:   map[string]any{"points": points},
	})
	return httpclient.ToAppError("qdrant", err)
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search returns the limit nearest points with payloads.
func (s *QdrantStore) Search(ctx context.Context, vec []float32, limit int, filter Filter) ([]Hit, error) {
	body := map[string]any{
		"vector":       vec,
		"limit":        limit,
		"with_payload": true,
	}
	if f := qdrantFilter(filter); f != nil {
		body["filter"] = f
	}
	var resp qdrantSearchResponse
	if err := httpclient.PostJSON(ctx, s.http, s.path("/points/search"), body, &resp); err != nil {
		return nil, httpclient.ToAppError("qdrant", err)
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{ID: fmt.Sprint(r.ID), Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

func qdrantFilter(f Filter) map[string]any {
	var must []map[string]any
	if f.Source != "" {
		must = append(must, map[string]any{"key": "source", "match": map[string]any{"value": f.Source}})
	}
	if f.Domain != "" {
		must = append(must, map[string]any{"key": "domain", "match": map[string]any{"text": f.Domain}})
	}
	if f.DateFrom != "" {
		must = append(must, map[string]any{"key": "date", "range": map[string]any{"gte": f.DateFrom}})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}
