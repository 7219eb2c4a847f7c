package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DefaultBatchSize is the number of texts embedded and upserted at once.
const DefaultBatchSize = 128

// pointNamespace seeds deterministic point ids.
var pointNamespace = uuid.MustParse("6f1d7c4e-3b0a-5e2f-9c8d-0a1b2c3d4e5f")

// Index embeds texts and stores them.
type Index struct {
	embedder  Embedder
	store     Store
	batchSize int

	mu    sync.Mutex
	ready bool
}

// NewIndex pairs embedder with store. batchSize <= 0 uses DefaultBatchSize.
func NewIndex(embedder Embedder, store Store, batchSize int) *Index {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Index{embedder: embedder, store: store, batchSize: batchSize}
}

// Store returns the underlying store.
func (ix *Index) Store() Store { return ix.store }

// Embedder returns the embedder texts are encoded with.
func (ix *Index) Embedder() Embedder { return ix.embedder }

// Ensure creates the store's collection. It succeeds at most once per
// Index; failures are retried on the next call.
func (ix *Index) Ensure(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.ready {
		return nil
	}
	if err := ix.store.EnsureCollection(ctx); err != nil {
		return err
	}
	ix.ready = true
	return nil
}

// PointID derives the id of a point. An "id" already in the payload is
// kept as the identity; otherwise the text and payload are hashed, so
// re-ingesting the same record overwrites instead of duplicating.
func PointID(text string, payload map[string]any) string {
	if id, ok := payload["id"].(string); ok && id != "" {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
		return uuid.NewSHA1(pointNamespace, []byte(id)).String()
	}
	data, _ := json.Marshal(payload)
	return uuid.NewSHA1(pointNamespace, []byte(text+"|"+string(data))).String()
}

// UpsertTexts embeds texts in batches and upserts them with payloads[i].
// payloads may be nil or shorter than texts. The stored payload always
// carries the point "id" and the "text".
func (ix *Index) UpsertTexts(ctx context.Context, texts []string, payloads []map[string]any) (int, error) {
	if len(texts) == 0 {
		return 0, nil
	}
	if err := ix.Ensure(ctx); err != nil {
		return 0, err
	}
	total := 0
	for start := 0; start < len(texts); start += ix.batchSize {
		end := min(start+ix.batchSize, len(texts))
		batch := texts[start:end]
		vectors, err := ix.embedder.Embed(ctx, batch)
		if err != nil {
			return total, err
		}
		if len(vectors) != len(batch) {
			return total, fmt.Errorf("vector: embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}
		points := make([]Point, len(batch))
		for i, text := range batch {
			payload := map[string]any{}
			if j := start + i; j < len(payloads) {
				for k, v := range payloads[j] {
					payload[k] = v
				}
			}
			id := PointID(text, payload)
			if _, ok := payload["id"]; !ok {
				payload["id"] = id
			}
			payload["text"] = text
			points[i] = Point{ID: id, Vector: vectors[i], Payload: payload}
		}
		if err := ix.store.Upsert(ctx, points); err != nil {
			return total, err
		}
		total += len(points)
	}
	return total, nil
}

// SearchText embeds query and returns the nearest limit hits.
func (ix *Index) SearchText(ctx context.Context, query string, limit int, filter Filter) ([]Hit, error) {
	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("vector: embedder returned %d vectors for the query", len(vectors))
	}
	return ix.store.Search(ctx, vectors[0], limit, filter)
}
