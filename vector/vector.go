package vector

import "context"

// Point is one stored vector with its payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Hit is a scored search match.
type Hit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Filter narrows a search by payload fields. Zero fields are ignored.
type Filter struct {
	// Source matches the payload "source" exactly.
	Source string
	// Domain matches when the payload "domain" contains it.
	Domain string
	// DateFrom keeps payloads whose "date" (YYYY-MM-DD) is not earlier.
	DateFrom string
}

// IsZero reports an empty filter.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Embedder turns texts into vectors of equal dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists points and answers nearest-neighbour queries.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vec []float32, limit int, filter Filter) ([]Hit, error)
}
