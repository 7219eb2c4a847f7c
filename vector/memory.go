package vector

import (
	"context"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store using cosine similarity.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string]Point
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]Point)}
}

func (s *MemoryStore) EnsureCollection(context.Context) error { return nil }

func (s *MemoryStore) Upsert(_ context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		p.Payload = maps.Clone(p.Payload)
		s.points[p.ID] = p
	}
	return nil
}

// Len returns the number of stored points.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func (s *MemoryStore) Search(ctx context.Context, vec []float32, limit int, filter Filter) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(s.points))
	for _, p := range s.points {
		if !matches(p.Payload, filter) {
			continue
		}
		hits = append(hits, Hit{ID: p.ID, Score: cosine(vec, p.Vector), Payload: maps.Clone(p.Payload)})
	}
	slices.SortFunc(hits, func(a, b Hit) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func matches(payload map[string]any, f Filter) bool {
	str := func(k string) string {
		s, _ := payload[k].(string)
		return s
	}
	if f.Source != "" && str("source") != f.Source {
		return false
	}
	if f.Domain != "" && !strings.Contains(str("domain"), f.Domain) {
		return false
	}
	if f.DateFrom != "" && str("date") < f.DateFrom {
		return false
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
