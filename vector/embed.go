package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/kbukum/vaultflow/httpclient"
)

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// OllamaEmbedder calls the Ollama /api/embed endpoint.
type OllamaEmbedder struct {
	http  *httpclient.Client
	model string
}

// NewOllamaEmbedder creates an embedder for cfg.Model.
func NewOllamaEmbedder(cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("vector: embedding model is required")
	}
	client, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.URL,
		Timeout: cfg.Timeout,
		Retry:   httpclient.DefaultRetryConfig(),
	})
	if err != nil {
		return nil, err
	}
	return &OllamaEmbedder{http: client, model: cfg.Model}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	req := map[string]any{"model": e.model, "input": texts}
	if err := httpclient.PostJSON(ctx, e.http, "/api/embed", req, &resp); err != nil {
		return nil, httpclient.ToAppError("ollama", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("vector: ollama returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// HashEmbedder is a deterministic bag-of-words embedder using feature
// hashing. Vectors are L2-normalized. It needs no model and is used when no
// embedding service is configured.
type HashEmbedder struct {
	Dim int
}

func (e HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.Dim <= 0 {
		return nil, fmt.Errorf("vector: hash embedder dimension must be positive")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.Dim)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			sum := h.Sum32()
			sign := float32(1)
			if sum&1 == 1 {
				sign = -1
			}
			vec[int(sum>>1)%e.Dim] += sign
		}
		normalize(vec)
		out[i] = vec
	}
	return out, nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}
