package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/vaultflow/config"
	"github.com/kbukum/vaultflow/httpclient"
	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/process"
	"github.com/kbukum/vaultflow/search"
	"github.com/kbukum/vaultflow/steps"
	"github.com/kbukum/vaultflow/vault"
	"github.com/kbukum/vaultflow/vector"
)

// BuildDeps constructs the services steps run against from cfg. Nothing
// here dials out; connections happen on first use.
func BuildDeps(cfg *config.AppConfig, log *logger.Logger, now func() time.Time) (*steps.Deps, error) {
	if now == nil {
		now = time.Now
	}
	f := cfg.Vault.Folders
	v, err := vault.Open(cfg.Vault.Path,
		vault.WithClock(now),
		vault.WithLogger(log),
		vault.WithFolders(vault.Folders{
			Sources:   f.Sources,
			Summaries: f.Summaries,
			Entities:  f.Entities,
			Index:     f.Index,
			Logs:      f.Logs,
			Daily:     f.Daily,
			Weekly:    f.Weekly,
			Inbox:     f.Inbox,
		}),
	)
	if err != nil {
		return nil, err
	}

	searx, err := search.NewSearx(search.SearxConfig{
		BaseURL:       cfg.Search.BaseURL,
		Timeout:       cfg.Search.Timeout,
		RatePerSecond: cfg.Search.RatePerSecond,
		Language:      cfg.Search.Language,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	store, err := vector.NewQdrantStore(vector.QdrantConfig{
		URL:        cfg.Vector.URL,
		APIKey:     cfg.Vector.APIKey,
		Collection: cfg.Vector.Collection,
		VectorSize: cfg.Vector.VectorSize,
		Retries:    cfg.Vector.Retries,
		Backoff:    cfg.Vector.Backoff,
		Timeout:    cfg.Vector.Timeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	embedder, err := newEmbedder(cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	downloads, err := httpclient.New(httpclient.Config{
		Timeout: 2 * time.Minute,
		Retry:   httpclient.DefaultRetryConfig(),
	})
	if err != nil {
		return nil, err
	}

	transcriber, err := process.NewTranscriber(process.TranscriberConfig{
		Command: cfg.Transcribe.Command,
		Args:    cfg.Transcribe.Args,
		Model:   cfg.Transcribe.Model,
		Timeout: cfg.Transcribe.Timeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}

	return &steps.Deps{
		Vault:       v,
		Searcher:    capped{Searcher: searx, max: cfg.Search.MaxResults},
		Index:       vector.NewIndex(embedder, store, cfg.Vector.BatchSize),
		HTTP:        downloads,
		Transcriber: transcriber,
		Services:    map[string]steps.ReadyChecker{"qdrant": store},
		Clock:       now,
		Log:         log,
	}, nil
}

// newEmbedder returns the Ollama embedder, or the hashing embedder when
// embed_model is "hash" (no embedding service available).
func newEmbedder(cfg config.VectorConfig) (vector.Embedder, error) {
	if cfg.EmbedModel == "hash" {
		return vector.HashEmbedder{Dim: cfg.VectorSize}, nil
	}
	return vector.NewOllamaEmbedder(vector.OllamaConfig{
		URL:     cfg.EmbedURL,
		Model:   cfg.EmbedModel,
		Timeout: cfg.Timeout,
	})
}

// capped bounds the per-query result count to search.max_results.
type capped struct {
	search.Searcher
	max int
}

func (c capped) Search(ctx context.Context, query string, limit int) search.Iterator {
	if c.max > 0 && (limit <= 0 || limit > c.max) {
		limit = c.max
	}
	return c.Searcher.Search(ctx, query, limit)
}
