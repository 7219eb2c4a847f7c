package search

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/kbukum/vaultflow/httpclient"
	"github.com/kbukum/vaultflow/logger"
)

// DefaultLimit applies when Search is called with limit <= 0.
const DefaultLimit = 10

// SearxConfig configures a SearxNG client.
type SearxConfig struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSecond limits page requests; zero disables limiting.
	RatePerSecond float64
	Language      string
	// MaxPages bounds how far an iterator pages; defaults to 5.
	MaxPages int
}

// Searx queries a SearxNG instance through its JSON API.
type Searx struct {
	http     *httpclient.Client
	log      *logger.Logger
	language string
	maxPages int
}

type searxResponse struct {
	Results []struct {
		Title         string   `json:"title"`
		URL           string   `json:"url"`
		Content       string   `json:"content"`
		Engine        string   `json:"engine"`
		Engines       []string `json:"engines"`
		Score         float64  `json:"score"`
		PublishedDate string   `json:"publishedDate"`
	} `json:"results"`
}

// NewSearx creates a SearxNG searcher. log may be nil.
func NewSearx(cfg SearxConfig, log *logger.Logger) (*Searx, error) {
	hc := httpclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Retry:   httpclient.DefaultRetryConfig(),
	}
	if cfg.RatePerSecond > 0 {
		hc.RateLimiter = httpclient.RateLimit("searxng", cfg.RatePerSecond)
	}
	client, err := httpclient.New(hc)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	return &Searx{
		http:     client,
		log:      log.WithComponent("search"),
		language: cfg.Language,
		maxPages: cfg.MaxPages,
	}, nil
}

// Search returns an iterator that fetches result pages on demand.
func (s *Searx) Search(_ context.Context, query string, limit int) Iterator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &searxIterator{s: s, query: query, limit: limit}
}

func (s *Searx) page(ctx context.Context, query string, page int) ([]Result, error) {
	q := map[string]string{
		"q":      query,
		"format": "json",
		"pageno": strconv.Itoa(page),
	}
	if s.language != "" {
		q["language"] = s.language
	}
	var body searxResponse
	if err := httpclient.GetJSON(ctx, s.http, "/search", q, &body); err != nil {
		return nil, httpclient.ToAppError("searxng", err)
	}

	out := make([]Result, 0, len(body.Results))
	for _, r := range body.Results {
		meta := map[string]any{"score": r.Score}
		if r.PublishedDate != "" {
			meta["date"] = r.PublishedDate
		}
		if len(r.Engines) > 0 {
			meta["engines"] = r.Engines
		}
		source := r.Engine
		if source == "" {
			source = hostOf(r.URL)
		}
		out = append(out, Result{
			Title:    r.Title,
			URL:      r.URL,
			Snippet:  r.Content,
			Source:   source,
			Metadata: meta,
		}.Normalize())
	}
	s.log.Debug("search page fetched", logger.Fields("query", query, "page", page, "results", len(out)))
	return out, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

type searxIterator struct {
	s       *Searx
	query   string
	limit   int
	page    int
	buf     []Result
	yielded int
	done    bool
}

func (it *searxIterator) Next(ctx context.Context) (Result, bool, error) {
	for len(it.buf) == 0 {
		if it.done || it.yielded >= it.limit || it.page >= it.s.maxPages {
			return Result{}, false, nil
		}
		it.page++
		results, err := it.s.page(ctx, it.query, it.page)
		if err != nil {
			it.done = true
			return Result{}, false, err
		}
		if len(results) == 0 {
			it.done = true
		}
		it.buf = results
	}
	if it.yielded >= it.limit {
		return Result{}, false, nil
	}
	r := it.buf[0]
	it.buf = it.buf[1:]
	it.yielded++
	return r, true, nil
}

func (it *searxIterator) Close() error {
	it.done = true
	it.buf = nil
	return nil
}
