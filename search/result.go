package search

import (
	"context"
	"strings"
	"unicode/utf8"
)

// MaxSnippetRunes bounds Result.Snippet after normalization.
const MaxSnippetRunes = 500

// Untitled replaces an empty result title.
const Untitled = "Untitled"

// Result is one normalized search hit.
type Result struct {
	Title    string         `json:"title"`
	URL      string         `json:"url"`
	Snippet  string         `json:"snippet"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`
}

// Normalize fills defaults and truncates the snippet.
func (r Result) Normalize() Result {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		r.Title = Untitled
	}
	if r.Source == "" {
		r.Source = "Unknown"
	}
	r.Snippet = strings.TrimSpace(r.Snippet)
	if utf8.RuneCountInString(r.Snippet) > MaxSnippetRunes {
		r.Snippet = string([]rune(r.Snippet)[:MaxSnippetRunes])
	}
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	return r
}

// Map converts r into the generic form stored in a run context.
func (r Result) Map() map[string]any {
	return map[string]any{
		"title":    r.Title,
		"url":      r.URL,
		"snippet":  r.Snippet,
		"source":   r.Source,
		"metadata": r.Metadata,
	}
}

// FromMap reads a result previously produced by Map, or decoded from JSON.
func FromMap(m map[string]any) Result {
	str := func(k string) string {
		s, _ := m[k].(string)
		return s
	}
	meta, _ := m["metadata"].(map[string]any)
	return Result{
		Title:    str("title"),
		URL:      str("url"),
		Snippet:  str("snippet"),
		Source:   str("source"),
		Metadata: meta,
	}
}

// Iterator yields results lazily. Next returns ok=false once exhausted.
type Iterator interface {
	Next(ctx context.Context) (Result, bool, error)
	Close() error
}

// Searcher runs a query. limit <= 0 means the searcher's default.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) Iterator
}

// Collect drains it into a slice, stopping after limit results when
// limit > 0. The iterator is closed.
func Collect(ctx context.Context, it Iterator, limit int) ([]Result, error) {
	defer func() { _ = it.Close() }()
	var out []Result
	for limit <= 0 || len(out) < limit {
		r, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

type sliceIterator struct {
	items []Result
	pos   int
}

// FromSlice returns an Iterator over items.
func FromSlice(items []Result) Iterator {
	return &sliceIterator{items: items}
}

func (it *sliceIterator) Next(ctx context.Context) (Result, bool, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, false, err
	}
	if it.pos >= len(it.items) {
		return Result{}, false, nil
	}
	r := it.items[it.pos]
	it.pos++
	return r, true, nil
}

func (it *sliceIterator) Close() error {
	it.pos = len(it.items)
	return nil
}
