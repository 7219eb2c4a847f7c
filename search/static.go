package search

import (
	"context"
	"strings"
)

// Static is an in-memory Searcher. A result matches when every query word
// appears in its title or snippet, case-insensitively. An empty query
// matches everything.
type Static struct {
	Results []Result
}

// NewStatic returns a Static searcher over results.
func NewStatic(results ...Result) *Static {
	return &Static{Results: results}
}

func (s *Static) Search(_ context.Context, query string, limit int) Iterator {
	words := strings.Fields(strings.ToLower(query))
	var out []Result
	for _, r := range s.Results {
		if limit > 0 && len(out) >= limit {
			break
		}
		text := strings.ToLower(r.Title + " " + r.Snippet)
		match := true
		for _, w := range words {
			if !strings.Contains(text, w) {
				match = false
				break
			}
		}
		if match {
			out = append(out, r.Normalize())
		}
	}
	return FromSlice(out)
}

// Chain queries each searcher in turn and concatenates their results,
// like a metasearch over several engines. limit applies per searcher.
func Chain(searchers ...Searcher) Searcher {
	return chain(searchers)
}

type chain []Searcher

func (c chain) Search(_ context.Context, query string, limit int) Iterator {
	return &chainIterator{searchers: c, query: query, limit: limit}
}

type chainIterator struct {
	searchers []Searcher
	query     string
	limit     int
	current   Iterator
}

func (it *chainIterator) Next(ctx context.Context) (Result, bool, error) {
	for {
		if it.current == nil {
			if len(it.searchers) == 0 {
				return Result{}, false, nil
			}
			it.current = it.searchers[0].Search(ctx, it.query, it.limit)
			it.searchers = it.searchers[1:]
		}
		r, ok, err := it.current.Next(ctx)
		if err != nil || ok {
			return r, ok, err
		}
		_ = it.current.Close()
		it.current = nil
	}
}

func (it *chainIterator) Close() error {
	it.searchers = nil
	if it.current != nil {
		err := it.current.Close()
		it.current = nil
		return err
	}
	return nil
}
