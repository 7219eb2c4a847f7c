// Package search is the web search capability behind the search_web step.
//
// A Searcher returns a lazy Iterator: SearxNG results are fetched one page
// at a time as the caller pulls, so a small limit costs a single request.
package search
