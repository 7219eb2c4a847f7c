package vector

import (
	"encoding/json"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/kbukum/vaultflow/search"
)

// DefaultChunkLen is the chunk size used for note ingestion.
const DefaultChunkLen = 800

// ChunkText splits text on line boundaries into chunks of at most maxLen
// runes. Lines are trimmed; a single line longer than maxLen becomes its
// own chunk. Empty chunks are dropped.
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultChunkLen
	}
	var (
		parts []string
		buf   []string
		cur   int
	)
	for _, line := range strings.Split(text, "\n") {
		ln := strings.TrimSpace(line)
		n := utf8.RuneCountInString(ln)
		if cur+n+1 > maxLen && len(buf) > 0 {
			parts = append(parts, strings.Join(buf, "\n"))
			buf = []string{ln}
			cur = n
			continue
		}
		buf = append(buf, ln)
		cur += n + 1
	}
	if len(buf) > 0 {
		parts = append(parts, strings.Join(buf, "\n"))
	}
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// Record is a text ready for indexing.
type Record struct {
	Text    string
	Payload map[string]any
}

// FlattenResults turns search results into records. The text joins title,
// snippet, URL and metadata; the payload carries source, title, url,
// domain (lower-cased host) and date (first 10 chars of metadata "date")
// plus the metadata fields. Results with no text are skipped.
func FlattenResults(results []search.Result) []Record {
	var out []Record
	for _, r := range results {
		title := strings.TrimSpace(r.Title)
		snippet := strings.TrimSpace(r.Snippet)
		link := strings.TrimSpace(r.URL)

		var parts []string
		for _, p := range []string{title, snippet, link} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(r.Metadata) > 0 {
			if data, err := json.Marshal(r.Metadata); err == nil {
				parts = append(parts, string(data))
			}
		}
		text := strings.TrimSpace(strings.Join(parts, "\n"))
		if text == "" {
			continue
		}

		domain := ""
		if u, err := url.Parse(link); err == nil {
			domain = strings.ToLower(u.Host)
		}
		date, _ := r.Metadata["date"].(string)
		if len(date) > 10 {
			date = date[:10]
		}
		source := r.Source
		if source == "" {
			source = "Unknown"
		}

		payload := map[string]any{
			"source": source,
			"title":  title,
			"url":    link,
			"domain": domain,
			"date":   date,
		}
		for k, v := range r.Metadata {
			if _, taken := payload[k]; !taken {
				payload[k] = v
			}
		}
		out = append(out, Record{Text: text, Payload: payload})
	}
	return out
}
