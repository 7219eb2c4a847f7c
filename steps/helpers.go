package steps

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/search"
	"github.com/kbukum/vaultflow/step"
	"github.com/kbukum/vaultflow/vault"
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resultSet reads the "result" object left in the run context by
// search_web or filter_results.
func resultSet(run step.Context) map[string]any {
	obj, _ := run["result"].(map[string]any)
	if obj == nil {
		return map[string]any{}
	}
	return obj
}

// resultItems returns the search results of a result object.
func resultItems(obj map[string]any) []map[string]any {
	switch t := obj["results"].(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, it := range t {
			if m, ok := it.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func toResults(items []map[string]any) []search.Result {
	out := make([]search.Result, len(items))
	for i, it := range items {
		out[i] = search.FromMap(it)
	}
	return out
}

func str(m map[string]any, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// withLinks appends a links section for titles found in body and returns
// the new body and the titles.
func withLinks(v *vault.Vault, body string, level int) (string, []string) {
	links := v.Wikilinks(body)
	if len(links) == 0 {
		return body, nil
	}
	return strings.TrimRight(body, " \t\r\n") + "\n\n" + vault.LinksSection(links, level), links
}

// backlink creates glossary pages for links. Failures are logged only.
func (d *Deps) backlink(v *vault.Vault, links []string, source, title string) {
	if err := v.EnsureWikilinkPages(links, source, title); err != nil {
		d.log().Warn("glossary update failed", logger.Fields("source", source, "error", err.Error()))
	}
}
