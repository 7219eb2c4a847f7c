package steps

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/search"
	"github.com/kbukum/vaultflow/step"
	"github.com/kbukum/vaultflow/vault"
)

// AgentName labels result sets produced by search_web.
const AgentName = "vaultflow web search"

// RegisterWeb registers search_web, filter_results, save_index and
// save_sources_markdown.
func RegisterWeb(reg *step.Registry, deps *Deps) error {
	return register(reg, map[string]step.Func{
		"search_web":            deps.searchWeb,
		"filter_results":        filterResults,
		"save_index":            deps.saveIndex,
		"save_sources_markdown": deps.saveSourcesMarkdown,
	})
}

// searchWeb runs every query in "queries" (or the single "query") and
// merges the results into one result object. A backend failure keeps the
// results gathered so far and is reported in the "error" key.
func (d *Deps) searchWeb(ctx context.Context, params step.Params, _ step.Context) (step.Context, error) {
	if d.Searcher == nil {
		return nil, apperrors.Configuration("search_web", "searcher is not configured")
	}
	queries := params.Strings("queries")
	if len(queries) == 0 {
		queries = params.Strings("query")
	}
	limit := params.Int("max_results", 5)

	results := []map[string]any{}
	var failures []string
	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		found, err := search.Collect(ctx, d.Searcher.Search(ctx, q, limit), limit)
		for _, r := range found {
			results = append(results, r.Map())
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.log().Warn("web search failed", logger.MergeWithError(logger.Fields("query", q, "results", len(found)), err))
			failures = append(failures, fmt.Sprintf("%s: %v", q, err))
			continue
		}
		d.log().Debug("web search done", logger.Fields("query", q, "results", len(found)))
	}
	out := step.Context{"result": map[string]any{
		"agent":     AgentName,
		"timestamp": d.now().Format(stampLayout),
		"results":   results,
		"count":     len(results),
	}}
	if len(failures) > 0 {
		out["error"] = "search failed: " + strings.Join(failures, "; ")
	}
	return out, nil
}

// filterResults narrows the current result object by source, a regular
// expression on the URL host, and a minimum metadata date.
func filterResults(_ context.Context, params step.Params, run step.Context) (step.Context, error) {
	src := params.String("source", "")
	dateFrom := params.String("date_from", "")
	var hostRe *regexp.Regexp
	if expr := params.String("domain_regex", ""); expr != "" {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, apperrors.InvalidInput("domain_regex", "invalid regular expression").WithCause(err)
		}
		hostRe = re
	}

	in := resultSet(run)
	kept := []map[string]any{}
	for _, item := range resultItems(in) {
		if src != "" && str(item, "source") != src {
			continue
		}
		if hostRe != nil && !hostRe.MatchString(host(str(item, "url"))) {
			continue
		}
		if dateFrom != "" {
			meta, _ := item["metadata"].(map[string]any)
			if truncateRunes(str(meta, "date"), 10) < dateFrom {
				continue
			}
		}
		kept = append(kept, item)
	}

	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	out["results"] = kept
	out["count"] = len(kept)
	return step.Context{"result": out}, nil
}

// saveIndex writes the current result object as JSON into the index folder.
func (d *Deps) saveIndex(_ context.Context, params step.Params, run step.Context) (step.Context, error) {
	v, err := d.needVault("save_index")
	if err != nil {
		return nil, err
	}
	name := params.String("name", "agent-index-"+d.now().Format(fileStamp))
	path, err := v.SaveJSON(v.Folders().Index, name, resultSet(run))
	if err != nil {
		return nil, err
	}
	return step.Context{"index_path": path}, nil
}

// saveSourcesMarkdown renders the current results as a numbered list note
// in the sources folder.
func (d *Deps) saveSourcesMarkdown(_ context.Context, params step.Params, run step.Context) (step.Context, error) {
	v, err := d.needVault("save_sources_markdown")
	if err != nil {
		return nil, err
	}
	now := d.now()
	obj := resultSet(run)
	title := params.String("title", "Agent Results")

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n- Time: %s\n\n", title, str(obj, "timestamp"))
	for i, item := range resultItems(obj) {
		if e := str(item, "error"); e != "" {
			fmt.Fprintf(&b, "%d. ❌ %s\n", i+1, e)
			continue
		}
		r := search.FromMap(item).Normalize()
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, r.Source, r.Title)
		if r.URL != "" {
			fmt.Fprintf(&b, "   - URL: %s\n", r.URL)
		}
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   - Snippet: %s...\n", truncateRunes(r.Snippet, 200))
		}
	}
	body, links := withLinks(v, b.String(), 2)

	fm, err := vault.Frontmatter(vault.Props{
		{Key: "date", Value: now.Format("2006-01-02")},
		{Key: "Title", Value: title},
		{Key: "Categories", Value: "agents"},
		{Key: "tags", Value: []string{"agent", "sources"}},
		{Key: "cssclasses", Value: []string{}},
	})
	if err != nil {
		return nil, err
	}
	name := params.String("name", "agent-sources-"+now.Format(fileStamp))
	path, err := v.SaveMarkdown(v.Folders().Sources, name, fm+body)
	if err != nil {
		return nil, err
	}
	d.backlink(v, links, name, title)
	return step.Context{"sources_path": path}, nil
}
