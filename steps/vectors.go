package steps

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/step"
	"github.com/kbukum/vaultflow/vault"
	"github.com/kbukum/vaultflow/vector"
)

// RegisterVector registers ingest_qdrant, vector_topk and ingest_vault_all.
func RegisterVector(reg *step.Registry, deps *Deps) error {
	return register(reg, map[string]step.Func{
		"ingest_qdrant":    deps.ingestResults,
		"vector_topk":      deps.vectorTopK,
		"ingest_vault_all": deps.ingestVault,
	})
}

// ingestResults embeds the current search results into the index.
func (d *Deps) ingestResults(ctx context.Context, _ step.Params, run step.Context) (step.Context, error) {
	ix, err := d.needIndex("ingest_qdrant")
	if err != nil {
		return nil, err
	}
	records := vector.FlattenResults(toResults(resultItems(resultSet(run))))
	if len(records) == 0 {
		return step.Context{"upserted": 0}, nil
	}
	texts := make([]string, len(records))
	payloads := make([]map[string]any, len(records))
	for i, r := range records {
		texts[i], payloads[i] = r.Text, r.Payload
	}
	n, err := ix.UpsertTexts(ctx, texts, payloads)
	if err != nil {
		return nil, err
	}
	return step.Context{"upserted": n}, nil
}

// vectorTopK searches the index and writes the hits as a summary note.
func (d *Deps) vectorTopK(ctx context.Context, params step.Params, _ step.Context) (step.Context, error) {
	ix, err := d.needIndex("vector_topk")
	if err != nil {
		return nil, err
	}
	v, err := d.needVault("vector_topk")
	if err != nil {
		return nil, err
	}
	query := params.String("query", "")
	k := params.Int("k", 10)
	hits, err := ix.SearchText(ctx, query, k, vector.Filter{
		Source:   params.String("source", ""),
		Domain:   params.String("domain", ""),
		DateFrom: params.String("date_from", ""),
	})
	if err != nil {
		return nil, err
	}

	now := d.now()
	title := params.String("title", fmt.Sprintf("Top-%d Vector Search", k))
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", title, query)
	for i, h := range hits {
		name := str(h.Payload, "title")
		if name == "" {
			name = str(h.Payload, "file")
		}
		if name == "" {
			name = "Без названия"
		}
		score := strconv.FormatFloat(math.Round(h.Score*1e4)/1e4, 'f', -1, 64)
		fmt.Fprintf(&b, "%d. [%s] %s | score: %s\n", i+1, str(h.Payload, "source"), name, score)
		if u := str(h.Payload, "url"); u != "" {
			fmt.Fprintf(&b, "   - URL: %s\n", u)
		}
	}
	body, links := withLinks(v, b.String(), 2)
	fm, err := vault.Frontmatter(vault.Props{
		{Key: "date", Value: now.Format("2006-01-02")},
		{Key: "Title", Value: title},
		{Key: "Categories", Value: "summaries"},
		{Key: "tags", Value: []string{"vector", "search"}},
		{Key: "cssclasses", Value: []string{}},
	})
	if err != nil {
		return nil, err
	}
	name := params.String("name", "vector-topk-"+now.Format(fileStamp))
	path, err := v.SaveMarkdown(v.Folders().Summaries, name, fm+body)
	if err != nil {
		return nil, err
	}
	d.backlink(v, links, name, title)
	return step.Context{"summaries_path": path, "count": len(hits)}, nil
}

var defaultIngestExclude = []string{".trash", ".obsidian", "attachments"}

// ingestVault chunks every markdown note of the vault and upserts the
// chunks with frontmatter tags, keywords and date in the payload.
// Keywords are also prepended to each chunk's text.
func (d *Deps) ingestVault(ctx context.Context, params step.Params, _ step.Context) (step.Context, error) {
	ix, err := d.needIndex("ingest_vault_all")
	if err != nil {
		return nil, err
	}
	v, err := d.needVault("ingest_vault_all")
	if err != nil {
		return nil, err
	}
	exclude := params.Strings("exclude")
	if len(exclude) == 0 {
		exclude = defaultIngestExclude
	}
	files, err := v.List(vault.ListOptions{Recursive: true, Exclude: exclude})
	if err != nil {
		return nil, err
	}
	maxLen := params.Int("max_chars", vector.DefaultChunkLen)
	vaultName := filepath.Base(v.Root())

	var (
		texts    []string
		payloads []map[string]any
		noted    int
	)
	for _, rel := range files {
		content, err := v.Read(rel)
		if err != nil {
			d.log().Warn("note skipped", logger.Fields("file", rel, "error", err.Error()))
			continue
		}
		props, body := vault.SplitFrontmatter(content)
		chunks := vector.ChunkText(body, maxLen)
		if len(chunks) == 0 {
			continue
		}
		noted++

		tags := props.Strings("tags")
		keywords := props.Strings("keywords")
		date := ""
		if dv, ok := props.Get("date"); ok {
			date = truncateRunes(fmt.Sprint(dv), 10)
		}
		prefix := ""
		if len(keywords) > 0 {
			prefix = "Keywords: " + strings.Join(keywords, ", ") + "\n\n"
		}
		base := filepath.Base(rel)
		for i, ch := range chunks {
			text := prefix + ch
			sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%s", rel, i, text)))
			chunkID := hex.EncodeToString(sum[:])
			texts = append(texts, text)
			payloads = append(payloads, map[string]any{
				"id":       chunkID,
				"chunk_id": chunkID,
				"source":   "obsidian_md",
				"file":     base,
				"path":     rel,
				"vault":    vaultName,
				"title":    stem(base),
				"domain":   "",
				"url":      "",
				"date":     date,
				"tags":     tags,
				"keywords": keywords,
			})
		}
	}

	upserted := 0
	if len(texts) > 0 {
		if upserted, err = ix.UpsertTexts(ctx, texts, payloads); err != nil {
			return nil, err
		}
	}
	d.log().Info("vault ingested", logger.Fields("files", noted, "chunks", upserted))
	return step.Context{"vault_files": noted, "upserted": upserted}, nil
}
