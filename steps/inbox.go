package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/step"
	"github.com/kbukum/vaultflow/vector"
)

// AudioExtensions are the inbox files transcribe_inbox picks up.
var AudioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".wav": true, ".aac": true, ".flac": true, ".ogg": true,
}

// RegisterInbox registers transcribe_inbox.
func RegisterInbox(reg *step.Registry, deps *Deps) error {
	return register(reg, map[string]step.Func{
		"transcribe_inbox": deps.transcribeInbox,
	})
}

// transcribeInbox transcribes every audio file in the inbox folder into a
// note in the sources folder, optionally one note per chunk, and ingests
// the transcripts when an index is configured. A failed file is reported
// in its entry and does not stop the others. With "archive" set, done
// files move to <inbox>/Processed.
func (d *Deps) transcribeInbox(ctx context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("transcribe_inbox")
	if err != nil {
		return nil, err
	}
	if d.Transcriber == nil {
		return nil, apperrors.Configuration("transcribe_inbox", "transcriber is not configured")
	}
	inbox := params.String("inbox", v.Folders().Inbox)
	dir, err := v.Resolve(inbox)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("steps: create inbox: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("steps: read inbox: %w", err)
	}
	var audio []string
	for _, e := range entries {
		if e.Type().IsRegular() && AudioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			audio = append(audio, e.Name())
		}
	}
	sort.Strings(audio)

	maxChars := params.Int("max_chars", 2000)
	perChunk := params.Bool("per_chunk_notes", false)
	ingest := params.Bool("ingest", true) && d.Index != nil
	archive := params.Bool("archive", false)
	now := d.now()
	ts := now.Format(fileStamp)

	processed := []map[string]any{}
	var texts []string
	var payloads []map[string]any
	for _, name := range audio {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		full := filepath.Join(dir, name)
		base := stem(name)
		text, err := d.Transcriber.Transcribe(ctx, full)
		if err != nil {
			d.log().Warn("transcription failed", logger.Fields("file", name, "error", err.Error()))
			processed = append(processed, map[string]any{"file": name, "error": err.Error()})
			continue
		}

		title := "Transcription: " + base
		md := fmt.Sprintf("# %s\n\n- File: %s\n\n%s\n", title, name, text)
		noteName := fmt.Sprintf("transcription-%s-%s", base, ts)
		notePath, err := v.SaveMarkdown(v.Folders().Sources, noteName, md)
		if err != nil {
			return nil, err
		}
		entry := map[string]any{"file": name, "note": notePath}

		chunks := vector.ChunkText(text, maxChars)
		chunkNotes := []map[string]any{}
		if perChunk {
			for i, ch := range chunks {
				cname := fmt.Sprintf("transcription-%s-chunk%d-%s", base, i+1, ts)
				cmd := fmt.Sprintf("# Transcription chunk: %s [%d]\n\n%s\n", base, i+1, ch)
				p, err := v.SaveMarkdown(v.Folders().Sources, cname, cmd)
				if err != nil {
					return nil, err
				}
				chunkNotes = append(chunkNotes, map[string]any{"note": p, "index": i + 1})
			}
		}
		entry["chunks"] = chunkNotes

		if ingest {
			for i, ch := range chunks {
				texts = append(texts, ch)
				payloads = append(payloads, map[string]any{
					"source":  "obsidian_md",
					"file":    noteName + ".md",
					"title":   title,
					"domain":  "",
					"url":     "",
					"date":    now.Format("2006-01-02"),
					"section": fmt.Sprintf("chunk %d", i+1),
				})
			}
		}
		if archive {
			if err := moveToProcessed(dir, name); err != nil {
				d.log().Warn("archive failed", logger.Fields("file", name, "error", err.Error()))
			}
		}
		processed = append(processed, entry)
	}

	out := step.Context{"transcribed": processed}
	if ingest && len(texts) > 0 {
		n, err := d.Index.UpsertTexts(ctx, texts, payloads)
		if err != nil {
			return nil, err
		}
		out["upserted"] = n
	}
	return out, nil
}

func moveToProcessed(dir, name string) error {
	done := filepath.Join(dir, "Processed")
	if err := os.MkdirAll(done, 0o750); err != nil {
		return err
	}
	return os.Rename(filepath.Join(dir, name), filepath.Join(done, name))
}
