package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/step"
	"github.com/kbukum/vaultflow/vault"
)

// RegisterNotes registers the daily/weekly journal steps and the generic
// note management steps.
func RegisterNotes(reg *step.Registry, deps *Deps) error {
	return register(reg, map[string]step.Func{
		"create_daily_note":           deps.createDailyNote,
		"append_daily_note":           deps.appendDailyNote,
		"create_weekly_note":          deps.createWeeklyNote,
		"obsidian_add_task":           deps.addTask,
		"obsidian_mark_task":          deps.markTask,
		"obsidian_list_notes":         deps.listNotes,
		"obsidian_read_note":          deps.readNote,
		"obsidian_write_note":         deps.writeNote,
		"obsidian_append_note":        deps.appendNote,
		"obsidian_find":               deps.findNotes,
		"obsidian_update_frontmatter": deps.updateFrontmatter,
	})
}

func noteProps(now time.Time, title, category string, tags []string) vault.Props {
	stamp := now.Format(stampLayout)
	return vault.Props{
		{Key: "date", Value: now.Format(time.DateOnly)},
		{Key: "Title", Value: title},
		{Key: "Categories", Value: category},
		{Key: "tags", Value: tags},
		{Key: "cssclasses", Value: []string{}},
		{Key: "created_at", Value: stamp},
		{Key: "last_modified", Value: stamp},
	}
}

func mergeTags(base []string, more ...string) []string {
	out := append(slices.Clone(base), more...)
	slices.Sort(out)
	return slices.Compact(out)
}

func dailyName(now time.Time) string { return "daily-" + now.Format(time.DateOnly) }

func (d *Deps) dailyPath(v *vault.Vault, params step.Params, now time.Time) string {
	folder := params.String("folder", v.Folders().Daily)
	return filepath.Join(folder, dailyName(now)+".md")
}

// createDailyNote writes today's note with frontmatter, auto tags and a
// links section. An existing note is kept unless overwrite is set.
func (d *Deps) createDailyNote(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("create_daily_note")
	if err != nil {
		return nil, err
	}
	now := d.now()
	rel := d.dailyPath(v, params, now)
	if v.Exists(rel) && !params.Bool("overwrite", false) {
		full, _ := v.Resolve(rel)
		return step.Context{"daily_path": full, "created": false}, nil
	}

	title := params.String("title", "Daily "+now.Format(time.DateOnly))
	raw := params.String("content", fmt.Sprintf("# %s\n\n- Created: %s\n", title, now.Format(stampLayout)))
	body := vault.NormalizeText(raw) + "\n"
	fm, err := vault.Frontmatter(noteProps(now, title, "daily", mergeTags([]string{"daily"}, vault.AutoTags(body)...)))
	if err != nil {
		return nil, err
	}
	body, links := withLinks(v, body, 2)
	full, err := v.Write(rel, fm+body)
	if err != nil {
		return nil, err
	}
	d.backlink(v, links, dailyName(now), title)
	return step.Context{"daily_path": full, "created": true}, nil
}

// appendDailyNote adds a timestamped section to today's note, creating it
// when missing. Empty content appends nothing.
func (d *Deps) appendDailyNote(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("append_daily_note")
	if err != nil {
		return nil, err
	}
	now := d.now()
	rel := d.dailyPath(v, params, now)
	full, err := v.Resolve(rel)
	if err != nil {
		return nil, err
	}
	title := params.String("title", "Daily "+now.Format(time.DateOnly))

	content := vault.NormalizeText(params.String("content", ""))
	if content == "" {
		return step.Context{"daily_path": full, "appended": false}, nil
	}
	header := "## Запись от " + now.Format(stampLayout)
	if strings.EqualFold(params.String("header_format", "iso"), "time") {
		header = "## Запись " + now.Format("15:04")
	}
	content, links := withLinks(v, content, 3)
	section := header + "\n\n" + strings.TrimRight(content, "\n") + "\n"

	existing, err := v.Read(rel)
	switch {
	case err == nil:
		updated, uerr := vault.UpdateFrontmatter(existing, vault.Props{
			{Key: "last_modified", Value: now.Format(stampLayout)},
			{Key: "tags", Value: vault.AutoTags(content)},
		})
		if uerr != nil {
			return nil, uerr
		}
		if _, err := v.Write(rel, strings.TrimRight(updated, " \t\r\n")+"\n\n"+section); err != nil {
			return nil, err
		}
		d.backlink(v, links, dailyName(now), title)
	case apperrors.Is(err, apperrors.ErrCodeNotFound):
		fm, ferr := vault.Frontmatter(noteProps(now, title, "daily", []string{"daily"}))
		if ferr != nil {
			return nil, ferr
		}
		if _, err := v.Write(rel, fm+"# "+title+"\n\n"+section); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return step.Context{"daily_path": full, "appended": true}, nil
}

// createWeeklyNote writes the note for the current ISO week.
func (d *Deps) createWeeklyNote(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("create_weekly_note")
	if err != nil {
		return nil, err
	}
	now := d.now()
	year, week := now.ISOWeek()
	label := fmt.Sprintf("%d-W%02d", year, week)
	name := "weekly-" + label
	rel := filepath.Join(params.String("folder", v.Folders().Weekly), name+".md")
	if v.Exists(rel) && !params.Bool("overwrite", false) {
		full, _ := v.Resolve(rel)
		return step.Context{"weekly_path": full, "created": false}, nil
	}

	title := params.String("title", "Weekly "+label)
	raw := params.String("content", fmt.Sprintf("# %s\n\n- Неделя: %s\n\n## Итоги\n\n## Планы\n", title, label))
	body := vault.NormalizeText(raw) + "\n"
	fm, err := vault.Frontmatter(noteProps(now, title, "weekly", []string{"weekly"}))
	if err != nil {
		return nil, err
	}
	body, links := withLinks(v, body, 2)
	full, err := v.Write(rel, fm+body)
	if err != nil {
		return nil, err
	}
	d.backlink(v, links, name, title)
	return step.Context{"weekly_path": full, "created": true}, nil
}

var priorities = map[string]string{
	"low":     "низкий",
	"med":     "средний",
	"medium":  "средний",
	"high":    "высокий",
	"низкий":  "низкий",
	"средний": "средний",
	"высокий": "высокий",
}

func dueDate(raw string, now time.Time) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch {
	case raw == "":
		return ""
	case strings.Contains(raw, "сегодня") || strings.Contains(raw, "today"):
		return now.Format(time.DateOnly)
	case strings.Contains(raw, "завтра") || strings.Contains(raw, "tomorrow"):
		return now.AddDate(0, 0, 1).Format(time.DateOnly)
	default:
		return raw
	}
}

// addTask appends a checkbox line under "## Задачи" in today's note.
// A missing text is reported in the "error" output, not as a failure.
func (d *Deps) addTask(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_add_task")
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(params.String("text", ""))
	if text == "" {
		return step.Context{"error": "text is required"}, nil
	}
	now := d.now()
	line := "- [ ] " + text
	if due := dueDate(params.String("due", ""), now); due != "" {
		line += " (due: " + due + ")"
	}
	if pr := priorities[strings.ToLower(strings.TrimSpace(params.String("priority", "")))]; pr != "" {
		line += " (priority: " + pr + ")"
	}

	rel := d.dailyPath(v, params, now)
	md, err := v.Read(rel)
	if apperrors.Is(err, apperrors.ErrCodeNotFound) {
		title := "Daily " + now.Format(time.DateOnly)
		fm, ferr := vault.Frontmatter(noteProps(now, title, "daily", []string{"daily"}))
		if ferr != nil {
			return nil, ferr
		}
		md, err = fm+"# "+title+"\n\n", nil
	}
	if err != nil {
		return nil, err
	}
	md = strings.TrimRight(md, " \t\r\n")
	if strings.Contains(md, "## Задачи") {
		md += "\n" + line + "\n"
	} else {
		md += "\n\n## Задачи\n\n" + line + "\n"
	}
	full, err := v.Write(rel, md)
	if err != nil {
		return nil, err
	}
	return step.Context{"task_added": text, "daily_path": full}, nil
}

// markTask checks off the first open task containing "match"
// (case-insensitive) in "file" or today's note.
func (d *Deps) markTask(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_mark_task")
	if err != nil {
		return nil, err
	}
	match := strings.TrimSpace(params.String("match", ""))
	if match == "" {
		return step.Context{"error": "match is required"}, nil
	}
	rel := params.String("file", "")
	if rel == "" {
		rel = d.dailyPath(v, params, d.now())
	}
	md, err := v.Read(rel)
	if apperrors.Is(err, apperrors.ErrCodeNotFound) {
		return step.Context{"error": "file not found: " + rel}, nil
	}
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(md, "\n"), "\n")
	needle := strings.ToLower(match)
	found := false
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "- [ ]") && strings.Contains(strings.ToLower(l), needle) {
			lines[i] = strings.Replace(l, "- [ ]", "- [x]", 1)
			found = true
			break
		}
	}
	if !found {
		return step.Context{"error": "task not found"}, nil
	}
	full, err := v.Write(rel, strings.Join(lines, "\n")+"\n")
	if err != nil {
		return nil, err
	}
	return step.Context{"task_marked": match, "file": full}, nil
}

func (d *Deps) listNotes(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_list_notes")
	if err != nil {
		return nil, err
	}
	files, err := v.List(vault.ListOptions{
		Subdir:    params.String("subdir", ""),
		Pattern:   params.String("pattern", "*.md"),
		Recursive: params.Bool("recursive", true),
		Exclude:   params.Strings("exclude"),
	})
	if err != nil {
		return nil, err
	}
	return step.Context{"obsidian_notes": files, "count": len(files)}, nil
}

func noteFile(params step.Params, stepName string) (string, error) {
	if f := params.String("file", ""); f != "" {
		return f, nil
	}
	return params.RequireString(stepName, "path")
}

func (d *Deps) readNote(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_read_note")
	if err != nil {
		return nil, err
	}
	file, err := noteFile(params, "obsidian_read_note")
	if err != nil {
		return nil, apperrors.MissingParam("obsidian_read_note", "file")
	}
	content, err := v.Read(file)
	if err != nil {
		return nil, err
	}
	return step.Context{"obsidian_note_path": file, "obsidian_note_content": content}, nil
}

// writeNote replaces a note. With frontmatter (the default) the note gets
// a title, auto tags and a heading; glossary links are added either way.
func (d *Deps) writeNote(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_write_note")
	if err != nil {
		return nil, err
	}
	file, err := noteFile(params, "obsidian_write_note")
	if err != nil {
		return nil, apperrors.MissingParam("obsidian_write_note", "file")
	}
	now := d.now()
	body := vault.NormalizeText(params.String("content", ""))
	withFM := params.Bool("frontmatter", true)
	title := params.String("title", "")

	var head string
	if withFM {
		if title == "" {
			title = stem(file)
		}
		fm, err := vault.Frontmatter(noteProps(now, title, params.String("category", "notes"), vault.AutoTags(body)))
		if err != nil {
			return nil, err
		}
		head = fm + "# " + title + "\n\n"
	}
	body, links := withLinks(v, body, 2)
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	full, err := v.Write(file, head+body)
	if err != nil {
		return nil, err
	}
	if title != "" {
		d.backlink(v, links, stem(file), title)
	}
	return step.Context{"obsidian_note_written": full}, nil
}

func (d *Deps) appendNote(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_append_note")
	if err != nil {
		return nil, err
	}
	file, err := noteFile(params, "obsidian_append_note")
	if err != nil {
		return nil, apperrors.MissingParam("obsidian_append_note", "file")
	}
	body, links := withLinks(v, vault.NormalizeText(params.String("content", "")), 3)
	full, err := v.Append(file, body, params.String("header", ""))
	if err != nil {
		return nil, err
	}
	d.backlink(v, links, stem(file), stem(file))
	return step.Context{"obsidian_note_appended": full}, nil
}

func (d *Deps) findNotes(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_find")
	if err != nil {
		return nil, err
	}
	query, err := params.RequireString("obsidian_find", "query")
	if err != nil {
		return nil, err
	}
	matches, err := v.Find(query, vault.FindOptions{
		Subdir:        params.String("subdir", ""),
		Regex:         params.Bool("regex", false),
		CaseSensitive: params.Bool("case_sensitive", false),
		Limit:         params.Int("limit", 100),
		Exclude:       params.Strings("exclude"),
	})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(matches))
	for i, m := range matches {
		out[i] = map[string]any{"file": m.File, "line": m.Line, "text": m.Text}
	}
	return step.Context{"obsidian_find": out, "count": len(out)}, nil
}

// updateFrontmatter merges keywords and tags into a note's frontmatter,
// sets the keys in "set" and bumps last_modified.
func (d *Deps) updateFrontmatter(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_update_frontmatter")
	if err != nil {
		return nil, err
	}
	file, err := noteFile(params, "obsidian_update_frontmatter")
	if err != nil {
		return nil, apperrors.MissingParam("obsidian_update_frontmatter", "file")
	}
	existing, err := v.Read(file)
	if err != nil {
		return nil, err
	}
	props, _ := vault.SplitFrontmatter(existing)

	updates := vault.Props{{Key: "last_modified", Value: d.now().Format(stampLayout)}}
	if kw := mergeTags(props.Strings("keywords"), params.Strings("add_keywords")...); len(kw) > 0 {
		updates.Set("keywords", kw)
	}
	if tags := params.Strings("add_tags"); len(tags) > 0 {
		updates.Set("tags", tags)
	}
	set := params.Map("set")
	for _, k := range sortedKeys(set) {
		updates.Set(k, set[k])
	}
	updated, err := vault.UpdateFrontmatter(existing, updates)
	if err != nil {
		return nil, err
	}
	full, err := v.Write(file, updated)
	if err != nil {
		return nil, err
	}
	return step.Context{"updated": full}, nil
}
