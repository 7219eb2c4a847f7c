package planner

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/kbukum/vaultflow/runner"
)

// DefaultTopK is the result count for planned vector searches.
const DefaultTopK = 10

var (
	dailyKeywords  = []string{"создай заметку", "создать заметку", "заметка сегодня", "ежеднев", "daily", "дневник"}
	appendKeywords = []string{"добавь к сегодняшней", "допиши к сегодняшней", "добавь в ежедневку", "допиши в ежедневку", "append daily"}
	searchKeywords = []string{"поиск", "search", "гугл", "web"}
	indexKeywords  = []string{"индекс", "index", "вектор", "qdrant"}
	topKeywords    = []string{"топ", "top", "выдача"}
	weeklyKeywords = []string{"недел", "weekly", "week note"}
	taskKeywords   = []string{"задача", "добавь задачу", "todo", "task"}
	shortKeywords  = []string{"время", "короткий", "time"}
)

// Plan translates text into step invocations. now dates the notes it plans.
// Empty text yields an empty plan. Rules are tried in order and the first
// match wins; anything unrecognized becomes a web search saved as a note.
func Plan(text string, now time.Time) []runner.Invocation {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return nil
	}

	switch {
	case containsAny(t, dailyKeywords):
		content := textAfter(text, dailyKeywords)
		title := "Daily " + now.Format(time.DateOnly)
		return []runner.Invocation{{
			Step: "create_daily_note",
			With: map[string]any{
				"title":   title,
				"content": fmt.Sprintf("# %s\n\n%s\n", title, content),
			},
		}}

	case containsAny(t, searchKeywords):
		query := queryOf(t)
		plan := []runner.Invocation{{Step: "search_web", With: map[string]any{"query": query}}}
		if strings.Contains(t, "только") && strings.Contains(t, "домен") {
			plan = append(plan, runner.Invocation{Step: "filter_results", With: map[string]any{"domain_regex": "(.*)"}})
		}
		plan = append(plan, runner.Invocation{Step: "save_sources_markdown", With: map[string]any{"title": sourcesTitle(query)}})
		if containsAny(t, indexKeywords) {
			plan = append(plan, runner.Invocation{Step: "ingest_qdrant", With: map[string]any{}})
		}
		if containsAny(t, topKeywords) {
			plan = append(plan, topK(query))
		}
		return plan

	case containsAny(t, appendKeywords):
		format := "iso"
		if containsAny(t, shortKeywords) {
			format = "time"
		}
		return []runner.Invocation{{
			Step: "append_daily_note",
			With: map[string]any{"content": textAfter(text, appendKeywords), "header_format": format},
		}}

	case containsAny(t, weeklyKeywords):
		return []runner.Invocation{{Step: "create_weekly_note", With: map[string]any{}}}

	case containsAny(t, topKeywords):
		return []runner.Invocation{topK(queryOf(t))}

	case containsAny(t, taskKeywords):
		return []runner.Invocation{{
			Step: "obsidian_add_task",
			With: map[string]any{"text": textAfter(text, taskKeywords)},
		}}
	}

	return []runner.Invocation{
		{Step: "search_web", With: map[string]any{"query": text}},
		{Step: "save_sources_markdown", With: map[string]any{"title": sourcesTitle(text)}},
	}
}

func topK(query string) runner.Invocation {
	return runner.Invocation{Step: "vector_topk", With: map[string]any{"query": query, "k": DefaultTopK}}
}

func sourcesTitle(query string) string {
	return "Agent Sources: " + truncateRunes(query, 40)
}

// queryOf returns the part of t after the first colon, or all of t.
func queryOf(t string) string {
	if _, after, ok := strings.Cut(t, ":"); ok {
		return strings.TrimSpace(after)
	}
	return t
}

func containsAny(t string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// textAfter returns what follows the first listed keyword present in text,
// minus one leading separator. It returns text itself when nothing follows.
// The result keeps text's original case.
func textAfter(text string, keywords []string) string {
	lower, origin := lowerWithOffsets(text)
	for _, k := range keywords {
		idx := strings.Index(lower, k)
		if idx < 0 {
			continue
		}
		after := strings.TrimLeft(text[origin[idx+len(k)]:], " \t\r\n")
		if after != "" && strings.ContainsRune(".:!", rune(after[0])) {
			after = strings.TrimLeft(after[1:], " \t\r\n")
		}
		if after != "" {
			return after
		}
		return text
	}
	return text
}

// lowerWithOffsets lowercases s rune by rune. origin[i] is the byte offset
// in s of the rune that produced byte i of the result; origin has one extra
// entry equal to len(s).
func lowerWithOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	origin := make([]int, 0, len(s)+1)
	for i, r := range s {
		n, _ := b.WriteRune(unicode.ToLower(r))
		for range n {
			origin = append(origin, i)
		}
	}
	return b.String(), append(origin, len(s))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
