package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/vaultflow/logger"
)

// GlossaryMapFile is the optional user keyword map under the entities
// folder. It maps lowercase keyword stems to glossary page titles.
const GlossaryMapFile = "glossary.map.yaml"

type tagRule struct {
	stems []string
	tags  []string
}

var tagRules = []tagRule{
	{[]string{"мурав", "насеком", "таракан", "паразит", "укусы"}, []string{"pests", "вредители", "home", "дом"}},
	{[]string{"здоров", "боль", "тело", "кожа", "аллерг", "стресс"}, []string{"health", "здоровье"}},
	{[]string{"дом", "квартира", "ремонт", "уборк", "вазон", "растен", "окно"}, []string{"home", "дом"}},
	{[]string{"работ", "job", "work", "проек", "дедлайн", "коллег"}, []string{"work", "работа"}},
	{[]string{"ai", "ии", "ml", "llm", "обучение", "модель", "qdrant", "вектор", "обсидиан", "obsidian"}, []string{"ai", "ии"}},
	{[]string{"путеше", "дорог", "поезд", "самолет", "отдых"}, []string{"travel", "путешествия"}},
	{[]string{"деньг", "финанс", "бюдж", "карта", "банкир", "счет", "налог"}, []string{"finance", "финансы"}},
	{[]string{"текст", "заметк", "дневник", "журнал"}, []string{"journal", "дневник"}},
	{[]string{"радост", "счаст", "доволен", "классно"}, []string{"mood/positive", "настроение/позитив"}},
	{[]string{"грусть", "печал", "плохо", "тяжело", "боюсь", "страх", "тревог"}, []string{"mood/negative", "настроение/негатив"}},
	{[]string{"english", "англий", "en:"}, []string{"lang/en", "язык/en"}},
	{[]string{"украин", "uk:"}, []string{"lang/uk", "язык/uk"}},
	{[]string{"русск", "ru:"}, []string{"lang/ru", "язык/ru"}},
}

var defaultGlossary = map[string]string{
	"мурав":    "Муравьи",
	"насеком":  "Насекомые",
	"дом":      "Дом",
	"квартира": "Дом",
	"здоров":   "Здоровье",
	"работ":    "Работа",
	"обсидиан": "Obsidian",
	"obsidian": "Obsidian",
	"qdrant":   "Qdrant",
	"вектор":   "Векторные базы",
	"путеше":   "Путешествия",
	"финанс":   "Финансы",
	"журнал":   "Дневник",
	"дневник":  "Дневник",
	"ai":       "AI",
	"ии":       "ИИ",
	"вазон":    "Комнатные растения",
	"растен":   "Комнатные растения",
}

// stemIndex matches keyword stems against the words of a text. A stem made
// of letters matches any word starting with it; other stems ("en:") match
// anywhere in the lowercased text.
type stemIndex struct {
	lower string
	words []string
}

func newStemIndex(text string) stemIndex {
	lower := strings.ToLower(text)
	return stemIndex{
		lower: lower,
		words: strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }),
	}
}

func (s stemIndex) has(stem string) bool {
	if strings.IndexFunc(stem, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
		return strings.Contains(s.lower, stem)
	}
	for _, w := range s.words {
		if strings.HasPrefix(w, stem) {
			return true
		}
	}
	return false
}

// AutoTags derives bilingual topic, mood and language tags from text by
// keyword stems. The result is sorted and free of duplicates.
func AutoTags(text string) []string {
	idx := newStemIndex(text)
	var tags []string
	for _, rule := range tagRules {
		if slices.ContainsFunc(rule.stems, idx.has) {
			tags = append(tags, rule.tags...)
		}
	}
	return sortedUnique(tags)
}

// ExtractWikilinks returns the sorted glossary page titles whose keyword
// stems occur in text. extra entries extend or override the built-in map.
func ExtractWikilinks(text string, extra map[string]string) []string {
	glossary := make(map[string]string, len(defaultGlossary)+len(extra))
	for k, v := range defaultGlossary {
		glossary[k] = v
	}
	for k, v := range extra {
		glossary[strings.ToLower(k)] = v
	}
	idx := newStemIndex(text)
	var titles []string
	for stem, title := range glossary {
		if idx.has(stem) {
			titles = append(titles, title)
		}
	}
	return sortedUnique(titles)
}

// GlossaryMap loads the user keyword map from the entities folder. A
// missing or malformed file yields an empty map.
func (v *Vault) GlossaryMap() map[string]string {
	full, err := v.Resolve(filepath.Join(v.folders.Entities, GlossaryMapFile))
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		v.log.Warn("glossary map ignored", logger.Fields("error", err.Error()))
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		out[strings.ToLower(k)] = fmt.Sprint(val)
	}
	return out
}

// Wikilinks extracts glossary titles from text using the built-in map and
// the vault's user map.
func (v *Vault) Wikilinks(text string) []string {
	return ExtractWikilinks(text, v.GlossaryMap())
}

// LinksSection renders titles as a "Ссылки" list of wikilinks under a
// heading of the given level. It returns "" for no titles.
func LinksSection(titles []string, level int) string {
	if len(titles) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.Repeat("#", level) + " Ссылки\n\n")
	for _, t := range titles {
		b.WriteString("- [[" + t + "]]\n")
	}
	return b.String()
}

// EnsureWikilinkPages creates a glossary page under Entities/Glossary for
// every title and appends a dated backlink to the source note under the
// page's mentions section.
func (v *Vault) EnsureWikilinkPages(titles []string, sourceBase, sourceTitle string) error {
	if len(titles) == 0 {
		return nil
	}
	now := v.now()
	stamp := now.Format("2006-01-02T15:04:05")
	for _, title := range titles {
		rel := filepath.Join(v.folders.Entities, "Glossary", safeName(title)+".md")
		existing, err := v.Read(rel)
		if err != nil {
			fm, ferr := Frontmatter(Props{
				{"Title", title},
				{"Categories", "glossary"},
				{"tags", []string{"glossary", "словарь"}},
				{"created_at", stamp},
				{"last_modified", stamp},
			})
			if ferr != nil {
				return ferr
			}
			existing = fm + "# " + title + "\n\n## Описание\n\n## Упоминания\n\n"
		}
		updated, err := UpdateFrontmatter(existing, Props{
			{"Title", title},
			{"Categories", "glossary"},
			{"tags", []string{"glossary", "словарь"}},
			{"last_modified", stamp},
		})
		if err != nil {
			return err
		}
		backlink := fmt.Sprintf("- [[%s|%s]] (%s)\n", sourceBase, sourceTitle, now.Format(time.DateOnly))
		updated = strings.TrimRight(updated, " \t\r\n")
		if strings.Contains(updated, "## Упоминания") {
			updated += "\n" + backlink
		} else {
			updated += "\n\n## Упоминания\n\n" + backlink
		}
		if _, err := v.Write(rel, updated); err != nil {
			return err
		}
	}
	return nil
}

// safeName replaces path separators so a title is usable as a file name.
func safeName(s string) string {
	return strings.NewReplacer("/", "-", "\\", "-").Replace(strings.TrimSpace(s))
}
