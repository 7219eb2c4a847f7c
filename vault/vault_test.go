package vault

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	apperrors "github.com/kbukum/vaultflow/errors"
)

var fixedNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := Open(t.TempDir(), WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return v
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(""); !apperrors.Is(err, apperrors.ErrCodeConfiguration) {
		t.Fatalf("err = %v, want CONFIGURATION", err)
	}
}

func TestResolve_RejectsTraversal(t *testing.T) {
	v := newTestVault(t)
	tests := []struct {
		rel string
		ok  bool
	}{
		{"note.md", true},
		{"a/b/../c.md", true},
		{"../escape.md", false},
		{"a/../../escape.md", false},
		{filepath.Join(v.Root(), "inside.md"), true},
		{"/etc/passwd", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			_, err := v.Resolve(tt.rel)
			if (err == nil) != tt.ok {
				t.Errorf("Resolve(%q) err = %v, want ok=%v", tt.rel, err, tt.ok)
			}
			if err != nil && !apperrors.Is(err, apperrors.ErrCodeInvalidInput) {
				t.Errorf("err code = %s", apperrors.CodeOf(err))
			}
		})
	}
}

func TestWriteReadAppend(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Write("dir/n.md", "hello\n"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := v.Append("dir/n.md", "more", "Section"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := v.Read("dir/n.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if want := "hello\n\n## Section\n\nmore\n"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if _, err := v.Append("new.md", "first", ""); err != nil {
		t.Fatal(err)
	}
	if got, _ := v.Read("new.md"); got != "first\n" {
		t.Errorf("new note = %q", got)
	}
	if _, err := v.Read("missing.md"); !apperrors.Is(err, apperrors.ErrCodeNotFound) {
		t.Errorf("missing err = %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(v.Root(), "dir"))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestSaveJSON(t *testing.T) {
	v := newTestVault(t)
	path, err := v.SaveJSON("Index", "x", map[string]any{"k": "в"})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "\n  \"k\": \"в\"") {
		t.Errorf("json = %s", data)
	}
}

func TestFrontmatter_OrderAndRoundTrip(t *testing.T) {
	fm, err := Frontmatter(Props{
		{"date", "2024-03-05"},
		{"Title", "Daily"},
		{"tags", []string{"b", "a"}},
		{"cssclasses", []string{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(fm, "---\ndate: ") || !strings.HasSuffix(fm, "---\n\n") {
		t.Errorf("frontmatter = %q", fm)
	}
	if strings.Index(fm, "Title") > strings.Index(fm, "tags") {
		t.Errorf("key order not preserved: %q", fm)
	}
	props, body := SplitFrontmatter(fm + "# Body\n")
	if body != "\n# Body\n" {
		t.Errorf("body = %q", body)
	}
	if d, _ := props.Get("date"); d != "2024-03-05" {
		t.Errorf("date = %#v", d)
	}
	if got := props.Strings("tags"); !slices.Equal(got, []string{"b", "a"}) {
		t.Errorf("tags = %v", got)
	}
}

func TestSplitFrontmatter_NoBlock(t *testing.T) {
	for _, md := range []string{"plain", "---\nunterminated", "---\n: [bad\n---\nbody"} {
		props, body := SplitFrontmatter(md)
		if props != nil || body != md {
			t.Errorf("SplitFrontmatter(%q) = %v, %q", md, props, body)
		}
	}
}

func TestUpdateFrontmatter(t *testing.T) {
	md := "---\nTitle: Old\ntags:\n  - x\n  - b\n---\n\n\nBody text\n"
	out, err := UpdateFrontmatter(md, Props{{"tags", []string{"a", "b"}}, {"Title", "New"}, {"extra", 1}})
	if err != nil {
		t.Fatal(err)
	}
	props, body := SplitFrontmatter(out)
	if got := props.Strings("tags"); !slices.Equal(got, []string{"a", "b", "x"}) {
		t.Errorf("tags = %v", got)
	}
	if title, _ := props.Get("Title"); title != "New" {
		t.Errorf("Title = %v", title)
	}
	if body != "\nBody text\n" {
		t.Errorf("body = %q", body)
	}

	created, _ := UpdateFrontmatter("no fm", Props{{"k", "v"}})
	if !strings.HasPrefix(created, "---\nk: v\n---\n\nno fm") {
		t.Errorf("created = %q", created)
	}
}

func TestNormalizeText(t *testing.T) {
	in := "  \r\nline one   \r\n\r\n\r\n\r\nline two\t\n\n"
	if got, want := NormalizeText(in), "line one\n\nline two"; got != want {
		t.Errorf("NormalizeText = %q, want %q", got, want)
	}
}

func TestAutoTags(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Муравьи на кухне", []string{"home", "pests", "вредители", "дом"}},
		{"Настроил Qdrant", []string{"ai", "ии"}},
		{"email maintenance", nil},
		{"en: hello", []string{"lang/en", "язык/en"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := AutoTags(tt.text); !slices.Equal(got, tt.want) {
				t.Errorf("AutoTags = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractWikilinks(t *testing.T) {
	got := ExtractWikilinks("Заметки про obsidian и вазоны", map[string]string{"Заметк": "Заметки"})
	want := []string{"Obsidian", "Заметки", "Комнатные растения"}
	if !slices.Equal(got, want) {
		t.Errorf("ExtractWikilinks = %v, want %v", got, want)
	}
}

func TestGlossaryMapAndWikilinkPages(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Write("Entities/glossary.map.yaml", "golang: Go\n"); err != nil {
		t.Fatal(err)
	}
	titles := v.Wikilinks("learning golang")
	if !slices.Equal(titles, []string{"Go"}) {
		t.Fatalf("titles = %v", titles)
	}
	for range 2 {
		if err := v.EnsureWikilinkPages(titles, "daily-2024-03-05", "Daily"); err != nil {
			t.Fatalf("EnsureWikilinkPages: %v", err)
		}
	}
	page, err := v.Read("Entities/Glossary/Go.md")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(page, "- [[daily-2024-03-05|Daily]] (2024-03-05)") != 2 {
		t.Errorf("page = %q", page)
	}
	if strings.Count(page, "## Упоминания") != 1 {
		t.Errorf("mentions section duplicated: %q", page)
	}
	props, _ := SplitFrontmatter(page)
	if got := props.Strings("tags"); !slices.Equal(got, []string{"glossary", "словарь"}) {
		t.Errorf("tags = %v", got)
	}
}

func TestLinksSection(t *testing.T) {
	if LinksSection(nil, 2) != "" {
		t.Error("no titles should render nothing")
	}
	if got := LinksSection([]string{"A"}, 3); got != "### Ссылки\n\n- [[A]]\n" {
		t.Errorf("LinksSection = %q", got)
	}
}

func TestListAndFind(t *testing.T) {
	v := newTestVault(t)
	for rel, body := range map[string]string{
		"a.md":             "alpha\nBeta line\n",
		"sub/b.md":         "beta again\n",
		"sub/c.txt":        "beta text\n",
		".obsidian/x.md":   "beta hidden\n",
		"Attachments/y.md": "beta attached\n",
	} {
		if _, err := v.Write(rel, body); err != nil {
			t.Fatal(err)
		}
	}

	files, err := v.List(ListOptions{Recursive: true})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Attachments/y.md", "a.md", "sub/b.md"}; !slices.Equal(files, want) {
		t.Errorf("List = %v, want %v", files, want)
	}
	files, _ = v.List(ListOptions{Recursive: false})
	if !slices.Equal(files, []string{"a.md"}) {
		t.Errorf("non-recursive List = %v", files)
	}
	files, _ = v.List(ListOptions{Subdir: "sub", Pattern: "*.txt", Recursive: true})
	if !slices.Equal(files, []string{"sub/c.txt"}) {
		t.Errorf("pattern List = %v", files)
	}
	files, _ = v.List(ListOptions{Subdir: "nope", Recursive: true})
	if len(files) != 0 {
		t.Errorf("missing subdir = %v", files)
	}

	matches, err := v.Find("beta", FindOptions{Exclude: []string{".obsidian", "attachments"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 || matches[0] != (Match{File: "a.md", Line: 2, Text: "Beta line"}) {
		t.Errorf("Find = %+v", matches)
	}
	matches, _ = v.Find("beta", FindOptions{CaseSensitive: true, Exclude: []string{".obsidian", "attachments"}})
	if len(matches) != 1 || matches[0].File != "sub/b.md" {
		t.Errorf("case-sensitive Find = %+v", matches)
	}
	matches, _ = v.Find(`^al.*a$`, FindOptions{Regex: true, Limit: 1})
	if len(matches) != 1 || matches[0].Text != "alpha" {
		t.Errorf("regex Find = %+v", matches)
	}
	if _, err := v.Find("(", FindOptions{Regex: true}); !apperrors.Is(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("bad regex err = %v", err)
	}
}

func readSettings(t *testing.T, v *Vault, name string) any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(v.SettingsDir(), name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", name, err)
	}
	return out
}

func TestPluginToggles(t *testing.T) {
	v := newTestVault(t)
	for _, id := range []string{"dataview", "calendar", "dataview"} {
		if err := v.EnablePlugin(id); err != nil {
			t.Fatal(err)
		}
	}
	if err := v.DisablePlugin("calendar"); err != nil {
		t.Fatal(err)
	}
	if err := v.EnableCorePlugin("graph"); err != nil {
		t.Fatal(err)
	}
	p, err := v.ListPlugins()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(p.Community, []string{"dataview"}) || !slices.Equal(p.Core, []string{"graph"}) {
		t.Errorf("plugins = %+v", p)
	}
	if err := v.DisableCorePlugin("graph"); err != nil {
		t.Fatal(err)
	}
	if got := readSettings(t, v, corePluginsFile); len(got.([]any)) != 0 {
		t.Errorf("core = %v", got)
	}
	if err := v.EnablePlugin(" "); err == nil {
		t.Error("blank id should fail")
	}
}

func pluginZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte(body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestInstallPluginZip(t *testing.T) {
	v := newTestVault(t)
	data := pluginZip(t, map[string]string{
		"my-plugin/manifest.json": `{"id":"my-plugin-id","name":"My Plugin","version":"1.0.0","author":"me"}`,
		"my-plugin/main.js":       "console.log(1)",
	})
	id, err := v.InstallPluginZip(data, "", "fallback")
	if err != nil {
		t.Fatalf("InstallPluginZip: %v", err)
	}
	if id != "my-plugin-id" {
		t.Errorf("id = %q", id)
	}
	if _, err := os.Stat(filepath.Join(v.SettingsDir(), "plugins", "my-plugin", "main.js")); err != nil {
		t.Errorf("main.js not extracted: %v", err)
	}
	p, _ := v.ListPlugins()
	if len(p.Installed) != 1 || p.Installed[0].Name != "My Plugin" || !slices.Contains(p.Community, "my-plugin-id") {
		t.Errorf("plugins = %+v", p)
	}

	flat := pluginZip(t, map[string]string{"main.js": "x"})
	if id, err := v.InstallPluginZip(flat, "", "from-url"); err != nil || id != "from-url" {
		t.Errorf("flat zip = %q, %v", id, err)
	}

	evil := pluginZip(t, map[string]string{"../../evil.js": "x", "ok.js": "y"})
	if _, err := v.InstallPluginZip(evil, "evil", ""); !apperrors.Is(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("zip slip err = %v", err)
	}
	if _, err := v.InstallPluginZip([]byte("not a zip"), "x", ""); err == nil {
		t.Error("invalid archive should fail")
	}
}

func TestThemeAndSnippets(t *testing.T) {
	v := newTestVault(t)
	if err := v.SetTheme("Minimal"); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"wide.css", "alpha", "wide"} {
		if err := v.EnableSnippet(s); err != nil {
			t.Fatal(err)
		}
	}
	ap := readSettings(t, v, appearanceFile).(map[string]any)
	if ap["cssTheme"] != "Minimal" {
		t.Errorf("cssTheme = %v", ap["cssTheme"])
	}
	if got := ap["enabledCssSnippets"].([]any); len(got) != 2 || got[0] != "alpha" || got[1] != "wide" {
		t.Errorf("snippets = %v", got)
	}
	if err := v.DisableSnippet("wide.css"); err != nil {
		t.Fatal(err)
	}
	if err := v.DisableSnippet("alpha"); err != nil {
		t.Fatal(err)
	}
	ap = readSettings(t, v, appearanceFile).(map[string]any)
	if got := ap["enabledCssSnippets"].([]any); len(got) != 0 {
		t.Errorf("snippets after disable = %v", got)
	}

	path, err := v.WriteSnippet("custom", "body{}")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "custom.css" {
		t.Errorf("path = %s", path)
	}
}

func TestSetSetting(t *testing.T) {
	v := newTestVault(t)
	if err := v.SetSetting("app.json", "editor.fontSize", 16.0); err != nil {
		t.Fatal(err)
	}
	if err := v.SetSetting("app.json", "promptDelete", false); err != nil {
		t.Fatal(err)
	}
	app := readSettings(t, v, "app.json").(map[string]any)
	if app["promptDelete"] != false || app["editor"].(map[string]any)["fontSize"] != 16.0 {
		t.Errorf("app.json = %v", app)
	}
	if err := v.SetSetting("app.json", "..", 1); !apperrors.Is(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("empty path err = %v", err)
	}
	if err := v.SetSetting("../outside.json", "a", 1); !apperrors.Is(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("escape err = %v", err)
	}
}

func TestBackupSettings(t *testing.T) {
	v := newTestVault(t)
	_ = v.SetTheme("Things")
	_ = v.EnablePlugin("p")
	if _, err := v.WriteSnippet("s", "x"); err != nil {
		t.Fatal(err)
	}
	dir, err := v.BackupSettings("")
	if err != nil {
		t.Fatalf("BackupSettings: %v", err)
	}
	if dir != filepath.Join(v.Root(), "Backups", ".obsidian") {
		t.Errorf("dir = %s", dir)
	}
	for _, rel := range []string{appearanceFile, communityPluginFile, "snippets/s.css"} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("%s not backed up: %v", rel, err)
		}
	}
	if _, err := v.BackupSettings(""); err != nil {
		t.Errorf("second backup should replace directories: %v", err)
	}
}
