package vault

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/logger"
)

// Folders are the vault-relative folders notes are saved into.
type Folders struct {
	Sources   string
	Summaries string
	Entities  string
	Index     string
	Logs      string
	Daily     string
	Weekly    string
	Inbox     string
}

// DefaultFolders returns the stock folder layout.
func DefaultFolders() Folders {
	return Folders{
		Sources:   "Sources",
		Summaries: "Summaries",
		Entities:  "Entities",
		Index:     "Index",
		Logs:      "Logs",
		Daily:     "Notes/Journal/Daily",
		Weekly:    "Notes/Journal/Weekly",
		Inbox:     "Inbox/Audio",
	}
}

func (f Folders) withDefaults() Folders {
	d := DefaultFolders()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&f.Sources, d.Sources)
	fill(&f.Summaries, d.Summaries)
	fill(&f.Entities, d.Entities)
	fill(&f.Index, d.Index)
	fill(&f.Logs, d.Logs)
	fill(&f.Daily, d.Daily)
	fill(&f.Weekly, d.Weekly)
	fill(&f.Inbox, d.Inbox)
	return f
}

// Vault is a note vault rooted at a directory.
type Vault struct {
	root    string
	folders Folders
	now     func() time.Time
	log     *logger.Logger
}

// Option configures a Vault.
type Option func(*Vault)

// WithClock overrides the time source used for dates in notes.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(v *Vault) { v.log = l.WithComponent("vault") }
}

// WithFolders overrides the folder layout; empty fields keep defaults.
func WithFolders(f Folders) Option {
	return func(v *Vault) { v.folders = f.withDefaults() }
}

// Open returns a Vault rooted at root, creating the directory if needed.
func Open(root string, opts ...Option) (*Vault, error) {
	if root == "" {
		return nil, apperrors.Configuration("vault", "path is required")
	}
	abs, err := filepath.Abs(expandHome(root))
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("vault: create root: %w", err)
	}
	v := &Vault{root: abs, folders: DefaultFolders(), now: time.Now, log: logger.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Root returns the absolute vault root.
func (v *Vault) Root() string { return v.root }

// Folders returns the folder layout.
func (v *Vault) Folders() Folders { return v.folders }

// Now returns the current time from the vault clock.
func (v *Vault) Now() time.Time { return v.now() }

// Resolve maps a vault-relative path to an absolute one. It fails with
// INVALID_INPUT when the result would leave the vault.
func (v *Vault) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		r, err := filepath.Rel(v.root, filepath.Clean(rel))
		if err != nil {
			return "", apperrors.InvalidInput("path", "path outside vault")
		}
		rel = r
	}
	full := filepath.Join(v.root, rel)
	r, err := filepath.Rel(v.root, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", apperrors.InvalidInput("path", "path outside vault: "+rel)
	}
	return full, nil
}

// Rel returns the vault-relative, slash-separated form of an absolute path.
func (v *Vault) Rel(abs string) string {
	r, err := filepath.Rel(v.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(r)
}

// Exists reports whether rel exists.
func (v *Vault) Exists(rel string) bool {
	full, err := v.Resolve(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// Read returns the content of a note.
func (v *Vault) Read(rel string) (string, error) {
	full, err := v.Resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.NotFound("note", rel)
		}
		return "", fmt.Errorf("vault: read %s: %w", rel, err)
	}
	return string(data), nil
}

// Write replaces the note at rel and returns its absolute path.
func (v *Vault) Write(rel, content string) (string, error) {
	full, err := v.Resolve(rel)
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(full, []byte(content)); err != nil {
		return "", err
	}
	v.log.Debug("note written", logger.Fields("path", v.Rel(full), "bytes", len(content)))
	return full, nil
}

// Append adds content to the end of the note at rel, creating it when
// missing. A non-empty header is written as a "## header" section title.
func (v *Vault) Append(rel, content, header string) (string, error) {
	existing, err := v.Read(rel)
	if err != nil && !apperrors.Is(err, apperrors.ErrCodeNotFound) {
		return "", err
	}
	var b strings.Builder
	if existing != "" {
		b.WriteString(strings.TrimRight(existing, "\n"))
		b.WriteString("\n\n")
	}
	if header != "" {
		b.WriteString("## " + header + "\n\n")
	}
	b.WriteString(strings.TrimRight(content, "\n"))
	b.WriteString("\n")
	return v.Write(rel, b.String())
}

// SaveMarkdown writes <folder>/<name>.md.
func (v *Vault) SaveMarkdown(folder, name, content string) (string, error) {
	return v.Write(filepath.Join(folder, name+".md"), content)
}

// SaveJSON writes obj as indented JSON to <folder>/<name>.json.
func (v *Vault) SaveJSON(folder, name string, obj any) (string, error) {
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return "", fmt.Errorf("vault: encode %s: %w", name, err)
	}
	return v.Write(filepath.Join(folder, name+".json"), string(data))
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("vault: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("vault: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("vault: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("vault: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("vault: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("vault: rename: %w", err)
	}
	return nil
}

// excluded reports whether any path segment of rel matches exclude,
// case-insensitively.
func excluded(rel string, exclude []string) bool {
	if len(exclude) == 0 {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, ex := range exclude {
			if strings.EqualFold(part, ex) {
				return true
			}
		}
	}
	return false
}

// walkFiles calls fn for every regular file under dir, skipping excluded
// directories.
func (v *Vault) walkFiles(dir string, recursive bool, exclude []string, fn func(full, rel string) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		rel := v.Rel(path)
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if !recursive || excluded(rel, exclude) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || excluded(rel, exclude) {
			return nil
		}
		return fn(path, rel)
	})
}
