package vault

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/kbukum/vaultflow/errors"
)

// DefaultExclude are directories skipped by List and Find when no exclude
// list is given.
var DefaultExclude = []string{".obsidian", ".trash"}

// ListOptions selects notes for List.
type ListOptions struct {
	Subdir    string
	Pattern   string // glob on the file name, "*.md" when empty
	Recursive bool
	Exclude   []string
}

// List returns the sorted vault-relative paths of matching files.
func (v *Vault) List(opts ListOptions) ([]string, error) {
	dir, err := v.Resolve(opts.Subdir)
	if err != nil {
		return nil, err
	}
	pattern := opts.Pattern
	if pattern == "" {
		pattern = "*.md"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, apperrors.InvalidInput("pattern", "bad glob "+pattern)
	}
	exclude := opts.Exclude
	if exclude == nil {
		exclude = DefaultExclude
	}
	out := []string{}
	err = v.walkFiles(dir, opts.Recursive, exclude, func(full, rel string) error {
		if ok, _ := filepath.Match(pattern, filepath.Base(full)); ok {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// FindOptions configures Find.
type FindOptions struct {
	Subdir        string
	Regex         bool
	CaseSensitive bool
	Limit         int // 100 when zero
	Exclude       []string
}

// Match is one line of a note matching a Find query.
type Match struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Find searches markdown notes line by line for query, either as a plain
// substring or a regular expression, and returns at most Limit matches in
// path order.
func (v *Vault) Find(query string, opts FindOptions) ([]Match, error) {
	if query == "" {
		return nil, apperrors.InvalidInput("query", "query is required")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	match, err := lineMatcher(query, opts.Regex, opts.CaseSensitive)
	if err != nil {
		return nil, err
	}
	files, err := v.List(ListOptions{Subdir: opts.Subdir, Recursive: true, Exclude: opts.Exclude})
	if err != nil {
		return nil, err
	}
	out := []Match{}
	for _, rel := range files {
		if len(out) >= limit {
			break
		}
		found, err := v.scanFile(rel, match, limit-len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func lineMatcher(query string, isRegex, caseSensitive bool) (func(string) bool, error) {
	if isRegex {
		expr := query
		if !caseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, apperrors.InvalidInput("query", "invalid regular expression").WithCause(err)
		}
		return re.MatchString, nil
	}
	if caseSensitive {
		return func(s string) bool { return strings.Contains(s, query) }, nil
	}
	q := strings.ToLower(query)
	return func(s string) bool { return strings.Contains(strings.ToLower(s), q) }, nil
}

func (v *Vault) scanFile(rel string, match func(string) bool, max int) ([]Match, error) {
	full, err := v.Resolve(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Match
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for n := 1; sc.Scan(); n++ {
		if line := sc.Text(); match(line) {
			out = append(out, Match{File: rel, Line: n, Text: strings.TrimSpace(line)})
			if len(out) >= max {
				break
			}
		}
	}
	return out, sc.Err()
}
