package vault

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Prop is one frontmatter key with its value.
type Prop struct {
	Key   string
	Value any
}

// Props is an ordered set of frontmatter properties. Order is preserved
// when rendering so notes keep a stable, human-friendly layout.
type Props []Prop

// Get returns the value stored under key.
func (p Props) Get(key string) (any, bool) {
	for _, prop := range p {
		if prop.Key == key {
			return prop.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key, appending it when absent.
func (p *Props) Set(key string, value any) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Prop{Key: key, Value: value})
}

// Strings returns key as a string list. Scalars become one-element lists.
func (p Props) Strings(key string) []string {
	v, ok := p.Get(key)
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return []string{fmt.Sprint(t)}
	}
}

// Frontmatter renders props as a YAML block delimited by "---" lines,
// followed by a blank line.
func Frontmatter(props Props) (string, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, prop := range props {
		var val yaml.Node
		if err := val.Encode(prop.Value); err != nil {
			return "", fmt.Errorf("vault: encode frontmatter %q: %w", prop.Key, err)
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: prop.Key},
			&val,
		)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("vault: encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("vault: encode frontmatter: %w", err)
	}
	if len(props) == 0 {
		buf.Reset()
	}
	return "---\n" + buf.String() + "---\n\n", nil
}

// SplitFrontmatter separates a leading frontmatter block from the body.
// Markdown without a well-formed block yields nil props and the input as
// body. Unparseable YAML is treated the same way.
func SplitFrontmatter(md string) (Props, string) {
	if !strings.HasPrefix(md, "---\n") {
		return nil, md
	}
	rest := md[4:]
	var fmText, body string
	switch {
	case strings.HasPrefix(rest, "---\n"):
		body = rest[4:]
	default:
		end := strings.Index(rest, "\n---\n")
		if end == -1 {
			if strings.HasSuffix(rest, "\n---") {
				end = len(rest) - 4
				fmText, body = rest[:end], ""
				break
			}
			return nil, md
		}
		fmText, body = rest[:end], rest[end+5:]
	}
	props, err := parseProps(fmText)
	if err != nil {
		return nil, md
	}
	return props, body
}

func parseProps(text string) (Props, error) {
	if strings.TrimSpace(text) == "" {
		return Props{}, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return Props{}, nil
	}
	m := doc.Content[0]
	props := make(Props, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		var v any
		if err := m.Content[i+1].Decode(&v); err != nil {
			return nil, err
		}
		props = append(props, Prop{Key: m.Content[i].Value, Value: v})
	}
	return props, nil
}

// UpdateFrontmatter applies updates to the frontmatter of md, creating the
// block when missing. "tags" are merged with the existing tags as a sorted
// set; every other key is overwritten. Leading whitespace of the body is
// dropped.
func UpdateFrontmatter(md string, updates Props) (string, error) {
	props, body := SplitFrontmatter(md)
	tags := props.Strings("tags")
	if _, ok := updates.Get("tags"); ok {
		tags = append(tags, updates.Strings("tags")...)
	}
	if len(tags) > 0 {
		props.Set("tags", sortedUnique(tags))
	}
	for _, u := range updates {
		if u.Key == "tags" {
			continue
		}
		props.Set(u.Key, u.Value)
	}
	fm, err := Frontmatter(props)
	if err != nil {
		return "", err
	}
	return fm + strings.TrimLeft(body, " \t\r\n"), nil
}

func sortedUnique(items []string) []string {
	out := slices.Clone(items)
	slices.Sort(out)
	return slices.Compact(out)
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// NormalizeText converts line endings to LF, strips trailing whitespace from
// every line, trims the text, and collapses runs of blank lines to one.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	text = strings.TrimSpace(strings.Join(lines, "\n"))
	return blankRuns.ReplaceAllString(text, "\n\n")
}
