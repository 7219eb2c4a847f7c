package step

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kbukum/vaultflow/errors"
)

// Params are the resolved parameters of one step invocation.
// Accessors return the given default when a key is missing or nil.
type Params map[string]any

// Has reports whether key is present with a non-nil value.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// String returns key as a string. Scalars are formatted; other kinds fall back to def.
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case int, int64, float64, bool:
		return fmt.Sprint(t)
	default:
		return def
	}
}

// Int returns key as an int, accepting numeric strings.
func (p Params) Int(key string, def int) int {
	switch t := p[key].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// Float returns key as a float64, accepting numeric strings.
func (p Params) Float(key string, def float64) float64 {
	switch t := p[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return def
}

// Bool returns key as a bool, accepting "true"/"false"/"yes"/"no"/"1"/"0".
func (p Params) Bool(key string, def bool) bool {
	switch t := p[key].(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1", "on":
			return true
		case "false", "no", "0", "off":
			return false
		}
	case int:
		return t != 0
	}
	return def
}

// Strings returns key as a string list. A single string becomes a one-element list.
func (p Params) Strings(key string) []string {
	switch t := p[key].(type) {
	case []string:
		return t
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// Map returns key as a mapping, or nil.
func (p Params) Map(key string) map[string]any {
	m, _ := asMap(p[key])
	return m
}

// List returns key as a list of values, or nil.
func (p Params) List(key string) []any {
	switch t := p[key].(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	}
	return nil
}

// RequireString returns key as a non-empty string or a MISSING_PARAM error
// naming stepName.
func (p Params) RequireString(stepName, key string) (string, error) {
	s := strings.TrimSpace(p.String(key, ""))
	if s == "" {
		return "", errors.MissingParam(stepName, key)
	}
	return s, nil
}
