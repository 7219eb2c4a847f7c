package step

// FiltersKey is the reserved Context key holding an agent's filter mapping.
const FiltersKey = "filters"

// Context is the flat key-value state of one pipeline run.
type Context map[string]any

// Merge returns a new Context holding every key of existing and updates.
// On conflict the value from updates wins. Neither argument is modified.
func Merge(existing, updates Context) Context {
	out := make(Context, len(existing)+len(updates))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of c. A nil Context clones to an empty one.
func (c Context) Clone() Context {
	return Merge(c, nil)
}

// Lookup walks path through nested mappings starting at c.
// It reports false when a segment is missing or an intermediate value is not
// a mapping.
func (c Context) Lookup(path []string) (any, bool) {
	var cur any = map[string]any(c)
	for _, seg := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Strings returns the entries of c whose values are strings, which are the
// paths and messages steps report for humans.
func (c Context) Strings() map[string]string {
	out := make(map[string]string)
	for k, v := range c {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Context:
		return m, true
	case Params:
		return m, true
	default:
		return nil, false
	}
}
