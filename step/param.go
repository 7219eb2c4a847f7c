package step

import "strings"

// RefPrefix marks a string parameter as a Context reference.
const RefPrefix = "@"

// Param is a raw parameter value: either a Literal or a Reference.
type Param interface {
	isParam()
}

// Literal is a value passed to the step as-is.
type Literal struct {
	Value any
}

// Reference is a dotted path into the run Context.
type Reference struct {
	Path []string
}

func (Literal) isParam()   {}
func (Reference) isParam() {}

// String renders the reference back in its "@a.b" form.
func (r Reference) String() string {
	return RefPrefix + strings.Join(r.Path, ".")
}

// ParseParam classifies a raw parameter value. Only strings beginning with
// "@" become references; values nested in lists or maps stay literal.
func ParseParam(v any) Param {
	if s, ok := v.(string); ok && strings.HasPrefix(s, RefPrefix) {
		return Reference{Path: strings.Split(strings.TrimPrefix(s, RefPrefix), ".")}
	}
	return Literal{Value: v}
}

// Resolve produces the value of p against run. An unresolvable reference
// yields nil rather than an error.
func Resolve(p Param, run Context) any {
	switch p := p.(type) {
	case Literal:
		return p.Value
	case Reference:
		v, _ := run.Lookup(p.Path)
		return v
	default:
		return nil
	}
}

// ResolveParams resolves every entry of raw against run into a fresh Params.
// raw is not modified.
func ResolveParams(raw map[string]any, run Context) Params {
	out := make(Params, len(raw))
	for k, v := range raw {
		out[k] = Resolve(ParseParam(v), run)
	}
	return out
}
