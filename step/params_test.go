package step

import (
	"reflect"
	"testing"

	vferrors "github.com/kbukum/vaultflow/errors"
)

func TestParamsAccessors(t *testing.T) {
	p := Params{
		"s":     "text",
		"n":     3,
		"nf":    4.0,
		"ns":    "5",
		"f":     0.25,
		"b":     true,
		"bs":    "yes",
		"list":  []any{"a", 1, nil},
		"one":   "solo",
		"m":     map[string]any{"k": "v"},
		"empty": nil,
	}

	if p.String("s", "") != "text" || p.String("n", "") != "3" || p.String("missing", "def") != "def" {
		t.Error("String accessor")
	}
	if p.Int("n", 0) != 3 || p.Int("nf", 0) != 4 || p.Int("ns", 0) != 5 || p.Int("s", 9) != 9 {
		t.Error("Int accessor")
	}
	if p.Float("f", 0) != 0.25 || p.Float("n", 0) != 3 || p.Float("missing", 1.5) != 1.5 {
		t.Error("Float accessor")
	}
	if !p.Bool("b", false) || !p.Bool("bs", false) || p.Bool("missing", false) {
		t.Error("Bool accessor")
	}
	if got := p.Strings("list"); !reflect.DeepEqual(got, []string{"a", "1"}) {
		t.Errorf("Strings(list) = %v", got)
	}
	if got := p.Strings("one"); !reflect.DeepEqual(got, []string{"solo"}) {
		t.Errorf("Strings(one) = %v", got)
	}
	if p.Map("m")["k"] != "v" || p.Map("s") != nil {
		t.Error("Map accessor")
	}
	if p.Has("empty") || !p.Has("s") {
		t.Error("Has accessor")
	}
}

func TestRequireString(t *testing.T) {
	p := Params{"path": "Notes/a.md", "blank": "  "}

	if v, err := p.RequireString("obsidian_read_note", "path"); err != nil || v != "Notes/a.md" {
		t.Errorf("RequireString = %q, %v", v, err)
	}
	for _, key := range []string{"blank", "missing"} {
		_, err := p.RequireString("obsidian_read_note", key)
		if !vferrors.Is(err, vferrors.ErrCodeMissingParam) {
			t.Errorf("RequireString(%s) error = %v", key, err)
		}
	}
}
