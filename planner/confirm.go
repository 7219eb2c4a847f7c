package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kbukum/vaultflow/runner"
)

// ConfirmPrompt is printed after the plan.
const ConfirmPrompt = "Execute? [y/N]: "

// WritePlan prints plan as a numbered list of "name {params}" lines.
func WritePlan(out io.Writer, plan []runner.Invocation) {
	fmt.Fprintln(out, "Proposed plan:")
	for i, inv := range plan {
		fmt.Fprintf(out, " %d. %s %s\n", i+1, inv.Step, compactJSON(inv.With))
	}
}

// Confirm prints plan and reads one answer with readLine. It blocks until a
// line or EOF arrives; EOF counts as a refusal.
func Confirm(out io.Writer, plan []runner.Invocation, readLine func() (string, error)) (bool, error) {
	WritePlan(out, plan)
	fmt.Fprint(out, ConfirmPrompt)

	line, err := readLine()
	if err != nil && err != io.EOF {
		return false, err
	}
	return Accepts(line), nil
}

// Accepts reports whether answer is a yes: anything starting with "y" or
// "д", which covers "yes" and "да".
func Accepts(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return strings.HasPrefix(a, "y") || strings.HasPrefix(a, "д")
}

func compactJSON(v any) string {
	if v == nil {
		v = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSpace(buf.String())
}
