package planner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/vaultflow/runner"
	"github.com/kbukum/vaultflow/step"
)

// LenientRunner executes confirmed plans.
type LenientRunner interface {
	RunLenient(ctx context.Context, planned []runner.Invocation, reporter runner.Reporter) step.Context
}

// Session is an interactive plan-confirm-run loop.
type Session struct {
	Runner LenientRunner
	In     io.Reader
	Out    io.Writer
	// Clock dates planned notes and summaries. Nil means time.Now.
	Clock func() time.Time
	// Banner is printed once before the first prompt.
	Banner string
}

// Loop reads requests until EOF or ctx is done. Blank lines are ignored.
func (s *Session) Loop(ctx context.Context) error {
	now := s.Clock
	if now == nil {
		now = time.Now
	}
	lines := readLines(ctx, s.In)

	if s.Banner != "" {
		fmt.Fprintln(s.Out, s.Banner)
	}
	for {
		fmt.Fprint(s.Out, "\n> ")
		text, err := next(ctx, lines)
		if err != nil {
			fmt.Fprintln(s.Out, "\nBye.")
			if err == io.EOF {
				return nil
			}
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		plan := Plan(text, now())
		if len(plan) == 0 {
			fmt.Fprintln(s.Out, "Could not understand the request. Try rephrasing.")
			continue
		}

		ok, err := Confirm(s.Out, plan, func() (string, error) { return next(ctx, lines) })
		if err != nil || !ok {
			fmt.Fprintln(s.Out, "Cancelled.")
			if err != nil {
				return err
			}
			continue
		}

		result := s.Runner.RunLenient(ctx, plan, &printer{out: s.Out})
		fmt.Fprintf(s.Out, "\nSummary (%s): %s\n", now().Format(time.DateTime), compactJSON(result.Strings()))
	}
}

// printer reports step outcomes as they happen.
type printer struct {
	out io.Writer
}

func (p *printer) OnStepDone(name string, out step.Context, err error) {
	if err != nil {
		fmt.Fprintf(p.out, "x %s failed: %v\n", name, err)
		return
	}
	fmt.Fprintf(p.out, "ok %s -> %s\n", name, compactJSON(summarize(out)))
}

func (p *printer) OnStepSkipped(name, reason string) {
	fmt.Fprintf(p.out, "! step %q skipped: %s\n", name, reason)
}

// summarize keeps step output printable by eliding long lists.
func summarize(out step.Context) map[string]any {
	m := make(map[string]any, len(out))
	for k, v := range out {
		switch v := v.(type) {
		case []any:
			m[k] = fmt.Sprintf("[%d items]", len(v))
		case []map[string]any:
			m[k] = fmt.Sprintf("[%d items]", len(v))
		default:
			m[k] = v
		}
	}
	return m
}

type line struct {
	text string
	err  error
}

// readLines feeds lines from r into a channel so reads can be abandoned
// when ctx ends.
func readLines(ctx context.Context, r io.Reader) <-chan line {
	ch := make(chan line)
	go func() {
		defer close(ch)
		br := bufio.NewReader(r)
		for {
			text, err := br.ReadString('\n')
			if text != "" || err == nil {
				select {
				case ch <- line{text: text}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				select {
				case ch <- line{err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return ch
}

func next(ctx context.Context, lines <-chan line) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}
