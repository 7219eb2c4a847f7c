package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/vaultflow/component"
)

// JobLine is one scheduled or skipped agent in the startup summary.
type JobLine struct {
	ID       string
	Schedule string
	Next     time.Time
	Skipped  string
}

// Summary renders the startup report of a long-running schedule.
type Summary struct {
	service         string
	version         string
	startupDuration time.Duration
	jobs            []JobLine
	out             io.Writer
}

// NewSummary creates a summary that renders to out.
func NewSummary(service, version string, out io.Writer) *Summary {
	return &Summary{service: service, version: version, out: out}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackJob records a scheduled agent.
func (s *Summary) TrackJob(id, schedule string, next time.Time) {
	s.jobs = append(s.jobs, JobLine{ID: id, Schedule: schedule, Next: next})
}

// TrackSkip records an agent that was not scheduled.
func (s *Summary) TrackSkip(id, reason string) {
	s.jobs = append(s.jobs, JobLine{ID: id, Skipped: reason})
}

func prefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

// Display prints the summary with live health from registry.
func (s *Summary) Display(ctx context.Context, registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n🚀 %s %s started in %.2fs\n\n", s.service, s.version, s.startupDuration.Seconds())

	var described []component.Description
	var routes []component.Route
	if registry != nil {
		for _, c := range registry.All() {
			if d, ok := c.(component.Describable); ok {
				described = append(described, d.Describe())
			}
			if rp, ok := c.(component.RouteProvider); ok {
				routes = append(routes, rp.Routes()...)
			}
		}
	}

	if len(described) > 0 {
		fmt.Fprintf(w, "📊 Components\n")
		for i, d := range described {
			details := d.Details
			if d.Port > 0 && !strings.Contains(details, fmt.Sprintf(":%d", d.Port)) {
				details = fmt.Sprintf("%s (:%d)", details, d.Port)
			}
			fmt.Fprintf(w, "   %s %s [%s]: %s\n", prefix(i, len(described)), d.Name, d.Type, details)
		}
		fmt.Fprintln(w)
	}

	if len(s.jobs) > 0 {
		fmt.Fprintf(w, "⏰ Agents (%d)\n", len(s.jobs))
		for i, j := range s.jobs {
			if j.Skipped != "" {
				fmt.Fprintf(w, "   %s ⏸️ %s: skipped (%s)\n", prefix(i, len(s.jobs)), j.ID, j.Skipped)
				continue
			}
			fmt.Fprintf(w, "   %s ✅ %s %q next %s\n", prefix(i, len(s.jobs)), j.ID, j.Schedule, j.Next.Format(time.RFC3339))
		}
		fmt.Fprintln(w)
	}

	if len(routes) > 0 {
		fmt.Fprintf(w, "🌐 Routes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-7s %s → %s\n", prefix(i, len(routes)), r.Method, r.Path, r.Handler)
		}
		fmt.Fprintln(w)
	}

	if registry != nil {
		results := registry.HealthAll(ctx)
		if len(results) > 0 {
			fmt.Fprintf(w, "🏥 Health Check\n")
			for i, h := range results {
				msg := ""
				if h.Message != "" {
					msg = " (" + h.Message + ")"
				}
				fmt.Fprintf(w, "   %s %s %s: %s%s\n", prefix(i, len(results)), healthStatusIcon(h.Status), h.Name, h.Status, msg)
			}
			fmt.Fprintln(w)
		}
	}
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
