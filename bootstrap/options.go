package bootstrap

import (
	"io"
	"time"

	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/steps"
)

// Option configures the App during creation.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	deps            *steps.Deps
	clock           func() time.Time
	gracefulTimeout *time.Duration
	summaryOut      io.Writer
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger. By default the logger is built from the
// config's logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithDeps replaces the step dependencies built from config.
func WithDeps(d *steps.Deps) Option {
	return func(o *appOptions) { o.deps = d }
}

// WithClock sets the time source for the vault, steps and scheduler.
func WithClock(now func() time.Time) Option {
	return func(o *appOptions) { o.clock = now }
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.gracefulTimeout = &d }
}

// WithSummaryOutput sets where the startup summary is printed; nil
// suppresses it.
func WithSummaryOutput(w io.Writer) Option {
	return func(o *appOptions) {
		if w == nil {
			w = io.Discard
		}
		o.summaryOut = w
	}
}
