package steps

import (
	"context"
	"time"

	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/httpclient"
	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/search"
	"github.com/kbukum/vaultflow/step"
	"github.com/kbukum/vaultflow/vault"
	"github.com/kbukum/vaultflow/vector"
)

// Transcriber converts one audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, file string) (string, error)
}

// ReadyChecker reports whether an external service is ready.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Deps are the services steps run against. Any field may be nil.
type Deps struct {
	Vault       *vault.Vault
	Searcher    search.Searcher
	Index       *vector.Index
	HTTP        *httpclient.Client
	Transcriber Transcriber
	// Services are checked by health_check, keyed by service name.
	Services map[string]ReadyChecker
	Clock    func() time.Time
	Log      *logger.Logger
}

func (d *Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

func (d *Deps) log() *logger.Logger {
	if d.Log == nil {
		return logger.NewNop()
	}
	return d.Log
}

func (d *Deps) needVault(stepName string) (*vault.Vault, error) {
	if d.Vault == nil {
		return nil, apperrors.Configuration(stepName, "vault is not configured")
	}
	return d.Vault, nil
}

func (d *Deps) needIndex(stepName string) (*vector.Index, error) {
	if d.Index == nil {
		return nil, apperrors.Configuration(stepName, "vector index is not configured")
	}
	return d.Index, nil
}

// RegisterAll registers every step group.
func RegisterAll(reg *step.Registry, deps *Deps) error {
	for _, register := range []func(*step.Registry, *Deps) error{
		RegisterCore,
		RegisterWeb,
		RegisterNotes,
		RegisterSettings,
		RegisterVector,
		RegisterInbox,
	} {
		if err := register(reg, deps); err != nil {
			return err
		}
	}
	return nil
}

func register(reg *step.Registry, steps map[string]step.Func) error {
	for name, fn := range steps {
		if err := reg.Register(step.New(name, fn)); err != nil {
			return err
		}
	}
	return nil
}

const (
	stampLayout = "2006-01-02T15:04:05"
	fileStamp   = "20060102-150405"
)
