package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/resilience"
)

// TranscriberConfig names the speech-to-text command. Args may contain
// {file} and {model} placeholders.
type TranscriberConfig struct {
	Command string
	Args    []string
	Model   string
	Timeout time.Duration
}

// Transcriber turns audio files into text by running an external command
// such as whisper-cli.
type Transcriber struct {
	runner *Runner
	base   Command
	model  string
	log    *logger.Logger
}

// NewTranscriber creates a Transcriber. log may be nil.
func NewTranscriber(cfg TranscriberConfig, log *logger.Logger) (*Transcriber, error) {
	if cfg.Command == "" {
		return nil, apperrors.Configuration("transcribe", "command is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	breaker := resilience.DefaultCircuitBreakerConfig("transcribe")
	breaker.MaxFailures = 3
	return &Transcriber{
		runner: NewRunner(RunnerConfig{Timeout: cfg.Timeout, CircuitBreaker: &breaker}),
		base:   Command{Binary: cfg.Command, Args: cfg.Args},
		model:  cfg.Model,
		log:    log.WithComponent("transcribe"),
	}, nil
}

// Transcribe runs the command for one audio file. The transcript is read
// from a sidecar "<file>.txt" or "<stem>.txt" written next to the audio
// (removed afterwards), falling back to the command's stdout.
func (t *Transcriber) Transcribe(ctx context.Context, file string) (string, error) {
	cmd := t.base.Expand(map[string]string{"file": file, "model": t.model})
	res, err := t.runner.Run(ctx, cmd)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return "", apperrors.Timeout("transcribe " + filepath.Base(file)).WithCause(err)
		case res != nil:
			return "", apperrors.ExternalServiceError(t.base.Binary, err).WithDetail("stderr", res.StderrTail(500))
		default:
			return "", apperrors.ExternalServiceError(t.base.Binary, err)
		}
	}

	text := ""
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	for _, side := range []string{file + ".txt", stem + ".txt"} {
		data, rerr := os.ReadFile(side)
		if rerr != nil {
			continue
		}
		text = string(data)
		_ = os.Remove(side)
		break
	}
	if strings.TrimSpace(text) == "" {
		text = string(res.Stdout)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.ExternalServiceError(t.base.Binary, errors.New("empty transcript"))
	}
	t.log.Info("audio transcribed", logger.Fields("file", filepath.Base(file), "chars", len(text), "duration", res.Duration.String()))
	return text, nil
}
