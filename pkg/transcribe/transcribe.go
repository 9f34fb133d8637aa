package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"audio-transcriber/pkg/config"
	"audio-transcriber/pkg/models"
)

// Detail selects how much the service returns for a chunk.
type Detail string

const (
	// DetailText asks for the verbatim transcript only.
	DetailText Detail = "text"
	// DetailVerbose asks for per-utterance timing as well.
	DetailVerbose Detail = "verbose"
)

// Request describes one chunk submission.
type Request struct {
	Path string
	// Language is an ISO-639-1 hint; empty lets the service detect it.
	Language string
	Detail   Detail
}

// Transcriber converts one audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (models.Transcription, error)
}

// StatusError is a non-2xx answer from a hosted service.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Service, e.StatusCode, e.Body)
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	// transport failures
	return true
}

// New builds the configured backend, wrapped with retries when enabled.
func New(cfg config.TranscriberConfig, logger *zap.Logger) (Transcriber, error) {
	var t Transcriber
	timeout := time.Duration(cfg.HTTPTimeoutSecs) * time.Second
	switch cfg.Backend {
	case "openai":
		t = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, timeout, logger)
	case "assemblyai":
		t = NewAssemblyAI(cfg.AssemblyAIKey, logger)
	default:
		return nil, fmt.Errorf("unknown transcriber %q", cfg.Backend)
	}
	if cfg.MaxRetries > 0 {
		t = WithRetry(t, cfg.MaxRetries, logger)
	}
	return t, nil
}
