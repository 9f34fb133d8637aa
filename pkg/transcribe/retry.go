package transcribe

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"audio-transcriber/pkg/models"
)

type retrying struct {
	next       Transcriber
	maxRetries uint64
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

// WithRetry retries transient failures (transport errors, 429, 5xx) of next up
// to maxRetries times with exponential backoff.
func WithRetry(next Transcriber, maxRetries uint64, logger *zap.Logger) Transcriber {
	return &retrying{
		next:       next,
		maxRetries: maxRetries,
		logger:     logger,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 2 * time.Second
			bo.MaxInterval = 10 * time.Second
			bo.MaxElapsedTime = 2 * time.Minute
			return bo
		},
	}
}

func (r *retrying) Transcribe(ctx context.Context, req Request) (models.Transcription, error) {
	var (
		result  models.Transcription
		attempt int
	)
	op := func() error {
		attempt++
		tr, err := r.next.Transcribe(ctx, req)
		if err != nil {
			if !Retryable(err) {
				return backoff.Permanent(err)
			}
			if r.logger != nil {
				r.logger.Warn("transcription attempt failed",
					zap.String("chunk", req.Path),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			}
			return err
		}
		result = tr
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return models.Transcription{}, err
	}
	return result, nil
}
