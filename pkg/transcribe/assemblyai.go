package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	"go.uber.org/zap"

	"audio-transcriber/pkg/models"
)

// AssemblyAI uploads each chunk with the official SDK and waits for the
// transcript to complete.
type AssemblyAI struct {
	client *aai.Client
	logger *zap.Logger
}

func NewAssemblyAI(apiKey string, logger *zap.Logger) *AssemblyAI {
	return &AssemblyAI{client: aai.NewClient(apiKey), logger: logger}
}

func assemblyParams(req Request) *aai.TranscriptOptionalParams {
	params := &aai.TranscriptOptionalParams{}
	if req.Language != "" {
		params.LanguageCode = aai.TranscriptLanguageCode(req.Language)
	} else {
		params.LanguageDetection = aai.Bool(true)
	}
	if req.Detail == DetailVerbose {
		params.SpeakerLabels = aai.Bool(true)
	}
	return params
}

func (a *AssemblyAI) Transcribe(ctx context.Context, req Request) (models.Transcription, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return models.Transcription{}, fmt.Errorf("opening chunk: %w", err)
	}
	defer f.Close()

	transcript, err := a.client.Transcripts.TranscribeFromReader(ctx, f, assemblyParams(req))
	if err != nil {
		return models.Transcription{}, fmt.Errorf("assemblyai transcribe: %w", err)
	}
	if transcript.Status == aai.TranscriptStatusError {
		return models.Transcription{}, fmt.Errorf("assemblyai transcript %s failed: %s",
			deref(transcript.ID), deref(transcript.Error))
	}

	if a.logger != nil {
		a.logger.Debug("chunk transcribed",
			zap.String("chunk", filepath.Base(req.Path)),
			zap.String("transcript_id", deref(transcript.ID)),
		)
	}
	return fromAssemblyAI(transcript), nil
}

func fromAssemblyAI(t aai.Transcript) models.Transcription {
	tr := models.Transcription{
		Text:     strings.TrimSpace(deref(t.Text)),
		Language: string(t.LanguageCode),
		Duration: time.Duration(deref(t.AudioDuration) * float64(time.Second)),
	}
	for _, u := range t.Utterances {
		tr.Segments = append(tr.Segments, models.TimedText{
			Start: time.Duration(deref(u.Start)) * time.Millisecond,
			End:   time.Duration(deref(u.End)) * time.Millisecond,
			Text:  strings.TrimSpace(deref(u.Text)),
		})
	}
	return tr
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
