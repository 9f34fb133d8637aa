package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"audio-transcriber/pkg/models"
)

// OpenAI calls the audio.transcriptions endpoint.
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration, logger *zap.Logger) *OpenAI {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type verboseResponse struct {
	Text     string          `json:"text"`
	Language string          `json:"language"`
	Duration decimal.Decimal `json:"duration"`
	Segments []struct {
		Start decimal.Decimal `json:"start"`
		End   decimal.Decimal `json:"end"`
		Text  string          `json:"text"`
	} `json:"segments"`
}

func responseFormat(d Detail) string {
	if d == DetailVerbose {
		return "verbose_json"
	}
	return "text"
}

func (o *OpenAI) Transcribe(ctx context.Context, req Request) (models.Transcription, error) {
	file, err := os.Open(req.Path)
	if err != nil {
		return models.Transcription{}, fmt.Errorf("opening chunk: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fileWriter, err := writer.CreateFormFile("file", filepath.Base(req.Path))
	if err != nil {
		return models.Transcription{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, file); err != nil {
		return models.Transcription{}, fmt.Errorf("copying chunk data: %w", err)
	}
	writer.WriteField("model", o.model)
	writer.WriteField("response_format", responseFormat(req.Detail))
	if req.Language != "" {
		writer.WriteField("language", req.Language)
	}
	if err := writer.Close(); err != nil {
		return models.Transcription{}, fmt.Errorf("closing multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return models.Transcription{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	started := time.Now()
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return models.Transcription{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Transcription{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Transcription{}, &StatusError{Service: "openai", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if o.logger != nil {
		o.logger.Debug("chunk transcribed",
			zap.String("chunk", filepath.Base(req.Path)),
			zap.String("format", responseFormat(req.Detail)),
			zap.Duration("took", time.Since(started)),
		)
	}

	if req.Detail != DetailVerbose {
		return models.Transcription{Text: strings.TrimSpace(string(raw)), Language: req.Language}, nil
	}
	return parseVerbose(raw)
}

func parseVerbose(raw []byte) (models.Transcription, error) {
	var vr verboseResponse
	if err := json.Unmarshal(raw, &vr); err != nil {
		return models.Transcription{}, fmt.Errorf("decoding verbose_json: %w", err)
	}
	tr := models.Transcription{
		Text:     strings.TrimSpace(vr.Text),
		Language: vr.Language,
		Duration: models.Seconds(vr.Duration),
		Segments: make([]models.TimedText, 0, len(vr.Segments)),
	}
	for _, s := range vr.Segments {
		tr.Segments = append(tr.Segments, models.TimedText{
			Start: models.Seconds(s.Start),
			End:   models.Seconds(s.End),
			Text:  strings.TrimSpace(s.Text),
		})
	}
	return tr, nil
}
