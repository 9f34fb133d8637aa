package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"audio-transcriber/pkg/config"
)

// ErrEmptyTranscript is returned without contacting the service when there is
// nothing to summarise.
var ErrEmptyTranscript = errors.New("transcript is empty")

// SystemPrompt is sent as the system message of every summary request.
const SystemPrompt = `あなたは会議の議事録作成アシスタントです。
以下の文字起こしを読み、Markdown 形式で次の2つのセクションを出力してください。

## 会話の要約
話者ごとに発言の要点をまとめてください（例: 「話者A: …」）。

## アクションアイテム
決定事項と、誰が何をいつまでに行うかを箇条書きで列挙してください。該当がない場合は「なし」と書いてください。`

// Summarizer turns a full transcript into a short report.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries uint64
	http       *http.Client
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

func New(cfg config.SummarizerConfig, maxRetries uint64, logger *zap.Logger) *Client {
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxRetries: maxRetries,
		http:       &http.Client{Timeout: 5 * time.Minute},
		logger:     logger,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("chat completions http %d: %s", e.code, e.body)
}

func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", ErrEmptyTranscript
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: transcript},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	var summary string
	op := func() error {
		s, err := c.complete(ctx, payload)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && se.code < 500 && se.code != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		summary = s
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}

	if c.logger != nil {
		c.logger.Debug("summary generated",
			zap.Int("transcript_chars", len([]rune(transcript))),
			zap.Int("summary_chars", len([]rune(summary))),
		)
	}
	return summary, nil
}

func (c *Client) complete(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completions request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", errors.New("chat completions returned no choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}
