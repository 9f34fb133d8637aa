package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration. Every field can be set from the
// environment (or a .env file in the working directory); nested fields accept
// both the prefixed form (SERVER_ADDRESS) and the bare tag (ADDRESS).
type Config struct {
	Server      ServerConfig
	Pipeline    PipelineConfig
	Segmenter   SegmenterConfig
	Transcriber TranscriberConfig
	Summarizer  SummarizerConfig
	Log         LogConfig

	StoragePath string `envconfig:"STORAGE_PATH" default:"./data" validate:"required"`
	ResultCache bool   `envconfig:"RESULT_CACHE" default:"true"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

type ServerConfig struct {
	Address      string        `envconfig:"ADDRESS" default:":8080" validate:"required"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"60s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"35m"`
	MaxUploadMB  int64         `envconfig:"MAX_UPLOAD_MB" default:"100" validate:"gt=0"`
}

type PipelineConfig struct {
	JobWorkers      int           `envconfig:"JOB_WORKERS" default:"1" validate:"gt=0"`
	QueueSize       int           `envconfig:"QUEUE_SIZE" default:"16" validate:"gt=0"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30m" validate:"gt=0"`
	DefaultLanguage string        `envconfig:"DEFAULT_LANGUAGE" default:"ja" validate:"oneof=ja en auto"`
	DefaultMode     string        `envconfig:"DEFAULT_MODE" default:"plain" validate:"oneof=plain conversation summary"`
	TempDir         string        `envconfig:"TEMP_DIR"`
	KeepChunks      bool          `envconfig:"KEEP_CHUNKS" default:"false"`
}

type SegmenterConfig struct {
	Kind         string `envconfig:"SEGMENTER" default:"auto" validate:"oneof=auto decode ffmpeg"`
	ChunkSeconds int    `envconfig:"CHUNK_SECONDS" default:"60" validate:"gt=0"`
	FFmpegPath   string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	DecodeMaxMB  int64  `envconfig:"DECODE_MAX_MB" default:"8" validate:"gte=0"`
}

type TranscriberConfig struct {
	Backend         string `envconfig:"TRANSCRIBER" default:"openai" validate:"oneof=openai assemblyai"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1" validate:"url"`
	Model           string `envconfig:"TRANSCRIBE_MODEL" default:"whisper-1"`
	MaxRetries      uint64 `envconfig:"TRANSCRIBE_MAX_RETRIES" default:"0"`
	AssemblyAIKey   string `envconfig:"ASSEMBLYAI_API_KEY"`
	HTTPTimeoutSecs int    `envconfig:"TRANSCRIBE_HTTP_TIMEOUT" default:"300" validate:"gt=0"`
}

type SummarizerConfig struct {
	APIKey  string `envconfig:"SUMMARY_API_KEY"`
	BaseURL string `envconfig:"SUMMARY_BASE_URL" default:"https://api.openai.com/v1" validate:"url"`
	Model   string `envconfig:"SUMMARY_MODEL" default:"gpt-4o"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`
}

// Load reads .env (when present) and the process environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	// The summariser talks to the same provider unless told otherwise.
	if cfg.Summarizer.APIKey == "" {
		cfg.Summarizer.APIKey = cfg.Transcriber.OpenAIAPIKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the credentials the selected backend needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch c.Transcriber.Backend {
	case "openai":
		if c.Transcriber.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai transcriber")
		}
	case "assemblyai":
		if c.Transcriber.AssemblyAIKey == "" {
			return fmt.Errorf("ASSEMBLYAI_API_KEY is required for the assemblyai transcriber")
		}
	}
	return nil
}

// ChunkLength returns the configured segment duration.
func (c *Config) ChunkLength() time.Duration {
	return time.Duration(c.Segmenter.ChunkSeconds) * time.Second
}

// CacheScope identifies the services and models behind a result, so cached
// results are not reused after switching backend or model.
func (c *Config) CacheScope() string {
	transcriber := c.Transcriber.Backend
	if transcriber == "openai" {
		transcriber += "/" + c.Transcriber.Model
	}
	return transcriber + "+" + c.Summarizer.Model
}

// MaxDecodeBytes returns the largest file the auto segmenter decodes in memory.
func (c *Config) MaxDecodeBytes() int64 {
	return c.Segmenter.DecodeMaxMB << 20
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}
