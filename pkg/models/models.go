package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Language string

const (
	LanguageJapanese Language = "ja"
	LanguageEnglish  Language = "en"
	LanguageAuto     Language = "auto"
)

// Languages lists the selector options in display order.
var Languages = []Language{LanguageJapanese, LanguageEnglish, LanguageAuto}

func (l Language) Label() string {
	switch l {
	case LanguageJapanese:
		return "日本語"
	case LanguageEnglish:
		return "英語"
	case LanguageAuto:
		return "自動検出"
	}
	return string(l)
}

// Code is the hint passed to the speech-to-text service; empty means auto-detect.
func (l Language) Code() string {
	if l == LanguageAuto {
		return ""
	}
	return string(l)
}

// Mode selects how transcriptions are presented.
type Mode string

const (
	ModePlain        Mode = "plain"
	ModeConversation Mode = "conversation"
	ModeSummary      Mode = "summary"
)

var Modes = []Mode{ModePlain, ModeConversation, ModeSummary}

func (m Mode) Label() string {
	switch m {
	case ModePlain:
		return "分割ごとの文字起こし"
	case ModeConversation:
		return "会話ログ"
	case ModeSummary:
		return "要約とアクションアイテム"
	}
	return string(m)
}

// SupportedExtensions are the upload types the page accepts.
var SupportedExtensions = []string{"mp3", "m4a", "wav"}

// Upload is one uploaded recording.
type Upload struct {
	Filename string
	Data     []byte
}

// Ext returns the lower-cased extension without the dot.
func (u Upload) Ext() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Filename), "."))
}

func (u Upload) Supported() bool {
	ext := u.Ext()
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Segment is one chunk of the source audio materialised as a file.
type Segment struct {
	Index int           `json:"index"`
	Path  string        `json:"-"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// TimedText is one utterance with offsets relative to its chunk.
type TimedText struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Transcription is the service result for one chunk.
type Transcription struct {
	ChunkIndex int           `json:"chunk_index"`
	ChunkStart time.Duration `json:"chunk_start"`
	Text       string        `json:"text"`
	Language   string        `json:"language,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Segments   []TimedText   `json:"segments,omitempty"`
}

type ProcessingStatus string

const (
	StatusPending      ProcessingStatus = "pending"
	StatusSplitting    ProcessingStatus = "splitting"
	StatusTranscribing ProcessingStatus = "transcribing"
	StatusSummarizing  ProcessingStatus = "summarizing"
	StatusCompleted    ProcessingStatus = "completed"
	StatusFailed       ProcessingStatus = "failed"
)

// Done reports whether the status is terminal.
func (s ProcessingStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks one upload through the pipeline.
type Job struct {
	ID             string           `json:"id"`
	Filename       string           `json:"filename"`
	ContentHash    string           `json:"content_hash,omitempty"`
	Language       Language         `json:"language"`
	Mode           Mode             `json:"mode"`
	Status         ProcessingStatus `json:"status"`
	ChunkCount     int              `json:"chunk_count"`
	ChunksDone     int              `json:"chunks_done"`
	Transcriptions []Transcription  `json:"transcriptions,omitempty"`
	Summary        string           `json:"summary,omitempty"`
	Markdown       string           `json:"markdown,omitempty"`
	Cached         bool             `json:"cached,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    time.Time        `json:"completed_at,omitempty"`
}

func NewJob(filename string, lang Language, mode Mode) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Filename:  filename,
		Language:  lang,
		Mode:      mode,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// Clone returns a copy that shares no slices with j.
func (j *Job) Clone() *Job {
	c := *j
	c.Transcriptions = append([]Transcription(nil), j.Transcriptions...)
	return &c
}

// FullText joins every chunk's transcript in chunk order.
func (j *Job) FullText() string {
	parts := make([]string, 0, len(j.Transcriptions))
	for _, t := range j.Transcriptions {
		if s := strings.TrimSpace(t.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

var nanosPerSecond = decimal.NewFromInt(int64(time.Second))

// Seconds converts a decimal number of seconds, as the services and ffmpeg
// report them, into a Duration.
func Seconds(s decimal.Decimal) time.Duration {
	return time.Duration(s.Mul(nanosPerSecond).IntPart())
}
