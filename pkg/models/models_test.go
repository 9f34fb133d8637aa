package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gotest.tools/assert"
)

func TestUploadSupported(t *testing.T) {
	for name, want := range map[string]bool{
		"meeting.mp3":  true,
		"voice.M4A":    true,
		"take.wav":     true,
		"notes.txt":    false,
		"no-extension": false,
		"clip.wav.ogg": false,
	} {
		assert.Equal(t, want, Upload{Filename: name}.Supported(), name)
	}
}

func TestLanguageCode(t *testing.T) {
	assert.Equal(t, "ja", LanguageJapanese.Code())
	assert.Equal(t, "en", LanguageEnglish.Code())
	assert.Equal(t, "", LanguageAuto.Code())
	assert.Equal(t, "自動検出", LanguageAuto.Label())
}

func TestFullTextKeepsChunkOrder(t *testing.T) {
	j := NewJob("a.wav", LanguageJapanese, ModeSummary)
	j.Transcriptions = []Transcription{
		{ChunkIndex: 0, Text: "first "},
		{ChunkIndex: 1, Text: ""},
		{ChunkIndex: 2, Text: "third"},
	}
	assert.Equal(t, "first\nthird", j.FullText())
}

func TestCloneDoesNotShareTranscriptions(t *testing.T) {
	j := NewJob("a.wav", LanguageJapanese, ModePlain)
	j.Transcriptions = []Transcription{{Text: "x"}}
	c := j.Clone()
	c.Transcriptions[0].Text = "y"
	assert.Equal(t, "x", j.Transcriptions[0].Text)
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 125400*time.Millisecond, Seconds(decimal.RequireFromString("125.4")))
	assert.Equal(t, time.Duration(0), Seconds(decimal.Zero))
}
