// Package render turns finished transcriptions into Markdown for the page and
// for the transcript download.
package render

import (
	"fmt"
	"strings"
	"time"

	"audio-transcriber/pkg/models"
)

// FormatTimestamp renders d as minutes:seconds with the seconds zero-padded.
// Fractions of a second are dropped, so 125.4s is "2:05".
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// SpeakerLabel assigns 話者A to even chunk indices and 話者B to odd ones.
func SpeakerLabel(chunkIndex int) string {
	if chunkIndex%2 == 0 {
		return "話者A"
	}
	return "話者B"
}

// Line is one entry of the conversation log.
type Line struct {
	At      time.Duration
	Speaker string
	Text    string
}

func (l Line) String() string {
	return fmt.Sprintf("[%s] %s: %s", FormatTimestamp(l.At), l.Speaker, l.Text)
}

// ConversationLines flattens transcriptions into speaker-labelled lines.
// Utterance offsets are shifted by the chunk start so timestamps are relative
// to the whole recording. A chunk without utterances contributes one line at
// its start.
func ConversationLines(trs []models.Transcription) []Line {
	var lines []Line
	for _, tr := range trs {
		speaker := SpeakerLabel(tr.ChunkIndex)
		if len(tr.Segments) == 0 {
			if text := strings.TrimSpace(tr.Text); text != "" {
				lines = append(lines, Line{At: tr.ChunkStart, Speaker: speaker, Text: text})
			}
			continue
		}
		for _, seg := range tr.Segments {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			lines = append(lines, Line{At: tr.ChunkStart + seg.Start, Speaker: speaker, Text: text})
		}
	}
	return lines
}

// Plain lists each chunk's text under its own heading, numbered from 1.
func Plain(trs []models.Transcription) string {
	var b strings.Builder
	for _, tr := range trs {
		fmt.Fprintf(&b, "### 分割ファイル %d の文字起こし結果:\n\n", tr.ChunkIndex+1)
		b.WriteString(strings.TrimSpace(tr.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

// Conversation renders the conversation log, one paragraph per line.
func Conversation(trs []models.Transcription) string {
	var b strings.Builder
	for _, l := range ConversationLines(trs) {
		b.WriteString(l.String())
		b.WriteString("\n\n")
	}
	return b.String()
}

// Body renders the results section for the job's mode.
func Body(job *models.Job) string {
	switch job.Mode {
	case models.ModeConversation:
		return Conversation(job.Transcriptions)
	case models.ModeSummary:
		return strings.TrimSpace(job.Summary) + "\n"
	default:
		return Plain(job.Transcriptions)
	}
}

// RenderMarkdown renders a standalone transcript document: a header block
// describing the job followed by the mode's body.
func RenderMarkdown(job *models.Job, generated time.Time) string {
	var b strings.Builder
	b.WriteString("# 文字起こし結果\n\n")
	fmt.Fprintf(&b, "- ファイル: `%s`\n", job.Filename)
	fmt.Fprintf(&b, "- 言語: %s\n", job.Language.Label())
	fmt.Fprintf(&b, "- 表示形式: %s\n", job.Mode.Label())
	fmt.Fprintf(&b, "- 分割数: %d\n", len(job.Transcriptions))
	if !generated.IsZero() {
		fmt.Fprintf(&b, "- 生成日時: %s\n", generated.Format("2006-01-02 15:04:05"))
	}
	b.WriteString("\n---\n\n")
	b.WriteString(Body(job))
	return b.String()
}
