package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"audio-transcriber/pkg/models"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{5 * time.Second, "0:05"},
		{59999 * time.Millisecond, "0:59"},
		{60 * time.Second, "1:00"},
		{125400 * time.Millisecond, "2:05"},
		{61 * time.Minute, "61:00"},
		{-time.Second, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimestamp(tt.in), "input %s", tt.in)
	}
}

func TestSpeakerLabelAlternates(t *testing.T) {
	for i := 0; i < 6; i++ {
		want := "話者A"
		if i%2 == 1 {
			want = "話者B"
		}
		assert.Equal(t, want, SpeakerLabel(i), "chunk %d", i)
	}
}

func sampleTranscriptions() []models.Transcription {
	return []models.Transcription{
		{
			ChunkIndex: 0,
			Text:       "おはようございます。 始めましょう。",
			Segments: []models.TimedText{
				{Start: 0, End: 2 * time.Second, Text: " おはようございます。"},
				{Start: 5400 * time.Millisecond, End: 7 * time.Second, Text: "始めましょう。"},
			},
		},
		{
			ChunkIndex: 1,
			ChunkStart: time.Minute,
			Text:       "はい。",
			Segments: []models.TimedText{
				{Start: 5400 * time.Millisecond, End: 6 * time.Second, Text: "はい。"},
				{Start: 7 * time.Second, End: 8 * time.Second, Text: "  "},
			},
		},
		{ChunkIndex: 2, ChunkStart: 2 * time.Minute, Text: "以上です。"},
	}
}

func TestConversationLines(t *testing.T) {
	got := ConversationLines(sampleTranscriptions())
	want := []Line{
		{At: 0, Speaker: "話者A", Text: "おはようございます。"},
		{At: 5400 * time.Millisecond, Speaker: "話者A", Text: "始めましょう。"},
		{At: 65400 * time.Millisecond, Speaker: "話者B", Text: "はい。"},
		{At: 2 * time.Minute, Speaker: "話者A", Text: "以上です。"},
	}
	assert.DeepEqual(t, want, got)
}

func TestConversation(t *testing.T) {
	got := Conversation(sampleTranscriptions())
	want := "[0:00] 話者A: おはようございます。\n\n" +
		"[0:05] 話者A: 始めましょう。\n\n" +
		"[1:05] 話者B: はい。\n\n" +
		"[2:00] 話者A: 以上です。\n\n"
	assert.Equal(t, want, got)
}

func TestPlain(t *testing.T) {
	got := Plain([]models.Transcription{
		{ChunkIndex: 0, Text: " 一つ目 "},
		{ChunkIndex: 1, Text: "二つ目"},
	})
	want := "### 分割ファイル 1 の文字起こし結果:\n\n一つ目\n\n" +
		"### 分割ファイル 2 の文字起こし結果:\n\n二つ目\n\n"
	assert.Equal(t, want, got)
}

func TestBodyByMode(t *testing.T) {
	job := models.NewJob("meeting.mp3", models.LanguageJapanese, models.ModeSummary)
	job.Transcriptions = sampleTranscriptions()
	job.Summary = "## 会話の要約\n- 話者A: 挨拶\n\n"
	assert.Equal(t, "## 会話の要約\n- 話者A: 挨拶\n", Body(job))

	job.Mode = models.ModeConversation
	assert.Assert(t, strings.HasPrefix(Body(job), "[0:00] 話者A:"))

	job.Mode = models.ModePlain
	assert.Assert(t, strings.HasPrefix(Body(job), "### 分割ファイル 1"))
}

func TestRenderMarkdownHeader(t *testing.T) {
	job := models.NewJob("meeting.mp3", models.LanguageAuto, models.ModePlain)
	job.Transcriptions = []models.Transcription{{ChunkIndex: 0, Text: "hello"}}
	generated := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	got := RenderMarkdown(job, generated)
	want := "# 文字起こし結果\n\n" +
		"- ファイル: `meeting.mp3`\n" +
		"- 言語: 自動検出\n" +
		"- 表示形式: 分割ごとの文字起こし\n" +
		"- 分割数: 1\n" +
		"- 生成日時: 2024-05-01 09:30:00\n" +
		"\n---\n\n" +
		"### 分割ファイル 1 の文字起こし結果:\n\nhello\n\n"
	assert.Equal(t, want, got)
}

func TestHTMLEscapesRawHTML(t *testing.T) {
	out, err := HTML("## 要約\n\n<script>alert(1)</script>\n\n- 項目")
	require.NoError(t, err)
	s := string(out)
	assert.Assert(t, strings.Contains(s, "<h2>要約</h2>"), s)
	assert.Assert(t, strings.Contains(s, "<li>項目</li>"), s)
	assert.Assert(t, !strings.Contains(s, "<script>"), s)
}
