package storage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"audio-transcriber/pkg/models"
)

func TestContentHash(t *testing.T) {
	a, err := ContentHash(strings.NewReader("same audio"))
	require.NoError(t, err)
	b, err := ContentHash(strings.NewReader("same audio"))
	require.NoError(t, err)
	c, err := ContentHash(strings.NewReader("other audio"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Assert(t, a != c)
	assert.Equal(t, 64, len(a))
}

func TestResultKey(t *testing.T) {
	assert.Equal(t, "abc:ja:summary:openai/whisper-1@1m0s",
		ResultKey("abc", models.LanguageJapanese, models.ModeSummary, "openai/whisper-1@1m0s"))
	assert.Assert(t, ResultKey("abc", models.LanguageJapanese, models.ModePlain, "s") !=
		ResultKey("abc", models.LanguageEnglish, models.ModePlain, "s"))
	assert.Assert(t, ResultKey("abc", models.LanguageJapanese, models.ModePlain, "openai/whisper-1@1m0s") !=
		ResultKey("abc", models.LanguageJapanese, models.ModePlain, "openai/whisper-1@30s"))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	job := models.NewJob("a.wav", models.LanguageJapanese, models.ModePlain)
	require.NoError(t, s.SaveJob(job))

	job.Status = models.StatusFailed
	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	got.Transcriptions = append(got.Transcriptions, models.Transcription{Text: "x"})
	again, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, len(again.Transcriptions))
}

func TestMemoryStoreUpdateJob(t *testing.T) {
	s := NewMemoryStore()
	job := models.NewJob("a.wav", models.LanguageJapanese, models.ModePlain)
	require.NoError(t, s.SaveJob(job))

	updated, err := s.UpdateJob(job.ID, func(j *models.Job) {
		j.Status = models.StatusTranscribing
		j.ChunksDone = 2
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusTranscribing, updated.Status)
	assert.Equal(t, 2, updated.ChunksDone)

	_, err = s.UpdateJob("missing", func(*models.Job) {})
	assert.Assert(t, errors.Is(err, ErrJobNotFound))
	_, err = s.GetJob("missing")
	assert.Assert(t, errors.Is(err, ErrJobNotFound))
}

func TestMemoryStoreListJobsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"old.wav", "new.wav", "mid.wav"} {
		job := models.NewJob(name, models.LanguageJapanese, models.ModePlain)
		job.CreatedAt = base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
		require.NoError(t, s.SaveJob(job))
	}

	jobs := s.ListJobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, "new.wav", jobs[0].Filename)
	assert.Equal(t, "mid.wav", jobs[1].Filename)
	assert.Equal(t, "old.wav", jobs[2].Filename)
}

func TestDiskStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDiskStore(dir)
	require.NoError(t, err)

	job := models.NewJob("meeting.m4a", models.LanguageEnglish, models.ModeSummary)
	job.Status = models.StatusCompleted
	job.Summary = "## Summary"
	job.Transcriptions = []models.Transcription{{ChunkIndex: 0, Text: "hello"}}
	key := ResultKey("deadbeef", job.Language, job.Mode, "assemblyai@1m0s")
	require.NoError(t, s.StoreResult(key, job))
	require.NoError(t, s.Close())

	// reopen to make sure the result survived
	s, err = NewDiskStore(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.LookupResult(key)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "## Summary", got.Summary)
	assert.Equal(t, "hello", got.Transcriptions[0].Text)

	byID, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Filename, byID.Filename)

	_, err = s.LookupResult(ResultKey("deadbeef", job.Language, models.ModePlain, "assemblyai@1m0s"))
	assert.Assert(t, errors.Is(err, ErrJobNotFound))
}

func TestDiskStoreMissingJob(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetJob("nope")
	assert.Assert(t, errors.Is(err, ErrJobNotFound))
}
