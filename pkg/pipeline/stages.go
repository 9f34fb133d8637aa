package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"audio-transcriber/pkg/apperr"
	"audio-transcriber/pkg/models"
	"audio-transcriber/pkg/render"
	"audio-transcriber/pkg/segmenter"
	"audio-transcriber/pkg/storage"
	"audio-transcriber/pkg/summarize"
	"audio-transcriber/pkg/transcribe"
)

// emptySummary stands in for the summary when nothing was transcribed.
const emptySummary = "文字起こし結果が空のため、要約は生成されませんでした。"

// process runs every stage for job, publishing each status change to the
// memory store. job is owned by the caller and holds the final state on return.
func (m *Manager) process(ctx context.Context, job *models.Job, upload models.Upload) error {
	if m.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.RequestTimeout)
		defer cancel()
	}
	logger := m.logger.With(zap.String("job_id", job.ID), zap.String("filename", job.Filename))
	started := time.Now()
	logger.Info("job started",
		zap.String("language", string(job.Language)),
		zap.String("mode", string(job.Mode)),
		zap.Int("size", len(upload.Data)),
	)

	cacheKey, err := m.runStages(ctx, logger, job, upload)
	job.CompletedAt = time.Now()
	if err != nil {
		appErr := apperr.From(err)
		job.Status = models.StatusFailed
		job.Error = appErr.Info()
		m.publish(job)
		m.persist(logger, job, "")
		logger.Error("job failed",
			zap.String("code", string(appErr.Code)),
			zap.Int("chunks_done", job.ChunksDone),
			zap.Duration("took", time.Since(started)),
			zap.Error(err),
		)
		return appErr
	}

	job.Status = models.StatusCompleted
	m.publish(job)
	m.persist(logger, job, cacheKey)
	logger.Info("job completed",
		zap.Int("chunks", job.ChunkCount),
		zap.Bool("cached", job.Cached),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

// runStages returns the result cache key to index the finished job under, or
// "" when the job was itself served from the cache.
func (m *Manager) runStages(ctx context.Context, logger *zap.Logger, job *models.Job, upload models.Upload) (string, error) {
	if len(upload.Data) == 0 {
		return "", apperr.ErrEmptyAudio(segmenter.ErrEmptyAudio)
	}
	if !upload.Supported() {
		return "", apperr.ErrUnsupportedFormat(fmt.Errorf("%q is not one of mp3, m4a, wav", upload.Filename))
	}

	hash, err := storage.ContentHash(bytes.NewReader(upload.Data))
	if err != nil {
		return "", apperr.ErrInternal(err)
	}
	job.ContentHash = hash
	cacheKey := storage.ResultKey(hash, job.Language, job.Mode, m.cacheScope)

	if m.fromCache(logger, job, cacheKey) {
		return "", nil
	}

	workDir, err := os.MkdirTemp(m.config.TempDir, "transcribe-")
	if err != nil {
		return "", apperr.ErrInternal(fmt.Errorf("creating work dir: %w", err))
	}
	source := filepath.Join(workDir, "upload."+upload.Ext())
	defer m.cleanup(logger, workDir, source)

	if err := os.WriteFile(source, upload.Data, 0o600); err != nil {
		return "", apperr.ErrInternal(fmt.Errorf("writing upload: %w", err))
	}

	job.Status = models.StatusSplitting
	m.publish(job)
	segments, err := m.segmenter.Split(ctx, source, m.chunkLength)
	if err != nil {
		return "", splitError(err)
	}
	job.ChunkCount = len(segments)
	logger.Info("audio split", zap.Int("chunks", len(segments)))

	job.Status = models.StatusTranscribing
	m.publish(job)
	if err := m.transcribeAll(ctx, logger, job, segments); err != nil {
		return "", err
	}

	if job.Mode == models.ModeSummary {
		job.Status = models.StatusSummarizing
		m.publish(job)
		summary, err := m.summarizer.Summarize(ctx, job.FullText())
		switch {
		case errors.Is(err, summarize.ErrEmptyTranscript):
			logger.Warn("nothing to summarise")
			summary = emptySummary
		case err != nil:
			return "", apperr.ErrSummaryFailed(err)
		}
		job.Summary = summary
	}

	job.Markdown = render.RenderMarkdown(job, time.Now())
	return cacheKey, nil
}

// transcribeAll submits chunks one at a time in order. The first failure
// stops the loop so no further requests are made.
func (m *Manager) transcribeAll(ctx context.Context, logger *zap.Logger, job *models.Job, segments []models.Segment) error {
	detail := transcribe.DetailText
	if job.Mode == models.ModeConversation {
		detail = transcribe.DetailVerbose
	}

	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return apperr.ErrTranscriptionFailed(seg.Index, err)
		}
		tr, err := m.transcriber.Transcribe(ctx, transcribe.Request{
			Path:     seg.Path,
			Language: job.Language.Code(),
			Detail:   detail,
		})
		if err != nil {
			return apperr.ErrTranscriptionFailed(seg.Index, err)
		}
		tr.ChunkIndex = seg.Index
		tr.ChunkStart = seg.Start

		job.Transcriptions = append(job.Transcriptions, tr)
		job.ChunksDone++
		m.publish(job)
		logger.Debug("chunk done",
			zap.Int("chunk", seg.Index),
			zap.Int("of", len(segments)),
		)
	}
	return nil
}

func splitError(err error) error {
	switch {
	case errors.Is(err, segmenter.ErrEmptyAudio):
		return apperr.ErrEmptyAudio(err)
	case errors.Is(err, segmenter.ErrUnsupportedFormat):
		return apperr.ErrUnsupportedFormat(err)
	}
	return apperr.ErrSegmentationFailed(err)
}

// fromCache fills job from a previous identical run when one exists.
func (m *Manager) fromCache(logger *zap.Logger, job *models.Job, key string) bool {
	if !m.resultCache {
		return false
	}
	prev, err := m.diskStore.LookupResult(key)
	if err != nil {
		if !errors.Is(err, storage.ErrJobNotFound) {
			logger.Warn("result cache lookup failed", zap.Error(err))
		}
		return false
	}

	job.Transcriptions = append([]models.Transcription(nil), prev.Transcriptions...)
	job.ChunkCount = prev.ChunkCount
	job.ChunksDone = prev.ChunksDone
	job.Summary = prev.Summary
	job.Cached = true
	job.Markdown = render.RenderMarkdown(job, time.Now())
	logger.Info("served from result cache", zap.String("source_job", prev.ID))
	return true
}

// persist writes job to history and, when key is set, indexes it for reuse.
func (m *Manager) persist(logger *zap.Logger, job *models.Job, key string) {
	if m.diskStore == nil {
		return
	}
	var err error
	if key != "" && m.resultCache {
		err = m.diskStore.StoreResult(key, job)
	} else {
		err = m.diskStore.StoreJob(job)
	}
	if err != nil {
		logger.Warn("failed to persist job", zap.Error(err))
	}
}

func (m *Manager) publish(job *models.Job) {
	if err := m.memStore.SaveJob(job); err != nil {
		m.logger.Warn("failed to publish job status", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// cleanup removes the upload and, unless chunks are kept, the whole work dir.
func (m *Manager) cleanup(logger *zap.Logger, workDir, source string) {
	if m.config.KeepChunks {
		if err := os.Remove(source); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove upload", zap.Error(err))
		}
		logger.Debug("chunks kept", zap.String("dir", workDir))
		return
	}
	if err := os.RemoveAll(workDir); err != nil {
		logger.Warn("failed to remove work dir", zap.String("dir", workDir), zap.Error(err))
	}
}
