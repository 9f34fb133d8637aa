package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"audio-transcriber/pkg/apperr"
	"audio-transcriber/pkg/config"
	"audio-transcriber/pkg/models"
	"audio-transcriber/pkg/segmenter"
	"audio-transcriber/pkg/storage"
	"audio-transcriber/pkg/summarize"
	"audio-transcriber/pkg/transcribe"
)

var (
	ErrQueueFull    = errors.New("pipeline queue is full")
	ErrShuttingDown = errors.New("pipeline is shutting down")
	ErrNotStarted   = errors.New("pipeline is not running")
)

// Options wires a Manager to its collaborators. DiskStore may be nil, which
// disables history and the result cache. CacheScope names the transcription
// settings; cached results are only reused under the same scope and chunk
// length.
type Options struct {
	Config      config.PipelineConfig
	ChunkLength time.Duration
	ResultCache bool
	CacheScope  string

	Segmenter   segmenter.Segmenter
	Transcriber transcribe.Transcriber
	Summarizer  summarize.Summarizer

	MemStore  storage.MemoryStore
	DiskStore storage.DiskStore
	Logger    *zap.Logger
}

type task struct {
	job    *models.Job
	upload models.Upload
}

// Manager runs uploads through split, transcribe, summarise and render.
// Jobs run either inline (Run) or from a bounded queue served by a worker
// pool (Submit). Chunks within one job are always processed in order.
type Manager struct {
	config      config.PipelineConfig
	chunkLength time.Duration
	resultCache bool
	cacheScope  string

	segmenter   segmenter.Segmenter
	transcriber transcribe.Transcriber
	summarizer  summarize.Summarizer

	memStore  storage.MemoryStore
	diskStore storage.DiskStore
	logger    *zap.Logger

	jobCh chan *task
	pool  *WorkerPool

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	queueSize := opts.Config.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	return &Manager{
		config:      opts.Config,
		chunkLength: opts.ChunkLength,
		resultCache: opts.ResultCache && opts.DiskStore != nil,
		cacheScope:  fmt.Sprintf("%s@%s", opts.CacheScope, opts.ChunkLength),
		segmenter:   opts.Segmenter,
		transcriber: opts.Transcriber,
		summarizer:  opts.Summarizer,
		memStore:    opts.MemStore,
		diskStore:   opts.DiskStore,
		logger:      logger,
		jobCh:       make(chan *task, queueSize),
	}
}

func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Info("pipeline starting",
		zap.Int("workers", m.config.JobWorkers),
		zap.Int("queue_size", cap(m.jobCh)),
		zap.Duration("chunk_length", m.chunkLength),
	)

	m.pool = NewWorkerPool(m.config.JobWorkers, m.runTask)
	m.pool.Start(m.ctx)

	m.wg.Add(1)
	go m.runDispatch()
	return nil
}

func (m *Manager) Stop() {
	m.logger.Info("pipeline stopping")
	m.mu.RLock()
	cancel, pool := m.cancel, m.pool
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	if pool != nil {
		pool.Wait()
		pool.Drain(func(t *task) {
			m.reject(t.job, ErrShuttingDown)
		})
	}
	m.logger.Info("pipeline stopped")
}

// Submit records job and queues it for background processing. It never
// blocks: a full queue is reported as ErrQueueFull.
func (m *Manager) Submit(job *models.Job, upload models.Upload) error {
	m.mu.RLock()
	ctx := m.ctx
	m.mu.RUnlock()
	if ctx == nil {
		return apperr.ErrQueueUnavailable(ErrNotStarted)
	}

	if err := m.memStore.SaveJob(job); err != nil {
		return apperr.ErrInternal(err)
	}

	t := &task{job: job.Clone(), upload: upload}
	select {
	case <-ctx.Done():
		m.reject(job, ErrShuttingDown)
		return apperr.ErrQueueUnavailable(ErrShuttingDown)
	default:
	}

	select {
	case m.jobCh <- t:
		m.logger.Info("job queued",
			zap.String("job_id", job.ID),
			zap.String("filename", job.Filename),
			zap.Int("size", len(upload.Data)),
		)
		return nil
	default:
		m.reject(job, ErrQueueFull)
		return apperr.ErrQueueUnavailable(ErrQueueFull)
	}
}

func (m *Manager) reject(job *models.Job, err error) {
	m.logger.Warn("job rejected", zap.String("job_id", job.ID), zap.Error(err))
	m.memStore.UpdateJob(job.ID, func(j *models.Job) {
		j.Status = models.StatusFailed
		j.Error = err.Error()
		j.CompletedAt = time.Now()
	})
}

// Run processes job inline and returns the finished record. The returned
// error is an apperr.AppError.
func (m *Manager) Run(ctx context.Context, job *models.Job, upload models.Upload) (*models.Job, error) {
	if err := m.memStore.SaveJob(job); err != nil {
		return nil, apperr.ErrInternal(err)
	}
	local := job.Clone()
	err := m.process(ctx, local, upload)
	return local, err
}

// Job returns the live record for id, falling back to history on disk.
func (m *Manager) Job(id string) (*models.Job, error) {
	job, err := m.memStore.GetJob(id)
	if err == nil {
		return job, nil
	}
	if m.diskStore != nil && errors.Is(err, storage.ErrJobNotFound) {
		return m.diskStore.GetJob(id)
	}
	return nil, err
}

func (m *Manager) runDispatch() {
	defer m.wg.Done()
	m.logger.Debug("dispatch running")

	for {
		select {
		case t := <-m.jobCh:
			if !m.pool.Submit(m.ctx, t) {
				m.reject(t.job, ErrShuttingDown)
				return
			}
		case <-m.ctx.Done():
			m.drain()
			return
		}
	}
}

// drain fails every job still waiting in the queue.
func (m *Manager) drain() {
	for {
		select {
		case t := <-m.jobCh:
			m.reject(t.job, ErrShuttingDown)
		default:
			return
		}
	}
}

func (m *Manager) runTask(ctx context.Context, t *task) {
	m.process(ctx, t.job, t.upload)
}
