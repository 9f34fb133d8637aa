package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"audio-transcriber/pkg/apperr"
	"audio-transcriber/pkg/config"
	"audio-transcriber/pkg/models"
	"audio-transcriber/pkg/pipeline"
	"audio-transcriber/pkg/render"
	"audio-transcriber/pkg/segmenter"
	"audio-transcriber/pkg/storage"
)

// formOverhead leaves room for the non-file fields of the multipart form.
const formOverhead = 1 << 20

type Handlers struct {
	pipeline *pipeline.Manager
	store    storage.MemoryStore
	cfg      *config.Config
	validate *validator.Validate
	page     *pageRenderer
	logger   *zap.Logger
}

func NewHandlers(manager *pipeline.Manager, store storage.MemoryStore, cfg *config.Config, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		pipeline: manager,
		store:    store,
		cfg:      cfg,
		validate: validator.New(),
		page:     newPageRenderer(cfg),
		logger:   logger,
	}
}

// Router wires every route behind the request logger.
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestLogger(h.logger))

	router.HandleFunc("/", h.PageHandler).Methods(http.MethodGet)
	router.HandleFunc("/", h.PageUploadHandler).Methods(http.MethodPost)
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jobs", h.UploadHandler).Methods(http.MethodPost)
	api.HandleFunc("/jobs", h.ListJobsHandler).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", h.GetJobHandler).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/transcript.md", h.TranscriptHandler).Methods(http.MethodGet)

	router.HandleFunc("/ws", h.WebSocketHandler)
	return router
}

type uploadOptions struct {
	Language string `validate:"required,oneof=ja en auto"`
	Mode     string `validate:"required,oneof=plain conversation summary"`
}

// readUpload parses the multipart form shared by the page and the API: an
// "audio" file plus optional "language" and "mode" fields.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) (models.Upload, uploadOptions, error) {
	limit := h.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || r.ContentLength > limit+formOverhead {
			return models.Upload{}, uploadOptions{}, apperr.ErrUploadTooLarge(h.cfg.Server.MaxUploadMB)
		}
		return models.Upload{}, uploadOptions{}, apperr.ErrInvalidArgument("failed to parse form")
	}

	opts := uploadOptions{
		Language: r.FormValue("language"),
		Mode:     r.FormValue("mode"),
	}
	if opts.Language == "" {
		opts.Language = h.cfg.Pipeline.DefaultLanguage
	}
	if opts.Mode == "" {
		opts.Mode = h.cfg.Pipeline.DefaultMode
	}
	if err := h.validate.Struct(opts); err != nil {
		return models.Upload{}, opts, apperr.ErrInvalidArgument(fmt.Sprintf("invalid options: %v", err))
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return models.Upload{}, opts, apperr.ErrInvalidArgument("audio file is required")
	}
	defer file.Close()

	if header.Size > limit {
		return models.Upload{}, opts, apperr.ErrUploadTooLarge(h.cfg.Server.MaxUploadMB)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return models.Upload{}, opts, apperr.ErrInternal(fmt.Errorf("reading upload: %w", err))
	}

	upload := models.Upload{Filename: header.Filename, Data: data}
	if len(data) == 0 {
		return upload, opts, apperr.ErrEmptyAudio(segmenter.ErrEmptyAudio)
	}
	if !upload.Supported() {
		return upload, opts, apperr.ErrUnsupportedFormat(fmt.Errorf("%q is not one of mp3, m4a, wav", header.Filename))
	}
	return upload, opts, nil
}

// UploadHandler queues an upload and answers immediately with the job id.
func (h *Handlers) UploadHandler(w http.ResponseWriter, r *http.Request) {
	upload, opts, err := h.readUpload(w, r)
	if err != nil {
		HandleError(h.logger, w, r, err)
		return
	}

	job := models.NewJob(upload.Filename, models.Language(opts.Language), models.Mode(opts.Mode))
	if err := h.pipeline.Submit(job, upload); err != nil {
		HandleError(h.logger, w, r, err)
		return
	}

	HandleSuccess(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
		"size":   len(upload.Data),
	})
}

func (h *Handlers) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.pipeline.Job(id)
	if err != nil {
		if errors.Is(err, storage.ErrJobNotFound) {
			err = apperr.ErrNotFound("job", id)
		}
		HandleError(h.logger, w, r, err)
		return
	}
	HandleSuccess(w, http.StatusOK, job)
}

// ListJobsHandler returns live jobs, newest first, capped by ?limit (default 50).
func (h *Handlers) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	jobs := h.store.ListJobs()

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}

	HandleSuccess(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// TranscriptHandler downloads a completed job as a Markdown document.
func (h *Handlers) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.pipeline.Job(id)
	if err != nil {
		if errors.Is(err, storage.ErrJobNotFound) {
			err = apperr.ErrNotFound("job", id)
		}
		HandleError(h.logger, w, r, err)
		return
	}
	if job.Status != models.StatusCompleted {
		HandleError(h.logger, w, r, apperr.ErrNotFound("transcript", id).WithDetail("status", string(job.Status)))
		return
	}

	markdown := job.Markdown
	if markdown == "" {
		markdown = render.RenderMarkdown(job, job.CompletedAt)
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.Filename+".md"))
	io.WriteString(w, markdown)
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	HandleSuccess(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.cfg.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
