package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"audio-transcriber/pkg/apperr"
	"audio-transcriber/pkg/config"
	"audio-transcriber/pkg/models"
	"audio-transcriber/pkg/render"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type option struct {
	Value    string
	Label    string
	Selected bool
}

type pageData struct {
	Version     string
	MaxUploadMB int64
	Languages   []option
	Modes       []option
	Filename    string
	Result      template.HTML
	Cached      bool
	Error       string
}

type pageRenderer struct {
	cfg *config.Config
}

func newPageRenderer(cfg *config.Config) *pageRenderer {
	return &pageRenderer{cfg: cfg}
}

func (p *pageRenderer) data(language, mode string) pageData {
	d := pageData{
		Version:     p.cfg.Version,
		MaxUploadMB: p.cfg.Server.MaxUploadMB,
	}
	for _, l := range models.Languages {
		d.Languages = append(d.Languages, option{Value: string(l), Label: l.Label(), Selected: string(l) == language})
	}
	for _, m := range models.Modes {
		d.Modes = append(d.Modes, option{Value: string(m), Label: m.Label(), Selected: string(m) == mode})
	}
	return d
}

func (p *pageRenderer) write(w http.ResponseWriter, status int, d pageData) error {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, d); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// errorText is the single message the page shows for any failure.
func errorText(err error) string {
	return "エラーが発生しました: " + apperr.From(err).Info()
}

func (h *Handlers) PageHandler(w http.ResponseWriter, r *http.Request) {
	d := h.page.data(h.cfg.Pipeline.DefaultLanguage, h.cfg.Pipeline.DefaultMode)
	if err := h.page.write(w, http.StatusOK, d); err != nil {
		h.logger.Error("rendering page", zap.Error(err))
	}
}

// PageUploadHandler processes the upload inline and re-renders the page with
// the result or the error. Nothing from a failed run is shown.
func (h *Handlers) PageUploadHandler(w http.ResponseWriter, r *http.Request) {
	upload, opts, err := h.readUpload(w, r)
	d := h.page.data(opts.Language, opts.Mode)
	if opts.Language == "" {
		d = h.page.data(h.cfg.Pipeline.DefaultLanguage, h.cfg.Pipeline.DefaultMode)
	}
	if err != nil {
		h.writePageError(w, r, d, err)
		return
	}
	d.Filename = upload.Filename

	job := models.NewJob(upload.Filename, models.Language(opts.Language), models.Mode(opts.Mode))
	done, err := h.pipeline.Run(r.Context(), job, upload)
	if err != nil {
		h.writePageError(w, r, d, err)
		return
	}

	result, err := render.HTML(render.Body(done))
	if err != nil {
		h.writePageError(w, r, d, apperr.ErrInternal(err))
		return
	}
	d.Result = result
	d.Cached = done.Cached
	if err := h.page.write(w, http.StatusOK, d); err != nil {
		h.logger.Error("rendering page", zap.Error(err))
	}
}

func (h *Handlers) writePageError(w http.ResponseWriter, r *http.Request, d pageData, err error) {
	appErr := apperr.From(err)
	h.logger.Warn("page upload failed",
		zap.String("request_id", requestID(r)),
		zap.String("app_code", string(appErr.Code)),
		zap.Error(err),
	)
	d.Error = errorText(err)
	if werr := h.page.write(w, appErr.HTTPCode, d); werr != nil {
		h.logger.Error("rendering page", zap.Error(werr))
	}
}
