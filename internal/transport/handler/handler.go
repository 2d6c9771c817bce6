package handler

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/trunov/convo/internal/config"
	"github.com/trunov/convo/internal/entities"
	"github.com/trunov/convo/internal/formats"
)

type UseCase interface {
	Convert(ctx context.Context, src entities.SourceFile, target string) (entities.ConversionResult, error)
	Passthrough(ctx context.Context, src entities.SourceFile, target string) (entities.ConversionResult, error)
	Download(ctx context.Context, id string) (entities.Blob, error)
	Release(ctx context.Context, id string) error
	SubmitJob(ctx context.Context, src entities.SourceFile, target string) (entities.Job, error)
	Job(ctx context.Context, id string) (entities.Job, error)
}

type Handler struct {
	useCase   UseCase
	cfg       *config.Config
	validator *validator.Validate
}

func New(useCase UseCase, cfg *config.Config) *Handler {
	return &Handler{
		useCase:   useCase,
		cfg:       cfg,
		validator: validator.New(),
	}
}

func (h *Handler) Formats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, FormatsResponse{Categories: formats.Catalog()})
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	src, params, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	res, err := h.useCase.Convert(r.Context(), src, params.Format)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) Passthrough(w http.ResponseWriter, r *http.Request) {
	src, params, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	res, err := h.useCase.Passthrough(r.Context(), src, params.Format)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// Download streams the artifact once; the handle is gone afterwards.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	blob, err := h.useCase.Download(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUseCaseError(w, err)
		return
	}

	w.Header().Set("Content-Type", blob.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(blob.Size()))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": blob.Filename}))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	if err := h.useCase.Release(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeUseCaseError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	src, params, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	job, err := h.useCase.SubmitJob(r.Context(), src, params.Format)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) Job(w http.ResponseWriter, r *http.Request) {
	job, err := h.useCase.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUseCaseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// readUpload parses the multipart body into a SourceFile. On failure the
// error response is already written.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (entities.SourceFile, UploadParams, bool) {
	src := entities.SourceFile{}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)

	maxMultipartMem := h.cfg.Upload.MaxMultipartMemoryMB
	if err := r.ParseMultipartForm(maxMultipartMem << 20); err != nil {
		writeMultipartError(w, err)
		return src, UploadParams{}, false
	}

	params := UploadParams{Format: formats.Normalize(r.Form.Get("format"))}
	if err := h.validator.Struct(params); err != nil {
		writeJSON(w, http.StatusBadRequest, validationErrorsToMap(err))
		return src, params, false
	}

	file, fh, err := r.FormFile("file")
	if err != nil {
		if strings.Contains(err.Error(), "no such file") {
			writeJSONError(w, `missing file: form field key should be "file"`, http.StatusBadRequest)
		} else {
			writeJSONError(w, "an error occurred while uploading the file: "+err.Error(), http.StatusBadRequest)
		}
		return src, params, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, "failed to read uploaded file: "+err.Error(), http.StatusBadRequest)
		return src, params, false
	}

	src.Name = fh.Filename
	src.Data = data
	src.MIMEType = declaredType(fh.Header.Get("Content-Type"), data)

	return src, params, true
}

// declaredType trusts the part's Content-Type; clients that send none (or the
// generic octet-stream) get the sniffed type instead.
func declaredType(header string, data []byte) string {
	header = strings.TrimSpace(header)
	if header != "" && header != "application/octet-stream" {
		return header
	}
	return mimetype.Detect(data).String()
}
