package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/funko-store/funko-api/internal/auth"
	"github.com/funko-store/funko-api/internal/platform/httpx"
)

// Handler exposes upload and download endpoints.
type Handler struct {
	logger    *slog.Logger
	store     *Store
	auth      auth.Middleware
	apiPrefix string
}

// NewHandler builds a Handler. apiPrefix is prepended to generated file URLs.
func NewHandler(logger *slog.Logger, store *Store, authz auth.Middleware, apiPrefix string) *Handler {
	return &Handler{logger: logger, store: store, auth: authz, apiPrefix: apiPrefix}
}

// MountRoutes registers storage routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/storage", func(r chi.Router) {
		r.Get("/{filename}", h.download)
		r.With(h.auth.Admin()).Post("/", h.upload)
	})
}

// ReadUpload extracts the multipart "file" field, bounded by the store's size ceiling.
func ReadUpload(w http.ResponseWriter, r *http.Request, s *Store) (File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxBytes()+1<<16)
	_, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return File{}, fmt.Errorf("%w: file exceeds %d bytes", httpx.ErrValidation, s.MaxBytes())
		}
		return File{}, fmt.Errorf("%w: file not found", httpx.ErrValidation)
	}
	return s.Save(r.Context(), header)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	file, err := ReadUpload(w, r, h.store)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("store upload", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	file.URL = PublicURL(r, h.apiPrefix, file.Filename)
	httpx.JSON(w, http.StatusCreated, file)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	f, contentType, err := h.store.Open(chi.URLParam(r, "filename"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("send file", slog.Any("error", err))
	}
}
