package funkos

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/funko-store/funko-api/internal/auth"
	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
	"github.com/funko-store/funko-api/internal/storage"
)

// Handler exposes catalog endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	files     *storage.Store
	auth      auth.Middleware
	apiPrefix string
}

// NewHandler builds a Handler. files receives image uploads.
func NewHandler(logger *slog.Logger, service *Service, files *storage.Store, authz auth.Middleware, apiPrefix string) *Handler {
	return &Handler{logger: logger, service: service, files: files, auth: authz, apiPrefix: apiPrefix}
}

// MountRoutes registers funko routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/funkos", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Group(func(r chi.Router) {
			r.Use(h.auth.Admin())
			r.Post("/", h.create)
			r.Put("/{id}", h.update)
			r.Patch("/imagen/{id}", h.updateImage)
			r.Delete("/{id}", h.softDelete)
			r.Delete("/{id}/hard", h.hardDelete)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q, err := shared.ParseListQuery(r.URL.Query(), Whitelist)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q.Path = r.URL.Path
	page, err := h.service.List(r.Context(), q)
	if err != nil {
		h.fail(w, "list funkos", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	f, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get funko", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	f, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "create funko", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, f)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	f, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update funko", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}

func (h *Handler) updateImage(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.fail(w, "get funko", err, slog.Int64("id", id))
		return
	}
	file, err := storage.ReadUpload(w, r, h.files)
	if err != nil {
		h.fail(w, "store funko image", err, slog.Int64("id", id))
		return
	}
	f, err := h.service.UpdateImage(r.Context(), id, storage.PublicURL(r, h.apiPrefix, file.Filename))
	if err != nil {
		if rmErr := h.files.Remove(r.Context(), file.Filename); rmErr != nil {
			h.logger.Warn("remove orphan upload", slog.String("filename", file.Filename), slog.Any("error", rmErr))
		}
		h.fail(w, "update funko image", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.SoftDelete(r.Context(), id); err != nil {
		h.fail(w, "soft delete funko", err, slog.Int64("id", id))
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) hardDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.HardDelete(r.Context(), id); err != nil {
		h.fail(w, "delete funko", err, slog.Int64("id", id))
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, append(attrs, slog.Any("error", err))...)
	}
	httpx.RespondError(w, err)
}
