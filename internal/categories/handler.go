package categories

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/funko-store/funko-api/internal/auth"
	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

// Handler exposes category endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    auth.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, authz auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: authz}
}

// MountRoutes registers category routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/categorias", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.auth.Reader())
			r.Get("/", h.list)
			r.Get("/{id}", h.show)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.auth.Admin())
			r.Post("/", h.create)
			r.Put("/{id}", h.update)
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
		h.fail(w, "list categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get category", err, slog.String("id", id.String()))
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "create category", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update category", err, slog.String("id", id.String()))
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.SoftDelete(r.Context(), id); err != nil {
		h.fail(w, "soft delete category", err, slog.String("id", id.String()))
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) hardDelete(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.HardDelete(r.Context(), id); err != nil {
		h.fail(w, "delete category", err, slog.String("id", id.String()))
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

func categoryID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid category id %q", httpx.ErrValidation, raw)
	}
	return id, nil
}
