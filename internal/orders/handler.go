package orders

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/funko-store/funko-api/internal/auth"
	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

// Handler exposes order endpoints to administrators.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    auth.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, authz auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: authz}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/pedidos", func(r chi.Router) {
		r.Use(h.auth.Admin())
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/usuario/{userId}", h.listByUser)
		r.Get("/{id}", h.show)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
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
		h.fail(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.Int64Param(r, "userId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		h.fail(w, "list user orders", err, slog.Int64("user_id", userID))
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get order", err, slog.String("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := ObjectID(id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req Request
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update order", err, slog.String("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := ObjectID(id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete order", err, slog.String("id", id))
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
