package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/funko-store/funko-api/internal/auth"
	"github.com/funko-store/funko-api/internal/orders"
	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

// OrderBook is the part of the order service exposed to a signed-in user.
type OrderBook interface {
	ListByUser(ctx context.Context, userID int64) ([]orders.Order, error)
	Create(ctx context.Context, req orders.Request) (orders.Order, error)
}

// Handler manages account and authentication endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	orders  OrderBook
	auth    auth.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, orders OrderBook, authz auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, orders: orders, auth: authz}
}

// MountRoutes registers auth and user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.signUp)
		r.Post("/signin", h.signIn)
	})
	r.Route("/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.auth.Reader())
			r.Get("/me", h.me)
			r.Get("/me/pedidos", h.myOrders)
			r.Post("/me/pedidos", h.placeOrder)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.auth.Admin())
			r.Get("/", h.list)
			r.Delete("/{id}", h.delete)
		})
	})
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	token, err := h.service.SignUp(r.Context(), req)
	if err != nil {
		h.fail(w, "sign up", err, slog.String("username", req.Username))
		return
	}
	httpx.JSON(w, http.StatusOK, TokenResponse{AccessToken: token})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	token, err := h.service.SignIn(r.Context(), req)
	if err != nil {
		h.fail(w, "sign in", err, slog.String("username", req.Username))
		return
	}
	httpx.JSON(w, http.StatusOK, TokenResponse{AccessToken: token})
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
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	u, err := h.service.Active(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, "get current user", err, slog.Int64("user_id", principal.UserID))
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if _, err := h.service.Active(r.Context(), principal.UserID); err != nil {
		h.fail(w, "list own orders", err, slog.Int64("user_id", principal.UserID))
		return
	}
	items, err := h.orders.ListByUser(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, "list own orders", err, slog.Int64("user_id", principal.UserID))
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

// placeOrder always books the order for the caller, whatever userId the body carries.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	var req orders.Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.UserID = principal.UserID
	if err := httpx.Validate(&req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.Active(r.Context(), principal.UserID); err != nil {
		h.fail(w, "place own order", err, slog.Int64("user_id", principal.UserID))
		return
	}
	o, err := h.orders.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "place own order", err, slog.Int64("user_id", principal.UserID))
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete user", err, slog.Int64("id", id))
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
