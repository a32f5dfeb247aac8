package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

// Middleware wires token authentication and role checks for HTTP handlers.
type Middleware struct {
	Tokens *Tokens
	Logger *slog.Logger
}

// Authenticate resolves the bearer token, when present, into a principal on the request context.
// Requests without a token pass through; RequireAny rejects them.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || m.Tokens == nil {
			httpx.RespondError(w, fmt.Errorf("%w: bearer token required", httpx.ErrUnauthorized))
			return
		}
		principal, err := m.Tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("reject token", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireAny ensures the caller holds at least one of roles.
func (m Middleware) RequireAny(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.RespondError(w, fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized))
				return
			}
			if len(roles) > 0 && !principal.HasRole(roles...) {
				httpx.RespondError(w, fmt.Errorf("%w: requires role %s", httpx.ErrForbidden, strings.Join(roles, " or ")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Reader guards read routes: any signed-in user.
func (m Middleware) Reader() func(http.Handler) http.Handler {
	return m.RequireAny(shared.RoleUser, shared.RoleAdmin)
}

// Admin guards write routes.
func (m Middleware) Admin() func(http.Handler) http.Handler {
	return m.RequireAny(shared.RoleAdmin)
}
