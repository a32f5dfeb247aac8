package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/funko-store/funko-api/internal/auth"
	"github.com/funko-store/funko-api/internal/categories"
	"github.com/funko-store/funko-api/internal/funkos"
	"github.com/funko-store/funko-api/internal/observability"
	"github.com/funko-store/funko-api/internal/orders"
	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/storage"
	"github.com/funko-store/funko-api/internal/users"
	"github.com/funko-store/funko-api/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	Auth    auth.Middleware

	CategoriesHandler *categories.Handler
	FunkosHandler     *funkos.Handler
	OrdersHandler     *orders.Handler
	UsersHandler      *users.Handler
	StorageHandler    *storage.Handler
	JobHandler        *jobs.Handler
	Notifications     http.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mwCfg := MiddlewareConfig{Logger: params.Logger, Config: params.Config, Metrics: params.Metrics}
	for _, mw := range MiddlewareStack(mwCfg) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.Notifications != nil {
		r.Handle("/ws/"+params.Config.APIVersion+"/funkos", params.Notifications)
	}

	r.Group(func(r chi.Router) {
		for _, mw := range APIStack(mwCfg) {
			r.Use(mw)
		}
		r.Use(params.Auth.Authenticate)

		r.Route(params.Config.APIPrefix(), func(r chi.Router) {
			if params.CategoriesHandler != nil {
				params.CategoriesHandler.MountRoutes(r)
			}
			if params.FunkosHandler != nil {
				params.FunkosHandler.MountRoutes(r)
			}
			if params.OrdersHandler != nil {
				params.OrdersHandler.MountRoutes(r)
			}
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r)
			}
			if params.StorageHandler != nil {
				params.StorageHandler.MountRoutes(r)
			}
		})
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return otelhttp.NewHandler(r, "funko-api",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}),
	)
}
