package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/telemetrix/esp32-backend/internal/http/handler"
	"github.com/telemetrix/esp32-backend/internal/http/middleware"
	"github.com/telemetrix/esp32-backend/internal/http/response"
	"github.com/telemetrix/esp32-backend/internal/service"
)

type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	UserHandler     *handler.UserHandler
	SensorHandler   *handler.SensorHandler
	AuthService     *service.AuthService
	CORSOrigins     []string
	APIRateLimiter  *middleware.RateLimiter
	AuthRateLimiter *middleware.RateLimiter
	PingDB          func(ctx context.Context) error
	EnableOTelHTTP  bool
	Env             string
	Version         string
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.APIRateLimiter != nil {
		r.Use(dep.APIRateLimiter.Middleware())
	}

	authLimiter := passthrough
	if dep.AuthRateLimiter != nil {
		authLimiter = dep.AuthRateLimiter.Middleware()
	}
	authenticate := middleware.Authenticate(dep.AuthService)
	optionalAuth := middleware.OptionalAuth(dep.AuthService)

	started := time.Now()
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if dep.PingDB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := dep.PingDB(ctx); err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "database unreachable", nil)
				return
			}
		}
		response.JSON(w, r, http.StatusOK, map[string]any{
			"status":      "ok",
			"uptime":      time.Since(started).Round(time.Second).String(),
			"environment": dep.Env,
			"version":     dep.Version,
		})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
		r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
		r.With(authLimiter).Post("/refresh", dep.AuthHandler.Refresh)
		r.With(authenticate).Post("/logout", dep.AuthHandler.Logout)
		r.With(authenticate).Get("/me", dep.AuthHandler.Me)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(authenticate)
		r.With(middleware.RequireAdmin).Get("/", dep.UserHandler.List)
		r.With(middleware.RequireAdminOrSelf).Get("/{id}", dep.UserHandler.Get)
		r.With(middleware.RequireAdminOrSelf).Put("/{id}", dep.UserHandler.Update)
		r.With(middleware.RequireAdminOrSelf).Put("/{id}/password", dep.UserHandler.ChangePassword)
		r.With(middleware.RequireAdmin).Delete("/{id}", dep.UserHandler.Deactivate)
		r.With(middleware.RequireAdmin).Put("/{id}/activate", dep.UserHandler.Reactivate)
	})

	r.Route("/api/sensors", func(r chi.Router) {
		r.Post("/", dep.SensorHandler.Ingest)
		r.With(optionalAuth).Get("/", dep.SensorHandler.List)
		r.With(optionalAuth).Get("/latest", dep.SensorHandler.Latest)
		r.With(optionalAuth).Get("/stats", dep.SensorHandler.Stats)
		r.With(authenticate, middleware.RequireAdmin).Delete("/cleanup", dep.SensorHandler.Cleanup)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}

func passthrough(next http.Handler) http.Handler { return next }
