package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/bazaar/internal/client"
	"github.com/pitabwire/bazaar/internal/config"
	"github.com/pitabwire/bazaar/internal/confirm"
	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/internal/session"
	"github.com/pitabwire/bazaar/internal/views"
	"github.com/pitabwire/bazaar/model"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Gatherer      prometheus.Gatherer
	Sessions      *session.Manager
	Capabilities  model.CapabilityResolver
	Account       *client.Account
	Views         *views.Registry
	Confirmations *confirm.Manager
	Hub           *Hub
	LoginLimiter  *RateLimiter
	Readiness     observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, metrics, and the sign-in screens
// bypass authentication.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	rs := responder{sessions: deps.Sessions, logger: logger}

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(CORS(cfg.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}
	r.Use(RequestLogging(logger))

	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(deps.Readiness))
	if cfg.Observability.Metrics.Enabled {
		path := cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		if deps.Gatherer != nil {
			r.Method(http.MethodGet, path, observability.HandlerFor(deps.Gatherer))
		} else {
			r.Method(http.MethodGet, path, observability.Handler())
		}
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.LoginLimiter.Middleware)
		r.Use(HandlerTimeout(cfg.Server.HandlerTimeout))
		r.Post("/ui/auth/login", handleLogin(deps.Account, deps.Sessions, deps.Metrics, rs))
		r.Post("/ui/auth/forgot-password", handleForgotPassword(deps.Account, rs))
		r.Post("/ui/auth/verify-otp", handleVerifyOTP(deps.Account, rs))
	})

	authenticate := Authenticate(deps.Sessions, deps.Capabilities, logger)

	// The event stream outlives the handler timeout.
	if deps.Hub != nil {
		r.With(authenticate).Get("/ui/events", deps.Hub.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Use(HandlerTimeout(cfg.Server.HandlerTimeout))

		r.Post("/ui/auth/logout", handleLogout(deps.Sessions, rs))
		r.Get("/ui/navigation", handleNavigation(deps.Views))
		r.Get("/ui/dashboard", handleDashboard(deps.Views, rs))
		r.Get("/ui/profile", handleGetProfile(deps.Views, rs))
		r.Put("/ui/profile", handleUpdateProfile(deps.Views, rs))
		r.Get("/ui/audit", handleAudit(deps.Views, rs))

		r.Get("/ui/views/{resource}", handleList(deps.Views, rs))
		r.Post("/ui/views/{resource}", handleCreate(deps.Views, rs))
		r.Get("/ui/views/{resource}/{id}", handleDetail(deps.Views, rs))
		r.Put("/ui/views/{resource}/{id}", handleUpdate(deps.Views, rs))
		r.Post("/ui/views/{resource}/{id}/actions/{action}", handleOpenConfirmation(deps.Views, deps.Confirmations, rs))

		r.Get("/ui/confirmations/{token}", handleGetConfirmation(deps.Views, deps.Confirmations, rs))
		r.Post("/ui/confirmations/{token}/confirm", handleConfirm(deps.Views, deps.Confirmations, rs))
		r.Delete("/ui/confirmations/{token}", handleCancelConfirmation(deps.Confirmations, rs))
	})

	return r
}
