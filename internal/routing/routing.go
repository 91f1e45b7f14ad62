package routing

import (
	"net/http"

	"vinemod/internal/handlers"
	"vinemod/internal/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers *handlers.Handler
	Logger   zerolog.Logger
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	// Portal-facing routes (any authenticated user)
	mux.HandleFunc("POST /api/reports", h.HandleReportCreate)
	mux.HandleFunc("POST /api/appeals", h.HandleAppealCreate)

	// Platform-facing routes (called by the feed service)
	mux.HandleFunc("GET /api/access", h.HandleAccessCheckSelf)
	mux.HandleFunc("GET /api/access/{user}", h.HandleAccessCheck)
	mux.HandleFunc("GET /api/status/{user}", h.HandleUserStatus)

	// Guardian routes (roster-gated inside the handlers)
	mux.HandleFunc("GET /api/mod/reports", h.HandleReportsList)
	mux.HandleFunc("POST /api/mod/reports/{id}/resolve", h.HandleReportResolve)
	mux.HandleFunc("GET /api/mod/appeals", h.HandleAppealsList)
	mux.HandleFunc("POST /api/mod/appeals/{id}/resolve", h.HandleAppealResolve)
	mux.HandleFunc("POST /api/mod/warn", h.HandleWarn)
	mux.HandleFunc("POST /api/mod/suspend", h.HandleSuspend)
	mux.HandleFunc("POST /api/mod/unsuspend", h.HandleUnsuspend)
	mux.HandleFunc("GET /api/mod/overview", h.HandleOverview)
	mux.HandleFunc("GET /api/mod/users/{user}/history", h.HandleUserHistory)
	mux.HandleFunc("GET /api/mod/audit", h.HandleAuditLog)
	mux.HandleFunc("POST /api/mod/roster/reload", h.HandleRosterReload)

	// Operational endpoints
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Apply middleware in order (outermost first, innermost last)
	var handler http.Handler = mux

	// 1. Limit request body size (innermost - runs first on request)
	handler = middleware.LimitBodyMiddleware(handler)

	// 2. Extract the authenticated principal
	handler = middleware.PrincipalMiddleware(handler)

	// 3. Apply logging middleware
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	// 4. Trace every request (outermost - wraps everything)
	handler = otelhttp.NewHandler(handler, "vinemod")

	return handler
}
