package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vinemod_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vinemod_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Moderation event counters (incremented on occurrence)
var (
	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vinemod_reports_total",
		Help: "Total number of report submissions",
	}, []string{"status"})

	WarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vinemod_warnings_total",
		Help: "Total number of warnings issued",
	})

	SuspensionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vinemod_suspensions_total",
		Help: "Total number of suspensions issued",
	}, []string{"duration"})

	SuspensionsLiftedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vinemod_suspensions_lifted_total",
		Help: "Total number of suspensions lifted",
	}, []string{"reason"})

	AppealsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vinemod_appeals_total",
		Help: "Total number of appeals submitted",
	})

	AccessChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vinemod_access_checks_total",
		Help: "Total number of access guard decisions",
	}, []string{"allowed"})
)

// Sweeper metrics
var (
	SweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vinemod_sweep_runs_total",
		Help: "Total number of expiry sweeper runs",
	})

	SweepLiftedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vinemod_sweep_lifted_total",
		Help: "Total number of suspensions expired by the sweeper",
	})

	SweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vinemod_sweep_errors_total",
		Help: "Total number of sweeper row failures",
	})
)

// Business gauges (updated from store stats on scrape-adjacent ticks)
var (
	OpenReports = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vinemod_open_reports",
		Help: "Number of open reports",
	})

	OpenAppeals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vinemod_open_appeals",
		Help: "Number of open appeals",
	})

	ActiveSuspensions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vinemod_active_suspensions",
		Help: "Number of currently active suspensions",
	})
)

// NormalizePath reduces high-cardinality path labels by replacing dynamic
// segments with placeholders. This keeps the metric label space bounded.
func NormalizePath(path string) string {
	segments := splitPath(path)
	if len(segments) < 2 || segments[0] != "api" {
		return path
	}

	switch segments[1] {
	case "access":
		if len(segments) == 3 {
			return "/api/access/:user"
		}
	case "status":
		if len(segments) == 3 {
			return "/api/status/:user"
		}
	case "mod":
		if len(segments) >= 3 {
			switch segments[2] {
			case "reports":
				if len(segments) == 5 && segments[4] == "resolve" {
					return "/api/mod/reports/:id/resolve"
				}
			case "appeals":
				if len(segments) == 5 && segments[4] == "resolve" {
					return "/api/mod/appeals/:id/resolve"
				}
			case "users":
				if len(segments) == 5 && segments[4] == "history" {
					return "/api/mod/users/:user/history"
				}
			}
		}
	}

	return path
}

func splitPath(path string) []string {
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segments = append(segments, path[start:])
	}
	return segments
}
