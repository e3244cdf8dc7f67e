package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/settlement-bridge/settlement"
)

var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "route"})

	workflowOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_workflow_outcomes_total",
		Help: "Settlement workflow outcomes",
	}, []string{"workflow", "outcome"})

	stepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_saga_step_failures_total",
		Help: "Saga steps that failed after earlier writes committed",
	}, []string{"workflow", "step"})
)

// Instrument records request count and latency per route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		httpReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		httpLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// WorkflowMetrics implements settlement.Observer with Prometheus counters.
type WorkflowMetrics struct{}

func (WorkflowMetrics) WorkflowFinished(workflow string, err error) {
	workflowOutcomes.WithLabelValues(workflow, outcome(err)).Inc()
}

func (WorkflowMetrics) StepFailed(workflow, step string) {
	stepFailures.WithLabelValues(workflow, step).Inc()
}

func outcome(err error) string {
	var stepErr *settlement.StepError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, settlement.ErrNoBillableObligations):
		return "nothing_to_bill"
	case errors.As(err, &stepErr):
		return "step_failed"
	case settlement.IsBusinessRejection(err):
		return "rejected"
	case settlement.IsUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}

var _ settlement.Observer = WorkflowMetrics{}
