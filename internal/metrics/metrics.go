// Package metrics holds the Prometheus collectors for the API and workers.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gaminglibrary"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	sessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Game sessions started.",
		},
		[]string{"game_type"},
	)

	sessionsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "ended_total",
			Help:      "Game sessions ended, by completion and whether the score was credited.",
		},
		[]string{"game_type", "completed", "scored"},
	)

	sessionsFlagged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "flagged_total",
			Help:      "Game sessions flagged for review.",
		},
		[]string{"game_type"},
	)

	sessionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "expired_total",
			Help:      "Stale sessions ended by the reaper.",
		},
	)

	sessionRating = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "performance_rating",
			Help:      "Performance rating of ended sessions.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{"game_type"},
	)

	outboxDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "dispatched_total",
			Help:      "Outbox events delivered to a sink.",
		},
		[]string{"sink"},
	)

	outboxFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "failed_total",
			Help:      "Outbox deliveries that failed or were skipped by an open circuit.",
		},
		[]string{"sink", "reason"},
	)

	liveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "connections",
			Help:      "Open WebSocket live-feed connections.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		sessionsStarted,
		sessionsEnded,
		sessionsFlagged,
		sessionsExpired,
		sessionRating,
		outboxDispatched,
		outboxFailed,
		liveConnections,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with HTTP metrics. Routes are labelled by
// their chi pattern so path parameters do not explode cardinality.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

func SessionStarted(gameType string) {
	sessionsStarted.WithLabelValues(gameType).Inc()
}

// SessionEnded records an ended session and its rating.
func SessionEnded(gameType string, completed, scored, flagged bool, rating int) {
	sessionsEnded.WithLabelValues(gameType, strconv.FormatBool(completed), strconv.FormatBool(scored)).Inc()
	sessionRating.WithLabelValues(gameType).Observe(float64(rating))
	if flagged {
		sessionsFlagged.WithLabelValues(gameType).Inc()
	}
}

func SessionsExpired(n int) {
	sessionsExpired.Add(float64(n))
}

func OutboxDispatched(sink string) {
	outboxDispatched.WithLabelValues(sink).Inc()
}

// OutboxFailed records a failed or skipped delivery; reason is "error" or "circuit_open".
func OutboxFailed(sink, reason string) {
	outboxFailed.WithLabelValues(sink, reason).Inc()
}

func LiveConnectionOpened() { liveConnections.Inc() }
func LiveConnectionClosed() { liveConnections.Dec() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the live-feed WebSocket upgrade pass through instrumentation.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}
