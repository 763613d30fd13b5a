package observability

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the console. Every
// recording helper is safe to call on a nil *Metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Backend metrics
	BackendRequestsTotal       *prometheus.CounterVec
	BackendRequestDuration     *prometheus.HistogramVec
	BackendCircuitBreakerState prometheus.Gauge
	BackendRetriesTotal        *prometheus.CounterVec

	// Cache metrics
	QueryCacheHitsTotal          *prometheus.CounterVec
	QueryCacheMissesTotal        *prometheus.CounterVec
	QueryCacheInvalidationsTotal *prometheus.CounterVec
	CapabilityCacheHitsTotal     prometheus.Counter
	CapabilityCacheMissesTotal   prometheus.Counter

	// Console metrics
	UnauthorizedSignalsTotal *prometheus.CounterVec
	SupersededQueriesTotal   *prometheus.CounterVec
	ConfirmationsTotal       *prometheus.CounterVec
	LoginAttemptsTotal       *prometheus.CounterVec
	SessionsRevokedTotal     prometheus.Counter
	WebsocketClients         prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bazaar_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bazaar_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bazaar_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Backend
		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_backend_requests_total",
			Help: "Total number of marketplace backend requests.",
		}, []string{"resource", "method", "status"}),
		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bazaar_backend_request_duration_seconds",
			Help:    "Marketplace backend request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"resource"}),
		BackendCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bazaar_backend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		BackendRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_backend_retries_total",
			Help: "Total number of backend request retries.",
		}, []string{"resource"}),

		// Cache
		QueryCacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_query_cache_hits_total",
			Help: "Total query cache hits.",
		}, []string{"resource"}),
		QueryCacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_query_cache_misses_total",
			Help: "Total query cache misses.",
		}, []string{"resource"}),
		QueryCacheInvalidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_query_cache_invalidations_total",
			Help: "Total cached entries dropped by tag invalidation.",
		}, []string{"resource"}),
		CapabilityCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bazaar_capability_cache_hits_total",
			Help: "Total capability cache hits.",
		}),
		CapabilityCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bazaar_capability_cache_misses_total",
			Help: "Total capability cache misses.",
		}),

		// Console
		UnauthorizedSignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_unauthorized_signals_total",
			Help: "Total backend 401/403 responses signalled to the console.",
		}, []string{"status"}),
		SupersededQueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_superseded_queries_total",
			Help: "Total reads discarded because a newer read replaced them.",
		}, []string{"resource"}),
		ConfirmationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_confirmations_total",
			Help: "Total confirmation dialog transitions.",
		}, []string{"resource", "action", "outcome"}),
		LoginAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_login_attempts_total",
			Help: "Total console login attempts.",
		}, []string{"outcome"}),
		SessionsRevokedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bazaar_sessions_revoked_total",
			Help: "Total sessions revoked after a backend rejection.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bazaar_websocket_clients",
			Help: "Number of connected event stream clients.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Backend
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.BackendCircuitBreakerState,
		m.BackendRetriesTotal,
		// Cache
		m.QueryCacheHitsTotal,
		m.QueryCacheMissesTotal,
		m.QueryCacheInvalidationsTotal,
		m.CapabilityCacheHitsTotal,
		m.CapabilityCacheMissesTotal,
		// Console
		m.UnauthorizedSignalsTotal,
		m.SupersededQueriesTotal,
		m.ConfirmationsTotal,
		m.LoginAttemptsTotal,
		m.SessionsRevokedTotal,
		m.WebsocketClients,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordBackendRequest records a marketplace backend request. Status 0
// means the request never got a response.
func (m *Metrics) RecordBackendRequest(resource, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequestsTotal.WithLabelValues(resource, method, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

// SetBackendCircuitBreakerState sets the circuit breaker state.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetBackendCircuitBreakerState(state float64) {
	if m == nil {
		return
	}
	m.BackendCircuitBreakerState.Set(state)
}

// RecordBackendRetry records a backend request retry.
func (m *Metrics) RecordBackendRetry(resource string) {
	if m == nil {
		return
	}
	m.BackendRetriesTotal.WithLabelValues(resource).Inc()
}

// RecordQueryCacheHit records a query cache hit.
func (m *Metrics) RecordQueryCacheHit(resource string) {
	if m == nil {
		return
	}
	m.QueryCacheHitsTotal.WithLabelValues(resource).Inc()
}

// RecordQueryCacheMiss records a query cache miss.
func (m *Metrics) RecordQueryCacheMiss(resource string) {
	if m == nil {
		return
	}
	m.QueryCacheMissesTotal.WithLabelValues(resource).Inc()
}

// RecordQueryCacheInvalidation records entries dropped for a resource.
func (m *Metrics) RecordQueryCacheInvalidation(resource string, entries int) {
	if m == nil {
		return
	}
	m.QueryCacheInvalidationsTotal.WithLabelValues(resource).Add(float64(entries))
}

// RecordCapabilityCacheHit records a capability cache hit.
func (m *Metrics) RecordCapabilityCacheHit() {
	if m == nil {
		return
	}
	m.CapabilityCacheHitsTotal.Inc()
}

// RecordCapabilityCacheMiss records a capability cache miss.
func (m *Metrics) RecordCapabilityCacheMiss() {
	if m == nil {
		return
	}
	m.CapabilityCacheMissesTotal.Inc()
}

// RecordUnauthorized records a backend 401/403 signal.
func (m *Metrics) RecordUnauthorized(status int) {
	if m == nil {
		return
	}
	m.UnauthorizedSignalsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordSuperseded records a discarded read.
func (m *Metrics) RecordSuperseded(resource string) {
	if m == nil {
		return
	}
	m.SupersededQueriesTotal.WithLabelValues(resource).Inc()
}

// RecordConfirmation records a confirmation transition. Outcome is one of
// opened, confirmed, cancelled, failed, or conflict.
func (m *Metrics) RecordConfirmation(resource, action, outcome string) {
	if m == nil {
		return
	}
	m.ConfirmationsTotal.WithLabelValues(resource, action, outcome).Inc()
}

// RecordLoginAttempt records a login attempt outcome.
func (m *Metrics) RecordLoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordSessionRevoked records a forced logout.
func (m *Metrics) RecordSessionRevoked() {
	if m == nil {
		return
	}
	m.SessionsRevokedTotal.Inc()
}

// AddWebsocketClients adjusts the connected client gauge.
func (m *Metrics) AddWebsocketClients(delta float64) {
	if m == nil {
		return
	}
	m.WebsocketClients.Add(delta)
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns the Prometheus HTTP handler for a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets websocket upgrades pass through the wrapper.
func (w *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.written = true
	w.status = http.StatusSwitchingProtocols
	return http.NewResponseController(w.ResponseWriter).Hijack()
}
