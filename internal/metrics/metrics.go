// Package metrics provides Prometheus metrics for the explorer server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Listing metrics
	listingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_listings_total",
			Help: "Total directory listings by backend and result",
		},
		[]string{"backend", "status"},
	)

	listingEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "explorer_listing_entries",
			Help:    "Number of entries returned per listing",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// Content metrics
	contentBytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_content_bytes_served_total",
			Help: "Total bytes served from the content endpoint",
		},
	)

	contentReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_content_reads_total",
			Help: "Total content reads",
		},
		[]string{"status"},
	)

	// Mutation metrics
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_mutations_total",
			Help: "Total delete/rename operations by result",
		},
		[]string{"op", "status"},
	)

	// Path resolver rejections
	accessDeniedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_access_denied_total",
			Help: "Requests rejected for resolving outside the sandbox root",
		},
	)

	// Remote backend metrics
	remoteOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_remote_operation_duration_seconds",
			Help:    "Remote backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "operation"},
	)

	remoteOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_remote_operations_total",
			Help: "Total remote backend operations",
		},
		[]string{"driver", "operation", "status"},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "explorer_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
	)

	// Star store metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_db_query_duration_seconds",
			Help:    "Star store query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordListing records a directory listing and its size.
func RecordListing(backend string, entries int, success bool) {
	listingsTotal.WithLabelValues(backend, statusLabel(success)).Inc()
	if success {
		listingEntries.Observe(float64(entries))
	}
}

// RecordContentRead records a content read and the bytes sent.
func RecordContentRead(bytes int64, success bool) {
	contentBytesServed.Add(float64(bytes))
	contentReadsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordMutation records a delete or rename.
func RecordMutation(op string, success bool) {
	mutationsTotal.WithLabelValues(op, statusLabel(success)).Inc()
}

// RecordAccessDenied records a sandbox escape attempt.
func RecordAccessDenied() {
	accessDeniedTotal.Inc()
}

// RecordRemoteOperation records a call to a remote backend.
func RecordRemoteOperation(driver, operation string, duration time.Duration, success bool) {
	remoteOperationDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
	remoteOperationsTotal.WithLabelValues(driver, operation, statusLabel(success)).Inc()
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEvent records a published SSE event.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordDBQuery records a star store query.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// RecordRateLimited records a rejected request.
func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
// Requests are labelled by route pattern to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
