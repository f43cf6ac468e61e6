package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Reservation metrics
	slotReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slot_reservations_total",
			Help: "Total number of slot reservation attempts",
		},
		[]string{"outcome", "service"},
	)

	// Payment metrics
	paymentAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_attempts_total",
			Help: "Total number of payment gateway charge attempts",
		},
		[]string{"method", "outcome", "service"},
	)

	paymentRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_retries_total",
			Help: "Total number of payment gateway retries",
		},
		[]string{"service"},
	)

	// Compensation metrics
	compensationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_compensations_total",
			Help: "Total number of compensating rollbacks executed",
		},
		[]string{"step", "service"},
	)

	// Audit metrics
	auditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of audit events",
		},
		[]string{"action", "success", "service"},
	)

	auditDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Total number of audit events dropped due to a full queue",
		},
		[]string{"service"},
	)
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

var registerOnce sync.Once

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			slotReservationsTotal,
			paymentAttemptsTotal,
			paymentRetriesTotal,
			compensationsTotal,
			auditEventsTotal,
			auditDroppedTotal,
		)
	})

	return &MetricsCollector{
		serviceName: serviceName,
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordSlotReservation records a reservation attempt outcome (won or conflict)
func (m *MetricsCollector) RecordSlotReservation(outcome string) {
	slotReservationsTotal.WithLabelValues(outcome, m.serviceName).Inc()
}

// RecordPaymentAttempt records a charge attempt outcome
func (m *MetricsCollector) RecordPaymentAttempt(method, outcome string) {
	paymentAttemptsTotal.WithLabelValues(method, outcome, m.serviceName).Inc()
}

// RecordPaymentRetry records a transport-level payment retry
func (m *MetricsCollector) RecordPaymentRetry() {
	paymentRetriesTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordCompensation records a compensating rollback for a named step
func (m *MetricsCollector) RecordCompensation(step string) {
	compensationsTotal.WithLabelValues(step, m.serviceName).Inc()
}

// RecordAuditEvent records audit event metrics
func (m *MetricsCollector) RecordAuditEvent(action string, success bool) {
	auditEventsTotal.WithLabelValues(action, strconv.FormatBool(success), m.serviceName).Inc()
}

// RecordAuditDrop records an audit event dropped on a full queue
func (m *MetricsCollector) RecordAuditDrop() {
	auditDroppedTotal.WithLabelValues(m.serviceName).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(wrapper.statusCode), time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
