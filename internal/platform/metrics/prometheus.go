package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	invoicesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoices_created_total",
			Help: "Total number of invoices created",
		},
		[]string{"kind"},
	)

	appointmentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointments_created_total",
			Help: "Total number of appointments created",
		},
	)

	remindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_reminders_total",
			Help: "Total number of WhatsApp reminder attempts",
		},
		[]string{"status"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler wrapped for echo.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware records request counts, latencies and in-flight requests.
// Route paths (not raw URLs) are used as labels to bound cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := c.Response().Status
			if httpErr, ok := err.(*echo.HTTPError); ok {
				status = httpErr.Code
			}

			httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// RecordInvoiceCreated records an invoice creation by kind.
func RecordInvoiceCreated(kind string) {
	invoicesCreated.WithLabelValues(kind).Inc()
}

// RecordAppointmentCreated records an appointment creation.
func RecordAppointmentCreated() {
	appointmentsCreated.Inc()
}

// RecordReminderSent records a WhatsApp reminder attempt outcome.
func RecordReminderSent(status string) {
	remindersSent.WithLabelValues(status).Inc()
}

// RecordDBConnections records active database connections.
func RecordDBConnections(count int32) {
	dbConnectionsActive.Set(float64(count))
}
