package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "xltoken_dashboard"

// PrometheusMetrics holds all Prometheus metrics for the dashboard
type PrometheusMetrics struct {
	// Transaction log metrics
	LogEntriesReceivedTotal *prometheus.CounterVec
	LogStoreSize            prometheus.Gauge
	TransactionsToday       prometheus.Gauge
	TransactionsThisMonth   prometheus.Gauge

	// Backend API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Push channel metrics
	SocketConnected       prometheus.Gauge
	SocketEventsTotal     *prometheus.CounterVec
	SocketReconnectsTotal prometheus.Counter
	ConnectionErrorsTotal *prometheus.CounterVec

	// Processor metrics
	ProcessorJobsTotal  *prometheus.CounterVec
	ProcessorQueueDepth prometheus.Gauge

	// Database metrics
	DatabaseOperationsTotal   *prometheus.CounterVec
	DatabaseOperationDuration *prometheus.HistogramVec

	// Notification metrics
	NotificationsSentTotal    *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec
	NotificationDuration      *prometheus.HistogramVec

	// HTTP server metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all metrics with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		LogEntriesReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_entries_received_total",
				Help:      "Total number of transaction log entries received",
			},
			[]string{"source"},
		),

		LogStoreSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "log_store_entries",
				Help:      "Number of entries currently held in the log store",
			},
		),

		TransactionsToday: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transactions_today",
				Help:      "Number of transactions recorded today",
			},
		),

		TransactionsThisMonth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transactions_this_month",
				Help:      "Number of transactions recorded in the current month",
			},
		),

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of backend API requests",
			},
			[]string{"operation", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Duration of backend API requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		SocketConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "socket_connected",
				Help:      "Whether the push channel is connected (1) or not (0)",
			},
		),

		SocketEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "socket_events_total",
				Help:      "Total number of push events received",
			},
			[]string{"event"},
		),

		SocketReconnectsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "socket_reconnects_total",
				Help:      "Total number of push channel reconnection attempts",
			},
		),

		ConnectionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_errors_total",
				Help:      "Total number of push channel connection errors",
			},
			[]string{"reason"},
		),

		ProcessorJobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "processor_jobs_total",
				Help:      "Total number of background jobs run by the log processor",
			},
			[]string{"job", "status"},
		),

		ProcessorQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "processor_queue_depth",
				Help:      "Number of entries waiting in the processor queue",
			},
		),

		DatabaseOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "database_operations_total",
				Help:      "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),

		DatabaseOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "database_operation_duration_seconds",
				Help:      "Time taken for database operations",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),

		NotificationsSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Total number of notifications delivered",
			},
			[]string{"channel", "type"},
		),

		NotificationFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_failures_total",
				Help:      "Total number of failed notification deliveries",
			},
			[]string{"channel", "type", "error_type"},
		),

		NotificationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_duration_seconds",
				Help:      "Time taken to deliver notifications",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"channel", "type"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests served",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ApplicationUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uptime_seconds",
				Help:      "Application uptime in seconds",
			},
		),

		ComponentHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "component_health",
				Help:      "Health status of components (1 = healthy, 0 = unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memory_usage_bytes",
				Help:      "Current heap allocation in bytes",
			},
		),

		GoroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goroutines",
				Help:      "Number of running goroutines",
			},
		),
	}
}

// RecordLogEntries counts entries received from source (initial, realtime, poll, demo)
func (m *PrometheusMetrics) RecordLogEntries(source string, count int) {
	m.LogEntriesReceivedTotal.WithLabelValues(source).Add(float64(count))
}

// UpdateLogStoreSize sets the current store size
func (m *PrometheusMetrics) UpdateLogStoreSize(size int) {
	m.LogStoreSize.Set(float64(size))
}

// UpdateTransactionCounts sets the today and this-month counters
func (m *PrometheusMetrics) UpdateTransactionCounts(today, month int) {
	m.TransactionsToday.Set(float64(today))
	m.TransactionsThisMonth.Set(float64(month))
}

// RecordAPIRequest records a backend API call
func (m *PrometheusMetrics) RecordAPIRequest(operation, status string, duration time.Duration) {
	m.APIRequestsTotal.WithLabelValues(operation, status).Inc()
	m.APIRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetSocketConnected updates the push channel connection gauge
func (m *PrometheusMetrics) SetSocketConnected(connected bool) {
	if connected {
		m.SocketConnected.Set(1)
		return
	}
	m.SocketConnected.Set(0)
}

// RecordSocketEvent counts a received push event
func (m *PrometheusMetrics) RecordSocketEvent(event string) {
	m.SocketEventsTotal.WithLabelValues(event).Inc()
}

// RecordReconnect counts a reconnection attempt
func (m *PrometheusMetrics) RecordReconnect() {
	m.SocketReconnectsTotal.Inc()
}

// RecordConnectionError records a connection error
func (m *PrometheusMetrics) RecordConnectionError(reason string) {
	m.ConnectionErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordProcessorJob records a finished background job
func (m *PrometheusMetrics) RecordProcessorJob(job, status string) {
	m.ProcessorJobsTotal.WithLabelValues(job, status).Inc()
}

// UpdateProcessorQueueDepth sets the number of queued entries
func (m *PrometheusMetrics) UpdateProcessorQueueDepth(depth int) {
	m.ProcessorQueueDepth.Set(float64(depth))
}

// RecordDatabaseOperation records a database operation
func (m *PrometheusMetrics) RecordDatabaseOperation(operation, table, status string, duration time.Duration) {
	m.DatabaseOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordNotificationSent records a sent notification
func (m *PrometheusMetrics) RecordNotificationSent(channel, notificationType string, duration time.Duration) {
	m.NotificationsSentTotal.WithLabelValues(channel, notificationType).Inc()
	m.NotificationDuration.WithLabelValues(channel, notificationType).Observe(duration.Seconds())
}

// RecordNotificationFailure records a failed notification
func (m *PrometheusMetrics) RecordNotificationFailure(channel, notificationType, errorType string) {
	m.NotificationFailuresTotal.WithLabelValues(channel, notificationType, errorType).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the application uptime metric
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateComponentHealth updates the health status of a component
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateMemoryUsage updates the memory usage metric
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count metric
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}
