// Package metrics provides Prometheus metrics for the hallpass access service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBucketsMs covers sub-millisecond map lookups up to slow sqlite fsyncs.
var latencyBucketsMs = []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000} //nolint:gochecknoglobals // shared bucket layout

// Manager manages all Prometheus metrics for the hallpass service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Decision metrics
	decisions       *prometheus.CounterVec
	decisionLatency prometheus.Histogram
	cooldownHits    prometheus.Counter
	cooldownTracked prometheus.Gauge

	// Attendance log and feed
	attendanceAppends      prometheus.Counter
	attendanceAppendErrors prometheus.Counter
	latestQueries          *prometheus.CounterVec
	snapshots              *prometheus.CounterVec

	// Roster and events
	rosterUpserts prometheus.Counter
	eventsCreated prometheus.Counter

	// Repository
	repositoryQueryLatency prometheus.Histogram
	repositoryWriteLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Audit queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Audit workers and publisher
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	published               *prometheus.CounterVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hallpass",
		subsystem:        "access",
		histogramBuckets: latencyBucketsMs,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// name applies the optional metric prefix.
func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	counterVec := func(name, help string, labelNames ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, labelNames)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	histogram := func(name, help string) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
			Buckets: m.histogramBuckets,
		})
	}
	histogramVec := func(name, help string, labelNames ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
			Buckets: m.histogramBuckets,
		}, labelNames)
	}

	m.decisions = counterVec("decisions_total", "Access decisions by outcome and reason", "outcome", "reason")
	m.decisionLatency = histogram("decision_latency_ms", "End-to-end decision latency in milliseconds")
	m.cooldownHits = counter("cooldown_hits_total", "Taps rejected because the credential was admitted within the cooldown window")
	m.cooldownTracked = gauge("cooldown_tracked", "Credentials currently held in the cooldown tracker")

	m.attendanceAppends = counter("attendance_appends_total", "Attendance log entries appended")
	m.attendanceAppendErrors = counter("attendance_append_errors_total", "Attendance log appends that failed")
	m.latestQueries = counterVec("latest_queries_total", "Latest-status feed queries by result", "result")
	m.snapshots = counterVec("snapshots_total", "Tap snapshots by action (retained, discarded)", "action")

	m.rosterUpserts = counter("roster_upserts_total", "Identities inserted or updated by roster imports")
	m.eventsCreated = counter("events_created_total", "Events created")

	m.repositoryQueryLatency = histogram("repository_query_latency_ms", "Repository read latency in milliseconds")
	m.repositoryWriteLatency = histogram("repository_write_latency_ms", "Repository write transaction latency in milliseconds")

	m.httpRequests = counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = histogramVec("http_request_duration_ms", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = gauge("audit_queue_size", "Attendance entries waiting for publication")
	m.queueCapacity = gauge("audit_queue_capacity", "Capacity of the audit queue")
	m.queueUtilization = gauge("audit_queue_utilization", "Audit queue fill ratio (0-1)")
	m.queueEnqueueRate = counter("audit_queue_enqueue_total", "Entries enqueued for publication")
	m.queueDequeueRate = counter("audit_queue_dequeue_total", "Entries dequeued by publisher workers")
	m.queueEnqueueErrors = counter("audit_queue_enqueue_errors_total", "Entries dropped because the queue was full or closed")
	m.queueProcessingLatency = histogram("audit_queue_enqueue_latency_ms", "Time spent enqueuing in milliseconds")

	m.workerActiveCount = gauge("audit_worker_active_count", "Publisher workers running")
	m.workerMessagesPerSecond = gauge("audit_worker_messages_per_second", "Entries published per second")
	m.workerProcessingLatency = histogram("audit_worker_processing_latency_ms", "Per-entry publish latency in milliseconds")
	m.workerErrors = counter("audit_worker_errors_total", "Publisher worker failures")
	m.published = counterVec("audit_published_total", "Entries handed to the publisher by sink and result", "sink", "result")

	m.errorRateByComponent = counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")
	m.errorLatency = histogramVec("error_latency_ms", "Latency of operations that ended in an error", "component", "error_type")

	m.systemMemoryUsage = gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_ms", "Average GC pause in milliseconds")
}

// Decision metrics.

// RecordDecision counts a decision outcome with its reason text.
func RecordDecision(outcome, reason string) {
	globalManager.decisions.WithLabelValues(outcome, reason).Inc()
}

// RecordDecisionLatency records decision latency in milliseconds.
func RecordDecisionLatency(latencyMs float64) {
	globalManager.decisionLatency.Observe(latencyMs)
}

// RecordCooldownHit increments the cooldown hit counter.
func RecordCooldownHit() {
	globalManager.cooldownHits.Inc()
}

// UpdateCooldownTracked sets the number of credentials in the cooldown tracker.
func UpdateCooldownTracked(n int) {
	globalManager.cooldownTracked.Set(float64(n))
}

// Attendance metrics.

// RecordAttendanceAppend increments the appended entries counter.
func RecordAttendanceAppend() {
	globalManager.attendanceAppends.Inc()
}

// RecordAttendanceAppendError increments the failed appends counter.
func RecordAttendanceAppendError() {
	globalManager.attendanceAppendErrors.Inc()
}

// RecordLatestQuery counts a latest-status query; result is hit, miss or error.
func RecordLatestQuery(result string) {
	globalManager.latestQueries.WithLabelValues(result).Inc()
}

// RecordSnapshot counts a snapshot action; action is retained or discarded.
func RecordSnapshot(action string) {
	globalManager.snapshots.WithLabelValues(action).Inc()
}

// Roster and event metrics.

// RecordRosterUpserts adds n upserted identities.
func RecordRosterUpserts(n int) {
	globalManager.rosterUpserts.Add(float64(n))
}

// RecordEventCreated increments the created events counter.
func RecordEventCreated() {
	globalManager.eventsCreated.Inc()
}

// Repository metrics.

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordRepositoryWriteLatency records repository write latency.
func RecordRepositoryWriteLatency(latencyMs float64) {
	globalManager.repositoryWriteLatency.Observe(latencyMs)
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker metrics.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets the average entries published per second.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordPublished counts a publish attempt for a sink; result is ok or error.
func RecordPublished(sink, result string) {
	globalManager.published.WithLabelValues(sink, result).Inc()
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
