// Package metrics provides Prometheus metrics for the classboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Submission pipeline
	submissionsAccepted *prometheus.CounterVec
	submissionsRejected *prometheus.CounterVec
	reconcileLatency    prometheus.Histogram
	leaderboardOutcomes *prometheus.CounterVec
	leaderboardEntries  *prometheus.GaugeVec
	assignmentsTotal    prometheus.Gauge

	// Storage
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Archival and checkpoints
	archivesTotal      *prometheus.CounterVec
	backupsTotal       *prometheus.CounterVec
	checkpointsRemoved prometheus.Counter
	backupDuration     prometheus.Histogram
	tamperedRecords    prometheus.Counter

	// Job queue and workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueRejected    *prometheus.CounterVec
	workerActive     prometheus.Gauge
	workerJobLatency prometheus.Histogram
	workerErrors     prometheus.Counter

	// Live updates
	websocketClients   prometheus.Gauge
	websocketBroadcast prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors off /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors register on prometheus.DefaultRegisterer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "classboard",
		subsystem:        "",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.submissionsAccepted = m.counterVec("submissions_accepted_total",
		"Accepted submissions by assignment", "assignment")
	m.submissionsRejected = m.counterVec("submissions_rejected_total",
		"Rejected submissions by rejection kind", "kind")
	m.reconcileLatency = m.histogram("reconcile_latency_ms",
		"Time spent reconciling one submission in milliseconds")
	m.leaderboardOutcomes = m.counterVec("leaderboard_outcomes_total",
		"Leaderboard update outcomes (first, better, equal, worse)", "outcome")
	m.leaderboardEntries = m.gaugeVec("leaderboard_entries",
		"Number of ranked students per assignment", "assignment")
	m.assignmentsTotal = m.gauge("assignments_total", "Number of configured assignments")

	m.storeLatency = m.histogramVec("store_latency_ms",
		"Persistence operation latency in milliseconds", "driver", "op")
	m.storeErrors = m.counterVec("store_errors_total",
		"Persistence failures", "driver", "op")

	m.archivesTotal = m.counterVec("archives_total",
		"Assignment archive attempts by result", "result")
	m.backupsTotal = m.counterVec("backups_total",
		"Checkpoint backup runs by result", "result")
	m.checkpointsRemoved = m.counter("checkpoints_removed_total",
		"Expired checkpoint files deleted")
	m.backupDuration = m.histogram("backup_duration_ms",
		"Checkpoint backup duration in milliseconds")
	m.tamperedRecords = m.counter("tampered_records_total",
		"Signed submission records whose signature failed verification")

	m.queueSize = m.gauge("job_queue_size", "Jobs waiting in the archive queue")
	m.queueCapacity = m.gauge("job_queue_capacity", "Archive queue capacity")
	m.queueEnqueued = m.counter("job_queue_enqueued_total", "Jobs accepted by the archive queue")
	m.queueRejected = m.counterVec("job_queue_rejected_total",
		"Jobs refused by the archive queue", "reason")
	m.workerActive = m.gauge("workers_active", "Running archive workers")
	m.workerJobLatency = m.histogram("worker_job_latency_ms",
		"Archive job processing latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Archive jobs that failed")

	m.websocketClients = m.gauge("websocket_clients", "Connected leaderboard websocket clients")
	m.websocketBroadcast = m.counter("websocket_broadcasts_total", "Leaderboard update broadcasts")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_ms",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total",
		"HTTP error responses by endpoint and error type", "endpoint", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

// Submission pipeline.

func RecordSubmissionAccepted(assignmentID string) {
	globalManager.submissionsAccepted.WithLabelValues(assignmentID).Inc()
}

func RecordSubmissionRejected(kind string) {
	globalManager.submissionsRejected.WithLabelValues(kind).Inc()
}

func RecordReconcileLatency(latencyMs float64) {
	globalManager.reconcileLatency.Observe(latencyMs)
}

func RecordLeaderboardOutcome(outcome string) {
	globalManager.leaderboardOutcomes.WithLabelValues(outcome).Inc()
}

func UpdateLeaderboardEntries(assignmentID string, count int) {
	globalManager.leaderboardEntries.WithLabelValues(assignmentID).Set(float64(count))
}

func UpdateAssignmentsTotal(count int) {
	globalManager.assignmentsTotal.Set(float64(count))
}

// Storage.

func RecordStoreLatency(driver, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(driver, op).Observe(latencyMs)
}

func RecordStoreError(driver, op string) {
	globalManager.storeErrors.WithLabelValues(driver, op).Inc()
}

// Archival and checkpoints.

func RecordArchive(result string) {
	globalManager.archivesTotal.WithLabelValues(result).Inc()
}

func RecordBackup(result string, durationMs float64) {
	globalManager.backupsTotal.WithLabelValues(result).Inc()
	globalManager.backupDuration.Observe(durationMs)
}

func RecordCheckpointsRemoved(n int) {
	globalManager.checkpointsRemoved.Add(float64(n))
}

func RecordTamperedRecords(n int) {
	globalManager.tamperedRecords.Add(float64(n))
}

// Job queue and workers.

func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

func RecordWorkerJobLatency(latencyMs float64) {
	globalManager.workerJobLatency.Observe(latencyMs)
}

func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Live updates.

func UpdateWebsocketClients(count int) {
	globalManager.websocketClients.Set(float64(count))
}

func RecordWebsocketBroadcast() {
	globalManager.websocketBroadcast.Inc()
}

// HTTP.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func RecordHTTPError(endpoint, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType).Inc()
}

// System.

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
