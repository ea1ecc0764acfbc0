// Package metrics provides Prometheus metrics for the asyncrace service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// defaultLatencyBuckets spans 1ms to roughly 32s, which covers a simulated drive.
var defaultLatencyBuckets = prometheus.ExponentialBuckets(1, 2, 16) //nolint:gochecknoglobals // bucket layout shared by every latency histogram

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Race metrics
	racesStarted    prometheus.Counter
	racesSettled    prometheus.Counter
	racesWinnerless prometheus.Counter
	racesReset      prometheus.Counter
	taskOutcomes    *prometheus.CounterVec
	driveLatency    prometheus.Histogram
	winnerLatency   prometheus.Histogram
	activeTasks     prometheus.Gauge
	eventsDropped   prometheus.Counter

	// Ledger metrics
	ledgerWrites prometheus.Counter
	ledgerErrors *prometheus.CounterVec

	// Listing metrics
	cursorFetches      *prometheus.CounterVec
	cursorFetchErrors  *prometheus.CounterVec
	cursorFetchLatency prometheus.Histogram

	// Queue and worker metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	workerCount        prometheus.Gauge
	workerErrors       prometheus.Counter

	// Engine simulator metrics
	engineBreakdowns prometheus.Counter
	engineStarts     prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "asyncrace",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
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
		Namespace: m.namespace,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.racesStarted = m.counter("races_started_total", "Total number of races dispatched")
	m.racesSettled = m.counter("races_settled_total", "Total number of races where every task reached a terminal state")
	m.racesWinnerless = m.counter("races_winnerless_total", "Total number of settled races without a finisher")
	m.racesReset = m.counter("races_reset_total", "Total number of race resets")
	m.taskOutcomes = m.counterVec("task_outcomes_total", "Terminal vehicle task outcomes by state", "state")
	m.driveLatency = m.histogram("drive_latency_milliseconds", "Observed start+drive round trip per vehicle task in milliseconds")
	m.winnerLatency = m.histogram("winner_latency_milliseconds", "Time from dispatch to winner declaration in milliseconds")
	m.activeTasks = m.gauge("active_tasks", "Vehicle tasks currently in flight")
	m.eventsDropped = m.counter("events_dropped_total", "Race events dropped because a subscriber was not keeping up")

	m.ledgerWrites = m.counter("ledger_writes_total", "Total number of winner ledger upserts")
	m.ledgerErrors = m.counterVec("ledger_errors_total", "Winner ledger failures by operation", "operation")

	m.cursorFetches = m.counterVec("cursor_fetches_total", "Page fetches by collection", "collection")
	m.cursorFetchErrors = m.counterVec("cursor_fetch_errors_total", "Failed page fetches by collection", "collection")
	m.cursorFetchLatency = m.histogram("cursor_fetch_latency_milliseconds", "Page fetch latency in milliseconds")

	m.queueSize = m.gauge("queue_size", "Current number of pending win events")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum win event queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of win events enqueued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected win events by reason", "reason")
	m.workerCount = m.gauge("worker_count", "Number of ledger workers")
	m.workerErrors = m.counter("worker_errors_total", "Total number of ledger worker failures")

	m.engineStarts = m.counter("engine_starts_total", "Total number of simulated engine starts")
	m.engineBreakdowns = m.counter("engine_breakdowns_total", "Total number of simulated engine breakdowns")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = m.counterVec("http_errors_total", "HTTP errors by endpoint and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Current heap allocation in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Current number of goroutines")
}

// Race functions.

// RecordRaceStarted increments the dispatched races counter.
func RecordRaceStarted() {
	if globalManager.enabled {
		globalManager.racesStarted.Inc()
	}
}

// RecordRaceSettled records a settled race; winnerless races are counted separately.
func RecordRaceSettled(hasWinner bool) {
	if !globalManager.enabled {
		return
	}
	globalManager.racesSettled.Inc()
	if !hasWinner {
		globalManager.racesWinnerless.Inc()
	}
}

// RecordRaceReset increments the race reset counter.
func RecordRaceReset() {
	if globalManager.enabled {
		globalManager.racesReset.Inc()
	}
}

// RecordTaskOutcome records a terminal task state and its round trip latency.
func RecordTaskOutcome(state string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.taskOutcomes.WithLabelValues(state).Inc()
	globalManager.driveLatency.Observe(latencyMs)
}

// RecordWinnerLatency observes the time from dispatch to winner declaration.
func RecordWinnerLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.winnerLatency.Observe(latencyMs)
	}
}

// AddActiveTasks adjusts the in-flight task gauge by delta.
func AddActiveTasks(delta int) {
	if globalManager.enabled {
		globalManager.activeTasks.Add(float64(delta))
	}
}

// RecordEventDropped counts a race event a subscriber did not receive.
func RecordEventDropped() {
	if globalManager.enabled {
		globalManager.eventsDropped.Inc()
	}
}

// Ledger functions.

// RecordLedgerWrite increments the ledger write counter.
func RecordLedgerWrite() {
	if globalManager.enabled {
		globalManager.ledgerWrites.Inc()
	}
}

// RecordLedgerError increments the ledger error counter for operation.
func RecordLedgerError(operation string) {
	if globalManager.enabled {
		globalManager.ledgerErrors.WithLabelValues(operation).Inc()
	}
}

// Listing functions.

// RecordCursorFetch records a page fetch for collection.
func RecordCursorFetch(collection string, latencyMs float64, err error) {
	if !globalManager.enabled {
		return
	}
	globalManager.cursorFetches.WithLabelValues(collection).Inc()
	globalManager.cursorFetchLatency.Observe(latencyMs)
	if err != nil {
		globalManager.cursorFetchErrors.WithLabelValues(collection).Inc()
	}
}

// Queue and worker functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueEnqueueError records a rejected enqueue with reason.
func RecordQueueEnqueueError(reason string) {
	if globalManager.enabled {
		globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
	}
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if globalManager.enabled {
		globalManager.workerErrors.Inc()
	}
}

// Engine simulator functions.

// RecordEngineStart increments the simulated engine start counter.
func RecordEngineStart() {
	if globalManager.enabled {
		globalManager.engineStarts.Inc()
	}
}

// RecordEngineBreakdown increments the simulated breakdown counter.
func RecordEngineBreakdown() {
	if globalManager.enabled {
		globalManager.engineBreakdowns.Inc()
	}
}

// HTTP functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByEndpoint records an HTTP error by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System functions.

// UpdateSystemMemoryUsage sets the current heap allocation.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// Configure rebuilds the global manager from opts on a fresh registry.
// Call it once at startup, before recording or serving /metrics.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// RefreshInterval returns the sampling period for the process gauges.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
