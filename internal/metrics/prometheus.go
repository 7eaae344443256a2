package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler metrics
	ticksTotal              prometheus.Counter
	tickErrorsTotal         prometheus.Counter
	refreshesTriggeredTotal prometheus.Counter
	tickDuration            prometheus.Histogram
	tickDrift               prometheus.Histogram

	// Refresh metrics
	refreshesTotal         *prometheus.CounterVec
	refreshSkippedTotal    *prometheus.CounterVec
	refreshDuration        *prometheus.HistogramVec
	refreshFailedSources   *prometheus.CounterVec
	expiredRemovedTotal    prometheus.Counter
	sourcesSkippedTotal    *prometheus.CounterVec
	importsTotal           *prometheus.CounterVec
	importDuration         *prometheus.HistogramVec
	tendersImportedTotal   *prometheus.CounterVec
	tendersRejectedTotal   *prometheus.CounterVec
	staleRemovedTotal      *prometheus.CounterVec
	embeddingDegradedTotal *prometheus.CounterVec

	// Search sync metrics
	syncAttemptsTotal  *prometheus.CounterVec
	syncOutcomesTotal  *prometheus.CounterVec
	syncDuration       prometheus.Histogram
	retryAttemptsTotal *prometheus.CounterVec
	syncsInFlight      prometheus.Gauge

	// EventBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initRefreshMetrics(reg)
	s.initImportMetrics(reg)
	s.initSyncMetrics(reg)
	s.initEventBusMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tenderingest_scheduler_ticks_total",
		Help: "Total number of scheduler ticks processed.",
	})
	s.tickErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tenderingest_scheduler_tick_errors_total",
		Help: "Total number of scheduler tick errors.",
	})
	s.refreshesTriggeredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tenderingest_scheduler_refreshes_triggered_total",
		Help: "Total number of refreshes started by the schedule.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tenderingest_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler tick in seconds.",
		Buckets: []float64{0.01, 0.1, 1, 10, 60, 300, 900},
	})
	s.tickDrift = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tenderingest_scheduler_tick_drift_seconds",
		Help:    "Difference between actual tick time and expected interval in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	s.register(reg, s.ticksTotal, "tenderingest_scheduler_ticks_total")
	s.register(reg, s.tickErrorsTotal, "tenderingest_scheduler_tick_errors_total")
	s.register(reg, s.refreshesTriggeredTotal, "tenderingest_scheduler_refreshes_triggered_total")
	s.register(reg, s.tickDuration, "tenderingest_scheduler_tick_duration_seconds")
	s.register(reg, s.tickDrift, "tenderingest_scheduler_tick_drift_seconds")
}

func (s *PrometheusSink) initRefreshMetrics(reg prometheus.Registerer) {
	s.refreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_refreshes_total",
		Help: "Total number of refreshes that ran, by scope.",
	}, []string{"scope"})
	s.refreshSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_refresh_skipped_total",
		Help: "Total number of refreshes skipped, by scope and reason.",
	}, []string{"scope", "reason"})
	s.refreshDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tenderingest_refresh_duration_seconds",
		Help:    "Wall time of a refresh in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"scope"})
	s.refreshFailedSources = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_refresh_failed_sources_total",
		Help: "Total number of source failures across refreshes.",
	}, []string{"scope"})
	s.expiredRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tenderingest_expired_removed_total",
		Help: "Total number of tenders removed after their closing date.",
	})
	s.sourcesSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_sources_skipped_total",
		Help: "Total number of sources skipped by the circuit breaker.",
	}, []string{"source"})

	s.register(reg, s.refreshesTotal, "tenderingest_refreshes_total")
	s.register(reg, s.refreshSkippedTotal, "tenderingest_refresh_skipped_total")
	s.register(reg, s.refreshDuration, "tenderingest_refresh_duration_seconds")
	s.register(reg, s.refreshFailedSources, "tenderingest_refresh_failed_sources_total")
	s.register(reg, s.expiredRemovedTotal, "tenderingest_expired_removed_total")
	s.register(reg, s.sourcesSkippedTotal, "tenderingest_sources_skipped_total")
}

func (s *PrometheusSink) initImportMetrics(reg prometheus.Registerer) {
	s.importsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_source_imports_total",
		Help: "Total number of source imports, by source and outcome.",
	}, []string{"source", "outcome"})
	s.importDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tenderingest_source_import_duration_seconds",
		Help:    "Duration of a single source import in seconds.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 180},
	}, []string{"source"})
	s.tendersImportedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_tenders_imported_total",
		Help: "Total number of tenders upserted.",
	}, []string{"source"})
	s.tendersRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_tenders_rejected_total",
		Help: "Total number of records rejected during canonicalization.",
	}, []string{"source"})
	s.staleRemovedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_stale_removed_total",
		Help: "Total number of tenders removed because they left a full snapshot.",
	}, []string{"source"})
	s.embeddingDegradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_embedding_degraded_total",
		Help: "Total number of imports stored without fresh embeddings.",
	}, []string{"source"})

	s.register(reg, s.importsTotal, "tenderingest_source_imports_total")
	s.register(reg, s.importDuration, "tenderingest_source_import_duration_seconds")
	s.register(reg, s.tendersImportedTotal, "tenderingest_tenders_imported_total")
	s.register(reg, s.tendersRejectedTotal, "tenderingest_tenders_rejected_total")
	s.register(reg, s.staleRemovedTotal, "tenderingest_stale_removed_total")
	s.register(reg, s.embeddingDegradedTotal, "tenderingest_embedding_degraded_total")
}

func (s *PrometheusSink) initSyncMetrics(reg prometheus.Registerer) {
	s.syncAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_searchsync_attempts_total",
		Help: "Total number of search sync attempts.",
	}, []string{"attempt", "status_class"})
	s.syncOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_searchsync_outcomes_total",
		Help: "Total number of final search sync outcomes.",
	}, []string{"outcome"})
	s.syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tenderingest_searchsync_duration_seconds",
		Help:    "Search sync request latency in seconds (excludes backoff wait).",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
	s.retryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderingest_searchsync_retry_attempts_total",
		Help: "Total number of retry attempts (excludes first attempt).",
	}, []string{"retryable"})
	s.syncsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tenderingest_searchsync_in_flight",
		Help: "Number of search syncs currently running.",
	})

	s.register(reg, s.syncAttemptsTotal, "tenderingest_searchsync_attempts_total")
	s.register(reg, s.syncOutcomesTotal, "tenderingest_searchsync_outcomes_total")
	s.register(reg, s.syncDuration, "tenderingest_searchsync_duration_seconds")
	s.register(reg, s.retryAttemptsTotal, "tenderingest_searchsync_retry_attempts_total")
	s.register(reg, s.syncsInFlight, "tenderingest_searchsync_in_flight")
}

func (s *PrometheusSink) initEventBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tenderingest_eventbus_buffer_size",
		Help: "Current number of sync requests in the event bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tenderingest_eventbus_buffer_capacity",
		Help: "Capacity of the event bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tenderingest_eventbus_buffer_saturation",
		Help: "Event bus buffer fill ratio between 0 and 1.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tenderingest_eventbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "tenderingest_eventbus_buffer_size")
	s.register(reg, s.bufferCapacity, "tenderingest_eventbus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "tenderingest_eventbus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "tenderingest_eventbus_emit_errors_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Scheduler metrics implementation

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, refreshesTriggered int, err error) {
	s.tickDuration.Observe(duration.Seconds())
	s.refreshesTriggeredTotal.Add(float64(refreshesTriggered))
	if err != nil {
		s.tickErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) TickDrift(drift time.Duration) {
	// Record absolute drift value
	d := drift.Seconds()
	if d < 0 {
		d = -d
	}
	s.tickDrift.Observe(d)
}

// Refresh metrics implementation

func (s *PrometheusSink) RefreshCompleted(scope string, duration time.Duration, imported, failed int) {
	s.refreshesTotal.WithLabelValues(scope).Inc()
	s.refreshDuration.WithLabelValues(scope).Observe(duration.Seconds())
	s.refreshFailedSources.WithLabelValues(scope).Add(float64(failed))
}

func (s *PrometheusSink) RefreshSkipped(scope, reason string) {
	s.refreshSkippedTotal.WithLabelValues(scope, reason).Inc()
}

func (s *PrometheusSink) ExpiredRemoved(n int64) {
	s.expiredRemovedTotal.Add(float64(n))
}

func (s *PrometheusSink) SourceSkipped(source string) {
	s.sourcesSkippedTotal.WithLabelValues(source).Inc()
}

// Import metrics implementation

func (s *PrometheusSink) SourceImportCompleted(source, outcome string, duration time.Duration, imported, rejected int) {
	s.importsTotal.WithLabelValues(source, outcome).Inc()
	s.importDuration.WithLabelValues(source).Observe(duration.Seconds())
	s.tendersImportedTotal.WithLabelValues(source).Add(float64(imported))
	s.tendersRejectedTotal.WithLabelValues(source).Add(float64(rejected))
}

func (s *PrometheusSink) StaleRemoved(source string, n int64) {
	s.staleRemovedTotal.WithLabelValues(source).Add(float64(n))
}

func (s *PrometheusSink) EmbeddingDegraded(source string) {
	s.embeddingDegradedTotal.WithLabelValues(source).Inc()
}

// Search sync metrics implementation

func (s *PrometheusSink) SyncAttemptCompleted(attempt int, statusClass string, duration time.Duration) {
	s.syncAttemptsTotal.WithLabelValues(strconv.Itoa(attempt), statusClass).Inc()
	s.syncDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) SyncOutcome(outcome string) {
	s.syncOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RetryAttempt(retryable bool) {
	s.retryAttemptsTotal.WithLabelValues(strconv.FormatBool(retryable)).Inc()
}

func (s *PrometheusSink) SyncsInFlightIncr() {
	s.syncsInFlight.Inc()
}

func (s *PrometheusSink) SyncsInFlightDecr() {
	s.syncsInFlight.Dec()
}

// EventBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}
