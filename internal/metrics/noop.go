package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted()                                                          {}
func (n *NoopSink) TickCompleted(duration time.Duration, refreshesTriggered int, err error) {}
func (n *NoopSink) TickDrift(drift time.Duration)                                         {}
func (n *NoopSink) RefreshCompleted(scope string, d time.Duration, imported, failed int)  {}
func (n *NoopSink) RefreshSkipped(scope, reason string)                                   {}
func (n *NoopSink) ExpiredRemoved(count int64)                                            {}
func (n *NoopSink) SourceSkipped(source string)                                           {}
func (n *NoopSink) SourceImportCompleted(source, outcome string, d time.Duration, imported, rejected int) {
}
func (n *NoopSink) StaleRemoved(source string, count int64)                           {}
func (n *NoopSink) EmbeddingDegraded(source string)                                   {}
func (n *NoopSink) SyncAttemptCompleted(attempt int, statusClass string, d time.Duration) {}
func (n *NoopSink) SyncOutcome(outcome string)                                        {}
func (n *NoopSink) RetryAttempt(retryable bool)                                       {}
func (n *NoopSink) SyncsInFlightIncr()                                                {}
func (n *NoopSink) SyncsInFlightDecr()                                                {}
func (n *NoopSink) BufferSizeUpdate(size int)                                         {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                    {}
func (n *NoopSink) BufferSaturationUpdate(saturation float64)                         {}
func (n *NoopSink) EmitError()                                                        {}
