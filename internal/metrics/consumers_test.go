package metrics_test

import (
	"github.com/FuJacob/mapletenders-sub000/internal/ingest"
	"github.com/FuJacob/mapletenders-sub000/internal/metrics"
	"github.com/FuJacob/mapletenders-sub000/internal/refresh"
	"github.com/FuJacob/mapletenders-sub000/internal/scheduler"
	"github.com/FuJacob/mapletenders-sub000/internal/searchsync"
	"github.com/FuJacob/mapletenders-sub000/internal/sweeper"
	"github.com/FuJacob/mapletenders-sub000/internal/transport/channel"
)

// Both sinks are handed to every component in serve.
var (
	_ scheduler.MetricsSink  = (*metrics.PrometheusSink)(nil)
	_ refresh.MetricsSink    = (*metrics.PrometheusSink)(nil)
	_ ingest.MetricsSink     = (*metrics.PrometheusSink)(nil)
	_ sweeper.MetricsSink    = (*metrics.PrometheusSink)(nil)
	_ channel.MetricsSink    = (*metrics.PrometheusSink)(nil)
	_ searchsync.MetricsSink = (*metrics.PrometheusSink)(nil)

	_ scheduler.MetricsSink  = (*metrics.NoopSink)(nil)
	_ refresh.MetricsSink    = (*metrics.NoopSink)(nil)
	_ ingest.MetricsSink     = (*metrics.NoopSink)(nil)
	_ sweeper.MetricsSink    = (*metrics.NoopSink)(nil)
	_ channel.MetricsSink    = (*metrics.NoopSink)(nil)
	_ searchsync.MetricsSink = (*metrics.NoopSink)(nil)
)
