package rann

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    searchCounter   prometheus.Counter
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordSearch(k, queries int, duration time.Duration, err error) {
//	    p.searchCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordBuild is called after reference structure construction.
	// duration is the total time taken, err is nil if successful.
	RecordBuild(duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	// k is the number of neighbors requested, queries is the number of
	// query points answered, duration is the time taken, err is nil if
	// successful.
	RecordSearch(k, queries int, duration time.Duration, err error)

	// RecordSnapshotSave is called after each snapshot save.
	RecordSnapshotSave(duration time.Duration, err error)

	// RecordSnapshotLoad is called after each snapshot load.
	RecordSnapshotLoad(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(time.Duration, error)            {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSnapshotSave(time.Duration, error)     {}
func (NoopMetricsCollector) RecordSnapshotLoad(time.Duration, error)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount         atomic.Int64
	BuildErrors        atomic.Int64
	BuildTotalNanos    atomic.Int64
	SearchCount        atomic.Int64
	SearchErrors       atomic.Int64
	SearchQueries      atomic.Int64
	SearchTotalNanos   atomic.Int64
	SnapshotSaveCount  atomic.Int64
	SnapshotSaveErrors atomic.Int64
	SnapshotLoadCount  atomic.Int64
	SnapshotLoadErrors atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(k, queries int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchQueries.Add(int64(queries))
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordSnapshotSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshotSave(duration time.Duration, err error) {
	b.SnapshotSaveCount.Add(1)
	if err != nil {
		b.SnapshotSaveErrors.Add(1)
	}
}

// RecordSnapshotLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshotLoad(duration time.Duration, err error) {
	b.SnapshotLoadCount.Add(1)
	if err != nil {
		b.SnapshotLoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:         b.BuildCount.Load(),
		BuildErrors:        b.BuildErrors.Load(),
		BuildAvgNanos:      b.getAvgBuildNanos(),
		SearchCount:        b.SearchCount.Load(),
		SearchErrors:       b.SearchErrors.Load(),
		SearchQueries:      b.SearchQueries.Load(),
		SearchAvgNanos:     b.getAvgSearchNanos(),
		SnapshotSaveCount:  b.SnapshotSaveCount.Load(),
		SnapshotSaveErrors: b.SnapshotSaveErrors.Load(),
		SnapshotLoadCount:  b.SnapshotLoadCount.Load(),
		SnapshotLoadErrors: b.SnapshotLoadErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgBuildNanos() int64 {
	count := b.BuildCount.Load()
	if count == 0 {
		return 0
	}
	return b.BuildTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount         int64
	BuildErrors        int64
	BuildAvgNanos      int64
	SearchCount        int64
	SearchErrors       int64
	SearchQueries      int64
	SearchAvgNanos     int64
	SnapshotSaveCount  int64
	SnapshotSaveErrors int64
	SnapshotLoadCount  int64
	SnapshotLoadErrors int64
}
