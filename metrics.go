package annkit

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prom package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordBuild is called after each Build or Add. rows is the number
	// of vectors submitted.
	RecordBuild(kind string, rows int, duration time.Duration, err error)

	// RecordSearch is called after each Search or SearchBF.
	RecordSearch(kind string, queries, k int, duration time.Duration, err error)

	// RecordRangeSearch is called after each RangeSearch. results is the
	// total number of matches over all queries.
	RecordRangeSearch(kind string, queries, results int, duration time.Duration, err error)

	// RecordLoad is called after each deserialization.
	RecordLoad(kind string, mapped bool, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(string, int, time.Duration, error)            {}
func (NoopMetricsCollector) RecordSearch(string, int, int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordRangeSearch(string, int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordLoad(string, bool, time.Duration, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount        atomic.Int64
	BuildRows         atomic.Int64
	BuildErrors       atomic.Int64
	BuildTotalNanos   atomic.Int64
	SearchCount       atomic.Int64
	SearchQueries     atomic.Int64
	SearchErrors      atomic.Int64
	SearchTotalNanos  atomic.Int64
	RangeSearchCount  atomic.Int64
	RangeResults      atomic.Int64
	RangeSearchErrors atomic.Int64
	LoadCount         atomic.Int64
	LoadMapped        atomic.Int64
	LoadErrors        atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(_ string, rows int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildRows.Add(int64(rows))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ string, queries, _ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
		return
	}
	b.SearchQueries.Add(int64(queries))
}

// RecordRangeSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRangeSearch(_ string, _, results int, _ time.Duration, err error) {
	b.RangeSearchCount.Add(1)
	if err != nil {
		b.RangeSearchErrors.Add(1)
		return
	}
	b.RangeResults.Add(int64(results))
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ string, mapped bool, _ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	if mapped {
		b.LoadMapped.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:        b.BuildCount.Load(),
		BuildRows:         b.BuildRows.Load(),
		BuildErrors:       b.BuildErrors.Load(),
		BuildAvgNanos:     avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		SearchCount:       b.SearchCount.Load(),
		SearchQueries:     b.SearchQueries.Load(),
		SearchErrors:      b.SearchErrors.Load(),
		SearchAvgNanos:    avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		RangeSearchCount:  b.RangeSearchCount.Load(),
		RangeResults:      b.RangeResults.Load(),
		RangeSearchErrors: b.RangeSearchErrors.Load(),
		LoadCount:         b.LoadCount.Load(),
		LoadMapped:        b.LoadMapped.Load(),
		LoadErrors:        b.LoadErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount        int64
	BuildRows         int64
	BuildErrors       int64
	BuildAvgNanos     int64
	SearchCount       int64
	SearchQueries     int64
	SearchErrors      int64
	SearchAvgNanos    int64
	RangeSearchCount  int64
	RangeResults      int64
	RangeSearchErrors int64
	LoadCount         int64
	LoadMapped        int64
	LoadErrors        int64
}
