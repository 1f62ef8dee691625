// Package prom exports index operation metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/annkit"
)

var _ annkit.MetricsCollector = (*Collector)(nil)

// Collector implements annkit.MetricsCollector with Prometheus counters
// and histograms labeled by index kind and outcome.
type Collector struct {
	latency      *prometheus.HistogramVec
	rows         *prometheus.CounterVec
	queries      *prometheus.CounterVec
	rangeResults *prometheus.HistogramVec
	loads        *prometheus.CounterVec
}

// NewCollector registers the annkit metrics with reg. A nil reg uses the
// default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "annkit_operation_duration_seconds",
			Help:    "Latency of index operations",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"kind", "op", "status"}),
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "annkit_rows_inserted_total",
			Help: "Rows inserted by Build and Add",
		}, []string{"kind"}),
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "annkit_queries_total",
			Help: "Query vectors processed",
		}, []string{"kind", "op"}),
		rangeResults: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "annkit_range_results",
			Help:    "Matches returned per range search call",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"kind"}),
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "annkit_loads_total",
			Help: "Index loads by storage mode",
		}, []string{"kind", "mode", "status"}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordBuild implements annkit.MetricsCollector.
func (c *Collector) RecordBuild(kind string, rows int, d time.Duration, err error) {
	c.latency.WithLabelValues(kind, "build", status(err)).Observe(d.Seconds())
	if err == nil {
		c.rows.WithLabelValues(kind).Add(float64(rows))
	}
}

// RecordSearch implements annkit.MetricsCollector.
func (c *Collector) RecordSearch(kind string, queries, _ int, d time.Duration, err error) {
	c.latency.WithLabelValues(kind, "search", status(err)).Observe(d.Seconds())
	if err == nil {
		c.queries.WithLabelValues(kind, "search").Add(float64(queries))
	}
}

// RecordRangeSearch implements annkit.MetricsCollector.
func (c *Collector) RecordRangeSearch(kind string, queries, results int, d time.Duration, err error) {
	c.latency.WithLabelValues(kind, "range_search", status(err)).Observe(d.Seconds())
	if err == nil {
		c.queries.WithLabelValues(kind, "range_search").Add(float64(queries))
		c.rangeResults.WithLabelValues(kind).Observe(float64(results))
	}
}

// RecordLoad implements annkit.MetricsCollector.
func (c *Collector) RecordLoad(kind string, mapped bool, d time.Duration, err error) {
	mode := "heap"
	if mapped {
		mode = "mmap"
	}
	c.latency.WithLabelValues(kind, "load", status(err)).Observe(d.Seconds())
	c.loads.WithLabelValues(kind, mode, status(err)).Inc()
}
