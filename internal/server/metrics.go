package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/kvquery"
)

// PrometheusCollector implements kvquery.MetricsCollector.
type PrometheusCollector struct {
	queryLatency  *prometheus.HistogramVec
	queryElements *prometheus.HistogramVec
	lookupKeys    *prometheus.CounterVec
	lookupLatency *prometheus.HistogramVec
	loadFiles     *prometheus.CounterVec
	loadRecords   prometheus.Counter
	loadBytes     prometheus.Counter
	loadLatency   prometheus.Histogram
}

var _ kvquery.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the collectors and registers them with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kvquery_query_latency_seconds",
			Help:    "Latency of set query evaluation",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "status"}),
		queryElements: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kvquery_query_result_elements",
			Help:    "Number of elements returned by a set query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"kind"}),
		lookupKeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvquery_lookup_keys_total",
			Help: "Keys requested by lookups",
		}, []string{"kind", "result"}),
		lookupLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kvquery_lookup_latency_seconds",
			Help:    "Latency of key lookups",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		loadFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvquery_delta_files_total",
			Help: "Delta files processed",
		}, []string{"status"}),
		loadRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvquery_delta_records_total",
			Help: "Delta records applied to the cache",
		}),
		loadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvquery_delta_bytes_total",
			Help: "Delta file bytes read",
		}),
		loadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kvquery_delta_load_seconds",
			Help:    "Time to decode and apply one delta file",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.queryLatency,
		c.queryElements,
		c.lookupKeys,
		c.lookupLatency,
		c.loadFiles,
		c.loadRecords,
		c.loadBytes,
		c.loadLatency,
	)
	return c
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordQuery implements kvquery.MetricsCollector.
func (c *PrometheusCollector) RecordQuery(kind kvquery.Kind, d time.Duration, resultSize int, err error) {
	c.queryLatency.WithLabelValues(string(kind), statusLabel(err)).Observe(d.Seconds())
	if err == nil {
		c.queryElements.WithLabelValues(string(kind)).Observe(float64(resultSize))
	}
}

// RecordLookup implements kvquery.MetricsCollector.
func (c *PrometheusCollector) RecordLookup(kind kvquery.Kind, keys, found int, d time.Duration) {
	c.lookupKeys.WithLabelValues(string(kind), "found").Add(float64(found))
	c.lookupKeys.WithLabelValues(string(kind), "not_found").Add(float64(keys - found))
	c.lookupLatency.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// RecordLoad implements kvquery.MetricsCollector.
func (c *PrometheusCollector) RecordLoad(records int, bytes int64, d time.Duration, err error) {
	c.loadFiles.WithLabelValues(statusLabel(err)).Inc()
	if err != nil {
		return
	}
	c.loadRecords.Add(float64(records))
	c.loadBytes.Add(float64(bytes))
	c.loadLatency.Observe(d.Seconds())
}
