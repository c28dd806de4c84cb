package kvquery

import (
	"sync/atomic"
	"time"
)

// Kind names the set representation an operation works on.
type Kind string

const (
	// KindKeyValue is a plain key-value lookup.
	KindKeyValue Kind = "key_value"
	// KindStringSet works on string sets.
	KindStringSet Kind = "string_set"
	// KindUInt32Set works on uint32 sets.
	KindUInt32Set Kind = "uint32_set"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordQuery is called after each query evaluation.
	// resultSize is the number of elements returned, err is nil if successful.
	RecordQuery(kind Kind, duration time.Duration, resultSize int, err error)

	// RecordLookup is called after each key lookup. keys is the number of
	// distinct keys requested, found the number that had a value.
	RecordLookup(kind Kind, keys, found int, duration time.Duration)

	// RecordLoad is called after each delta file is applied or fails.
	RecordLoad(records int, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordQuery(Kind, time.Duration, int, error) {}
func (NoopMetricsCollector) RecordLookup(Kind, int, int, time.Duration)  {}
func (NoopMetricsCollector) RecordLoad(int, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryTotalNanos atomic.Int64
	QueryElements   atomic.Int64
	LookupCount     atomic.Int64
	LookupKeys      atomic.Int64
	LookupMisses    atomic.Int64
	LoadFiles       atomic.Int64
	LoadErrors      atomic.Int64
	LoadRecords     atomic.Int64
	LoadBytes       atomic.Int64
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(_ Kind, duration time.Duration, resultSize int, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.QueryElements.Add(int64(resultSize))
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(_ Kind, keys, found int, _ time.Duration) {
	b.LookupCount.Add(1)
	b.LookupKeys.Add(int64(keys))
	b.LookupMisses.Add(int64(keys - found))
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(records int, bytes int64, _ time.Duration, err error) {
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadFiles.Add(1)
	b.LoadRecords.Add(int64(records))
	b.LoadBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		QueryCount:    b.QueryCount.Load(),
		QueryErrors:   b.QueryErrors.Load(),
		QueryAvgNanos: b.getAvgQueryNanos(),
		QueryElements: b.QueryElements.Load(),
		LookupCount:   b.LookupCount.Load(),
		LookupKeys:    b.LookupKeys.Load(),
		LookupMisses:  b.LookupMisses.Load(),
		LoadFiles:     b.LoadFiles.Load(),
		LoadErrors:    b.LoadErrors.Load(),
		LoadRecords:   b.LoadRecords.Load(),
		LoadBytes:     b.LoadBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	QueryCount    int64
	QueryErrors   int64
	QueryAvgNanos int64
	QueryElements int64
	LookupCount   int64
	LookupKeys    int64
	LookupMisses  int64
	LoadFiles     int64
	LoadErrors    int64
	LoadRecords   int64
	LoadBytes     int64
}
