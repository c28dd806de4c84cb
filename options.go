package kvquery

import (
	"log/slog"

	"github.com/hupe1980/kvquery/blobstore"
	"github.com/hupe1980/kvquery/cache"
	"github.com/hupe1980/kvquery/loader"
)

// ResourceLimits bounds the work a KVQuery does at once. Zero values mean
// unlimited.
type ResourceLimits struct {
	// MaxConcurrentQueries bounds queries and lookups evaluated at once.
	// Callers beyond the limit wait for a slot or their context.
	MaxConcurrentQueries int64

	// FailFast makes callers beyond MaxConcurrentQueries fail with
	// ErrOverloaded instead of waiting.
	FailFast bool

	// LoadMemoryBytes bounds the delta data buffered between decoding and
	// applying to the cache.
	LoadMemoryBytes int64

	// LoadWorkers bounds concurrent delta file decoders. If 0, defaults to 1.
	LoadWorkers int64

	// LoadBytesPerSec bounds blob store reads during loading.
	LoadBytesPerSec int64
}

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	limits           ResourceLimits
	cache            *cache.KeyValueCache
	store            blobstore.BlobStore
	loaderOptions    []loader.Option
}

// Option configures a KVQuery.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &kvquery.BasicMetricsCollector{}
//	kv, _ := kvquery.New(kvquery.WithMetricsCollector(metrics))
//	// ... use kv ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
//	logger := kvquery.NewJSONLogger(slog.LevelInfo)
//	kv, _ := kvquery.New(kvquery.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceLimits bounds query concurrency and loader resources.
func WithResourceLimits(limits ResourceLimits) Option {
	return func(o *options) {
		o.limits = limits
	}
}

// WithCache serves lookups from an existing cache instead of a new one.
func WithCache(c *cache.KeyValueCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithBlobStore enables Load and Run, which apply the delta files in store
// to the cache.
//
//	store := blobstore.NewLocalStore("./deltas")
//	kv, _ := kvquery.New(kvquery.WithBlobStore(store, loader.WithConcurrency(4)))
//	if _, err := kv.Load(ctx); err != nil {
//	    return err
//	}
func WithBlobStore(store blobstore.BlobStore, optFns ...loader.Option) Option {
	return func(o *options) {
		o.store = store
		o.loaderOptions = optFns
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
