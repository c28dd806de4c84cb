package kvquery

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/hupe1980/kvquery/cache"
	"github.com/hupe1980/kvquery/internal/resource"
	"github.com/hupe1980/kvquery/loader"
	"github.com/hupe1980/kvquery/query"
)

// LookupValue is the result for one key of GetKeyValues.
type LookupValue struct {
	Value string
	// Err is a *cache.NotFoundError when the key has no value.
	Err error
}

// SetLookupValue is the result for one key of GetKeyValueSet.
type SetLookupValue struct {
	// Values are sorted.
	Values []string
	// Err is a *cache.NotFoundError when the key has no set or an empty one.
	Err error
}

// UInt32SetLookupValue is the result for one key of GetUInt32ValueSet.
type UInt32SetLookupValue struct {
	// Values are sorted.
	Values []uint32
	// Err is a *cache.NotFoundError when the key has no set or an empty one.
	Err error
}

// KVQuery serves key lookups and set queries over a KeyValueCache.
//
// All methods are safe for concurrent use.
type KVQuery struct {
	cache    *cache.KeyValueCache
	loader   *loader.Loader
	rc       *resource.Controller
	strEval  *query.Evaluator[query.StringSet]
	bitEval  *query.Evaluator[query.BitSet]
	metrics  MetricsCollector
	logger   *Logger
	failFast bool
	closed   atomic.Bool
}

// New creates a KVQuery.
func New(optFns ...Option) (*KVQuery, error) {
	o := applyOptions(optFns)

	l := o.limits
	if l.MaxConcurrentQueries < 0 || l.LoadMemoryBytes < 0 || l.LoadWorkers < 0 || l.LoadBytesPerSec < 0 {
		return nil, fmt.Errorf("%w: negative resource limit", ErrInvalidConfiguration)
	}

	kv := &KVQuery{
		cache: o.cache,
		rc: resource.NewController(resource.Config{
			MaxConcurrentQueries: l.MaxConcurrentQueries,
			MemoryLimitBytes:     l.LoadMemoryBytes,
			MaxBackgroundWorkers: l.LoadWorkers,
			IOLimitBytesPerSec:   l.LoadBytesPerSec,
		}),
		strEval:  query.NewEvaluator[query.StringSet](),
		bitEval:  query.NewEvaluator[query.BitSet](),
		metrics:  o.metricsCollector,
		logger:   o.logger,
		failFast: l.FailFast,
	}

	if kv.cache == nil {
		kv.cache = cache.New(cache.WithLogger(o.logger.Logger))
	}

	if o.store != nil {
		loaderOpts := append([]loader.Option{
			loader.WithLogger(o.logger.Logger),
			loader.WithController(kv.rc),
			loader.WithConcurrency(int(kv.rc.Config().MaxBackgroundWorkers)),
			loader.WithObserver(kv.observeLoad),
		}, o.loaderOptions...)
		kv.loader = loader.New(o.store, kv.cache, loaderOpts...)
	}

	return kv, nil
}

// Cache returns the underlying cache, e.g. to apply updates directly.
func (kv *KVQuery) Cache() *cache.KeyValueCache {
	return kv.cache
}

func (kv *KVQuery) acquire(ctx context.Context) error {
	if kv.closed.Load() {
		return ErrClosed
	}
	if kv.failFast {
		return kv.rc.TryAcquireQuery()
	}
	return kv.rc.AcquireQuery(ctx)
}

// GetKeyValues looks up plain values. Every distinct key gets an entry;
// keys without a value carry a not found error.
func (kv *KVQuery) GetKeyValues(ctx context.Context, keys []string) (map[string]LookupValue, error) {
	start := time.Now()
	if err := kv.acquire(ctx); err != nil {
		kv.logger.LogLookup(ctx, KindKeyValue, len(keys), 0, err)
		return nil, err
	}
	defer kv.rc.ReleaseQuery()

	keys = distinct(keys)
	pairs := kv.cache.GetKeyValuePairs(keys...)

	out := make(map[string]LookupValue, len(keys))
	for _, k := range keys {
		if v, ok := pairs[k]; ok {
			out[k] = LookupValue{Value: v}
			continue
		}
		out[k] = LookupValue{Err: &cache.NotFoundError{Key: k}}
	}

	kv.metrics.RecordLookup(KindKeyValue, len(keys), len(pairs), time.Since(start))
	kv.logger.LogLookup(ctx, KindKeyValue, len(keys), len(pairs), nil)
	return out, nil
}

// GetKeyValueSet looks up string sets. Keys with a missing or empty set
// carry a not found error.
func (kv *KVQuery) GetKeyValueSet(ctx context.Context, keys []string) (map[string]SetLookupValue, error) {
	start := time.Now()
	if err := kv.acquire(ctx); err != nil {
		kv.logger.LogLookup(ctx, KindStringSet, len(keys), 0, err)
		return nil, err
	}
	defer kv.rc.ReleaseQuery()

	keys = distinct(keys)
	res := kv.cache.GetKeyValueSet(keys...)

	out := make(map[string]SetLookupValue, len(keys))
	found := 0
	for _, k := range keys {
		s, err := res.ValueSet(k)
		if err == nil && s.Len() == 0 {
			err = &cache.NotFoundError{Key: k}
		}
		if err != nil {
			out[k] = SetLookupValue{Err: err}
			continue
		}
		out[k] = SetLookupValue{Values: s.Elements()}
		found++
	}

	kv.metrics.RecordLookup(KindStringSet, len(keys), found, time.Since(start))
	kv.logger.LogLookup(ctx, KindStringSet, len(keys), found, nil)
	return out, nil
}

// GetUInt32ValueSet looks up uint32 sets. Keys with a missing or empty set
// carry a not found error.
func (kv *KVQuery) GetUInt32ValueSet(ctx context.Context, keys []string) (map[string]UInt32SetLookupValue, error) {
	start := time.Now()
	if err := kv.acquire(ctx); err != nil {
		kv.logger.LogLookup(ctx, KindUInt32Set, len(keys), 0, err)
		return nil, err
	}
	defer kv.rc.ReleaseQuery()

	keys = distinct(keys)
	res := kv.cache.GetUInt32ValueSet(keys...)

	out := make(map[string]UInt32SetLookupValue, len(keys))
	found := 0
	for _, k := range keys {
		s, err := res.UInt32ValueSet(k)
		if err == nil && s.Len() == 0 {
			err = &cache.NotFoundError{Key: k}
		}
		if err != nil {
			out[k] = UInt32SetLookupValue{Err: err}
			continue
		}
		out[k] = UInt32SetLookupValue{Values: s.Elements()}
		found++
	}

	kv.metrics.RecordLookup(KindUInt32Set, len(keys), found, time.Since(start))
	kv.logger.LogLookup(ctx, KindUInt32Set, len(keys), found, nil)
	return out, nil
}

// RunQuery evaluates q over the string sets in the cache and returns the
// sorted result.
//
//	elems, err := kv.RunQuery(ctx, "(A - B) | (C & D)")
//	if errors.Is(err, kvquery.ErrInvalidQuery) { ... }
func (kv *KVQuery) RunQuery(ctx context.Context, q string) ([]string, error) {
	start := time.Now()
	set, err := evaluate(ctx, kv, kv.strEval, q, func(names []string) query.Resolver[query.StringSet] {
		return kv.cache.GetKeyValueSet(names...).ValueSet
	})

	var elems []string
	if err == nil {
		elems = set.Elements()
	}

	kv.metrics.RecordQuery(KindStringSet, time.Since(start), len(elems), err)
	kv.logger.LogQuery(ctx, KindStringSet, q, len(elems), err)
	return elems, err
}

// RunSetQueryInt evaluates q over the uint32 sets in the cache and returns
// the sorted result.
func (kv *KVQuery) RunSetQueryInt(ctx context.Context, q string) ([]uint32, error) {
	start := time.Now()
	set, err := evaluate(ctx, kv, kv.bitEval, q, func(names []string) query.Resolver[query.BitSet] {
		return kv.cache.GetUInt32ValueSet(names...).UInt32ValueSet
	})

	var elems []uint32
	if err == nil {
		elems = set.Elements()
	}

	kv.metrics.RecordQuery(KindUInt32Set, time.Since(start), len(elems), err)
	kv.logger.LogQuery(ctx, KindUInt32Set, q, len(elems), err)
	return elems, err
}

// evaluate parses q, snapshots every set it names and evaluates the tree
// against that snapshot with e.
func evaluate[S query.Set[S]](ctx context.Context, kv *KVQuery, e *query.Evaluator[S], q string, snapshot func(names []string) query.Resolver[S]) (S, error) {
	var zero S

	if err := kv.acquire(ctx); err != nil {
		return zero, err
	}
	defer kv.rc.ReleaseQuery()

	root, err := query.Parse(q)
	if err != nil {
		return zero, translateError(q, err)
	}

	set, err := e.Eval(root, snapshot(query.Identifiers(root)))
	if err != nil {
		return zero, translateError(q, err)
	}
	return set, nil
}

// Load applies pending delta files from the configured blob store.
func (kv *KVQuery) Load(ctx context.Context) (loader.Result, error) {
	if kv.closed.Load() {
		return loader.Result{}, ErrClosed
	}
	if kv.loader == nil {
		return loader.Result{}, fmt.Errorf("%w: no blob store configured", ErrInvalidConfiguration)
	}
	return kv.loader.LoadAll(ctx)
}

// Run polls the configured blob store for delta files until ctx is done.
func (kv *KVQuery) Run(ctx context.Context, interval time.Duration) error {
	if kv.loader == nil {
		return fmt.Errorf("%w: no blob store configured", ErrInvalidConfiguration)
	}
	if interval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfiguration)
	}
	return kv.loader.Run(ctx, interval)
}

func (kv *KVQuery) observeLoad(fr loader.FileResult) {
	kv.metrics.RecordLoad(fr.Records, fr.Bytes, fr.Duration, fr.Err)
	kv.logger.LogLoad(context.Background(), fr)
}

// Close marks the KVQuery closed. Calls after Close return ErrClosed.
func (kv *KVQuery) Close() error {
	if kv == nil {
		return nil
	}
	kv.closed.Store(true)
	return nil
}

func distinct(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}
