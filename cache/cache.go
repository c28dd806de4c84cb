package cache

import (
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/hupe1980/kvquery/query"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrNotFound is returned when a key has no value.
//
// It is the same sentinel the query evaluator expects from resolvers.
var ErrNotFound = query.ErrNotFound

// NotFoundError reports a missing key.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return "Key not found: " + e.Key
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type valueEntry struct {
	value      string
	commitTime int64
	deleted    bool
}

// KeyValueCache is a versioned in-memory store of values and sets.
// It is safe for concurrent use.
type KeyValueCache struct {
	values     *xsync.MapOf[string, valueEntry]
	stringSets *xsync.MapOf[string, *stringSetEntry]
	uint32Sets *xsync.MapOf[string, *uint32SetEntry]

	maxCommitTime atomic.Int64
	logger        *slog.Logger
}

type options struct {
	logger *slog.Logger
}

// Option configures a KeyValueCache.
type Option func(*options)

// WithLogger sets the logger used for maintenance events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an empty cache.
func New(optFns ...Option) *KeyValueCache {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range optFns {
		fn(&o)
	}

	return &KeyValueCache{
		values:     xsync.NewMapOf[string, valueEntry](),
		stringSets: xsync.NewMapOf[string, *stringSetEntry](),
		uint32Sets: xsync.NewMapOf[string, *uint32SetEntry](),
		logger:     o.logger,
	}
}

func (c *KeyValueCache) observeCommit(t int64) {
	for {
		cur := c.maxCommitTime.Load()
		if t <= cur || c.maxCommitTime.CompareAndSwap(cur, t) {
			return
		}
	}
}

// MaxCommitTime returns the largest commit time seen by any mutation.
func (c *KeyValueCache) MaxCommitTime() int64 {
	return c.maxCommitTime.Load()
}

// UpdateKeyValue sets key to value unless a newer mutation was recorded.
func (c *KeyValueCache) UpdateKeyValue(key, value string, commitTime int64) {
	c.values.Compute(key, func(old valueEntry, loaded bool) (valueEntry, bool) {
		if loaded && old.commitTime >= commitTime {
			return old, false
		}
		return valueEntry{value: value, commitTime: commitTime}, false
	})
	c.observeCommit(commitTime)
}

// DeleteKey marks key as deleted unless a newer mutation was recorded.
// The tombstone rejects older updates until RemoveDeletedKeys drops it.
func (c *KeyValueCache) DeleteKey(key string, commitTime int64) {
	c.values.Compute(key, func(old valueEntry, loaded bool) (valueEntry, bool) {
		if loaded && old.commitTime >= commitTime {
			return old, false
		}
		return valueEntry{commitTime: commitTime, deleted: true}, false
	})
	c.observeCommit(commitTime)
}

// GetKeyValuePairs returns the live values of the given keys. Missing and
// deleted keys are absent from the result.
func (c *KeyValueCache) GetKeyValuePairs(keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if e, ok := c.values.Load(k); ok && !e.deleted {
			out[k] = e.value
		}
	}
	return out
}

// UpdateKeyValueSet adds values to the string set stored under key.
func (c *KeyValueCache) UpdateKeyValueSet(key string, values []string, commitTime int64) {
	c.applyStrings(key, values, commitTime, false)
}

// DeleteValuesInSet removes values from the string set stored under key.
func (c *KeyValueCache) DeleteValuesInSet(key string, values []string, commitTime int64) {
	c.applyStrings(key, values, commitTime, true)
}

// UpdateUInt32ValueSet adds values to the uint32 set stored under key.
func (c *KeyValueCache) UpdateUInt32ValueSet(key string, values []uint32, commitTime int64) {
	c.applyUInt32s(key, values, commitTime, false)
}

// DeleteUInt32ValuesInSet removes values from the uint32 set stored under key.
func (c *KeyValueCache) DeleteUInt32ValuesInSet(key string, values []uint32, commitTime int64) {
	c.applyUInt32s(key, values, commitTime, true)
}

func (c *KeyValueCache) applyStrings(key string, values []string, commitTime int64, deleted bool) {
	for {
		e, _ := c.stringSets.LoadOrCompute(key, newStringSetEntry)
		if e.apply(values, commitTime, deleted) {
			break
		}
	}
	c.observeCommit(commitTime)
}

func (c *KeyValueCache) applyUInt32s(key string, values []uint32, commitTime int64, deleted bool) {
	for {
		e, _ := c.uint32Sets.LoadOrCompute(key, newUInt32SetEntry)
		if e.apply(values, commitTime, deleted) {
			break
		}
	}
	c.observeCommit(commitTime)
}

// GetKeyValueSet copies the string sets stored under keys.
func (c *KeyValueCache) GetKeyValueSet(keys ...string) *SetResult {
	r := &SetResult{strings: make(map[string]query.StringSet, len(keys))}
	for _, k := range keys {
		if _, done := r.strings[k]; done {
			continue
		}
		if e, ok := c.stringSets.Load(k); ok {
			r.strings[k] = e.snapshot()
		}
	}
	return r
}

// GetUInt32ValueSet copies the uint32 sets stored under keys.
func (c *KeyValueCache) GetUInt32ValueSet(keys ...string) *SetResult {
	r := &SetResult{bits: make(map[string]query.BitSet, len(keys))}
	for _, k := range keys {
		if _, done := r.bits[k]; done {
			continue
		}
		if e, ok := c.uint32Sets.Load(k); ok {
			r.bits[k] = e.snapshot()
		}
	}
	return r
}

// RemoveDeletedKeys drops tombstones with a commit time at or before upTo.
// Callers must ensure no mutation older than upTo arrives afterwards.
func (c *KeyValueCache) RemoveDeletedKeys(upTo int64) {
	removed := 0

	c.values.Range(func(key string, _ valueEntry) bool {
		c.values.Compute(key, func(old valueEntry, loaded bool) (valueEntry, bool) {
			if !loaded {
				return old, true
			}
			if old.deleted && old.commitTime <= upTo {
				removed++
				return old, true
			}
			return old, false
		})
		return true
	})

	c.stringSets.Range(func(key string, e *stringSetEntry) bool {
		n, empty := e.cleanup(upTo)
		removed += n
		if empty {
			c.stringSets.Compute(key, func(old *stringSetEntry, loaded bool) (*stringSetEntry, bool) {
				return old, !loaded || old.unlink()
			})
		}
		return true
	})

	c.uint32Sets.Range(func(key string, e *uint32SetEntry) bool {
		n, empty := e.cleanup(upTo)
		removed += n
		if empty {
			c.uint32Sets.Compute(key, func(old *uint32SetEntry, loaded bool) (*uint32SetEntry, bool) {
				return old, !loaded || old.unlink()
			})
		}
		return true
	})

	c.logger.Debug("removed deleted keys", "up_to", upTo, "tombstones", removed)
}

// Stats describes the cache contents.
type Stats struct {
	Values        int
	StringSets    int
	UInt32Sets    int
	MaxCommitTime int64
}

// Stats returns approximate entry counts, including tombstoned keys.
func (c *KeyValueCache) Stats() Stats {
	return Stats{
		Values:        c.values.Size(),
		StringSets:    c.stringSets.Size(),
		UInt32Sets:    c.uint32Sets.Size(),
		MaxCommitTime: c.MaxCommitTime(),
	}
}
