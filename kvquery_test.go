package kvquery

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kvquery/blobstore"
	"github.com/hupe1980/kvquery/cache"
	"github.com/hupe1980/kvquery/delta"
	"github.com/hupe1980/kvquery/query"
)

// newScenario registers A={1,2,3}, B={2,3,4}, C={3,4,5}, D={1,5} in both
// representations.
func newScenario(t *testing.T, optFns ...Option) *KVQuery {
	t.Helper()

	kv, err := New(optFns...)
	require.NoError(t, err)

	sets := map[string][]uint32{
		"A": {1, 2, 3},
		"B": {2, 3, 4},
		"C": {3, 4, 5},
		"D": {1, 5},
	}
	c := kv.Cache()
	for name, vals := range sets {
		strs := make([]string, len(vals))
		for i, v := range vals {
			strs[i] = string(rune('0' + v))
		}
		c.UpdateKeyValueSet(name, strs, 1)
		c.UpdateUInt32ValueSet(name, vals, 1)
	}
	return kv
}

func TestKVQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("RunQuery", func(t *testing.T) {
		kv := newScenario(t)

		got, err := kv.RunQuery(ctx, "(A - B) | (C & D)")
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "5"}, got)

		got, err = kv.RunQuery(ctx, "A & B & C")
		require.NoError(t, err)
		assert.Equal(t, []string{"3"}, got)
	})

	t.Run("RunSetQueryInt", func(t *testing.T) {
		kv := newScenario(t)

		got, err := kv.RunSetQueryInt(ctx, "(A - B) | (C & D)")
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 5}, got)

		got, err = kv.RunSetQueryInt(ctx, "A - B - C")
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, got)
	})

	t.Run("ParseError", func(t *testing.T) {
		kv := newScenario(t)

		for _, q := range []string{"A &", "(A | B", "A $ B", "", "   "} {
			_, err := kv.RunQuery(ctx, q)
			require.Error(t, err, q)
			assert.ErrorIs(t, err, ErrInvalidQuery, q)
			assert.ErrorIs(t, err, query.ErrSyntax, q)

			_, err = kv.RunSetQueryInt(ctx, q)
			assert.ErrorIs(t, err, ErrInvalidQuery, q)
		}

		_, err := kv.RunQuery(ctx, "A &")
		var se *ErrQuerySyntax
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 3, se.Pos)
		assert.Equal(t, "A &", se.Query)
	})

	t.Run("UnknownSet", func(t *testing.T) {
		kv := newScenario(t)

		_, err := kv.RunQuery(ctx, "A | Z")
		require.ErrorIs(t, err, ErrNotFound)
		var nf *ErrSetNotFound
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "Z", nf.Name)
		assert.ErrorIs(t, err, cache.ErrNotFound)

		_, err = kv.RunSetQueryInt(ctx, "Z")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("EmptySetIsNotMissing", func(t *testing.T) {
		kv := newScenario(t)
		kv.Cache().DeleteValuesInSet("D", []string{"1", "5"}, 2)

		got, err := kv.RunQuery(ctx, "A | D")
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2", "3"}, got)
	})
}

func TestGetKeyValues(t *testing.T) {
	ctx := context.Background()
	kv, err := New()
	require.NoError(t, err)

	kv.Cache().UpdateKeyValue("key1", "value1", 1)

	got, err := kv.GetKeyValues(ctx, []string{"key1", "key2", "key1"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "value1", got["key1"].Value)
	assert.NoError(t, got["key1"].Err)

	require.Error(t, got["key2"].Err)
	assert.Equal(t, "Key not found: key2", got["key2"].Err.Error())
	assert.ErrorIs(t, got["key2"].Err, cache.ErrNotFound)

	got, err = kv.GetKeyValues(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetKeyValueSet(t *testing.T) {
	ctx := context.Background()
	kv := newScenario(t)
	kv.Cache().UpdateKeyValueSet("E", []string{"x"}, 1)
	kv.Cache().DeleteValuesInSet("E", []string{"x"}, 2)

	got, err := kv.GetKeyValueSet(ctx, []string{"A", "E", "missing"})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, got["A"].Values)
	assert.NoError(t, got["A"].Err)
	assert.Equal(t, "Key not found: E", got["E"].Err.Error())
	assert.Equal(t, "Key not found: missing", got["missing"].Err.Error())

	ints, err := kv.GetUInt32ValueSet(ctx, []string{"D", "nope"})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 5}, ints["D"].Values)
	assert.ErrorIs(t, ints["nope"].Err, cache.ErrNotFound)
}

func TestLookupIsolation(t *testing.T) {
	ctx := context.Background()
	kv := newScenario(t)

	got, err := kv.GetUInt32ValueSet(ctx, []string{"A"})
	require.NoError(t, err)
	got["A"].Values[0] = 99

	again, err := kv.GetUInt32ValueSet(ctx, []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, again["A"].Values)
}

func TestMetricsAndLogging(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	metrics := &BasicMetricsCollector{}
	kv := newScenario(t,
		WithMetricsCollector(metrics),
		WithLogger(NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)

	_, err := kv.RunQuery(ctx, "A | B")
	require.NoError(t, err)
	_, err = kv.RunSetQueryInt(ctx, "A &")
	require.Error(t, err)
	_, err = kv.GetKeyValueSet(ctx, []string{"A", "Z"})
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.QueryCount)
	assert.Equal(t, int64(1), stats.QueryErrors)
	assert.Equal(t, int64(4), stats.QueryElements)
	assert.Equal(t, int64(1), stats.LookupCount)
	assert.Equal(t, int64(2), stats.LookupKeys)
	assert.Equal(t, int64(1), stats.LookupMisses)

	assert.Contains(t, buf.String(), "query completed")
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "lookup completed")
	assert.Contains(t, buf.String(), `query="A | B"`)
	assert.Contains(t, buf.String(), `query="A &"`)
}

func TestLoggerWithQuery(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewTextHandler(&buf, nil)).WithQuery("A - B")

	l.Info("evaluating")
	assert.Contains(t, buf.String(), `query="A - B"`)
	assert.Contains(t, buf.String(), "msg=evaluating")
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	var buf bytes.Buffer
	w := delta.NewWriter(&buf)
	require.NoError(t, w.Write(delta.Record{Type: delta.UpdateUInt32ValueSet, Key: "A", CommitTime: 5, UInt32Values: []uint32{7, 8}}))
	require.NoError(t, w.Write(delta.Record{Type: delta.UpdateUInt32ValueSet, Key: "B", CommitTime: 5, UInt32Values: []uint32{8}}))
	require.NoError(t, w.Close())
	require.NoError(t, store.Put(ctx, delta.FileName(5), buf.Bytes()))

	metrics := &BasicMetricsCollector{}
	kv, err := New(
		WithBlobStore(store),
		WithMetricsCollector(metrics),
		WithResourceLimits(ResourceLimits{LoadWorkers: 2, LoadMemoryBytes: 1 << 20}),
	)
	require.NoError(t, err)

	res, err := kv.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, int64(1), metrics.GetStats().LoadFiles)
	assert.Equal(t, int64(2), metrics.GetStats().LoadRecords)

	got, err := kv.RunSetQueryInt(ctx, "A - B")
	require.NoError(t, err)
	assert.Equal(t, []uint32{7}, got)
}

func TestConfiguration(t *testing.T) {
	_, err := New(WithResourceLimits(ResourceLimits{MaxConcurrentQueries: -1}))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	kv, err := New()
	require.NoError(t, err)

	_, err = kv.Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.ErrorIs(t, kv.Run(context.Background(), 0), ErrInvalidConfiguration)

	c := cache.New()
	kv, err = New(WithCache(c), WithLogger(nil), WithMetricsCollector(nil))
	require.NoError(t, err)
	assert.Same(t, c, kv.Cache())
}

func TestConcurrencyLimit(t *testing.T) {
	kv := newScenario(t, WithResourceLimits(ResourceLimits{MaxConcurrentQueries: 1}))

	// Hold the only slot.
	require.NoError(t, kv.rc.AcquireQuery(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := kv.RunQuery(ctx, "A")
	assert.ErrorIs(t, err, context.Canceled)

	kv.rc.ReleaseQuery()

	got, err := kv.RunQuery(context.Background(), "A")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFailFast(t *testing.T) {
	kv := newScenario(t, WithResourceLimits(ResourceLimits{MaxConcurrentQueries: 1, FailFast: true}))
	ctx := context.Background()

	require.NoError(t, kv.rc.AcquireQuery(ctx))

	_, err := kv.RunSetQueryInt(ctx, "A | B")
	assert.ErrorIs(t, err, ErrOverloaded)

	_, err = kv.GetKeyValues(ctx, []string{"A"})
	assert.ErrorIs(t, err, ErrOverloaded)

	kv.rc.ReleaseQuery()

	got, err := kv.RunSetQueryInt(ctx, "A | B")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3, 4}, got)
	assert.Zero(t, kv.rc.ActiveQueries())
}

func TestEvaluatorsAreShared(t *testing.T) {
	kv := newScenario(t)
	strEval, bitEval := kv.strEval, kv.bitEval
	require.NotNil(t, strEval)
	require.NotNil(t, bitEval)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ints, err := kv.RunSetQueryInt(context.Background(), "(A - B) | (C & D)")
				assert.NoError(t, err)
				assert.Equal(t, []uint32{1, 5}, ints)

				strs, err := kv.RunQuery(context.Background(), "A & B & C")
				assert.NoError(t, err)
				assert.Len(t, strs, 1)
			}
		}()
	}
	wg.Wait()

	assert.Same(t, strEval, kv.strEval)
	assert.Same(t, bitEval, kv.bitEval)
}

func TestConcurrentQueriesAndUpdates(t *testing.T) {
	ctx := context.Background()
	kv := newScenario(t, WithResourceLimits(ResourceLimits{MaxConcurrentQueries: 4}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					kv.Cache().UpdateUInt32ValueSet("A", []uint32{uint32(100 + j)}, int64(10+j))
					continue
				}
				got, err := kv.RunSetQueryInt(ctx, "A & B")
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, []uint32{2, 3}, got)
			}
		}(i)
	}
	wg.Wait()
}

func TestClose(t *testing.T) {
	kv := newScenario(t)

	assert.NoError(t, kv.Close())
	assert.NoError(t, kv.Close())

	_, err := kv.RunQuery(context.Background(), "A")
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = kv.GetKeyValues(context.Background(), []string{"k"})
	assert.ErrorIs(t, err, ErrClosed)
}
