package cache

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kvquery/query"
)

func TestKeyValues(t *testing.T) {
	c := New()

	c.UpdateKeyValue("a", "1", 10)
	c.UpdateKeyValue("b", "2", 10)

	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, c.GetKeyValuePairs("a", "b", "missing"))

	t.Run("stale update ignored", func(t *testing.T) {
		c.UpdateKeyValue("a", "old", 5)
		assert.Equal(t, "1", c.GetKeyValuePairs("a")["a"])
	})

	t.Run("newer update applied", func(t *testing.T) {
		c.UpdateKeyValue("a", "new", 11)
		assert.Equal(t, "new", c.GetKeyValuePairs("a")["a"])
	})

	t.Run("delete hides key", func(t *testing.T) {
		c.DeleteKey("b", 12)
		assert.Empty(t, c.GetKeyValuePairs("b"))

		// Older updates stay behind the tombstone.
		c.UpdateKeyValue("b", "late", 11)
		assert.Empty(t, c.GetKeyValuePairs("b"))

		c.UpdateKeyValue("b", "revived", 13)
		assert.Equal(t, "revived", c.GetKeyValuePairs("b")["b"])
	})

	assert.Equal(t, int64(13), c.MaxCommitTime())
}

func TestStringSets(t *testing.T) {
	c := New()

	c.UpdateKeyValueSet("A", []string{"x", "y", "z"}, 1)
	c.DeleteValuesInSet("A", []string{"y"}, 2)

	r := c.GetKeyValueSet("A", "B", "A")
	assert.Equal(t, 1, r.Len())

	a, err := r.ValueSet("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "z"}, a.Elements())

	_, err = r.ValueSet("B")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "Key not found: B")

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "B", nf.Key)

	t.Run("element versions", func(t *testing.T) {
		c.UpdateKeyValueSet("A", []string{"y"}, 1)
		r := c.GetKeyValueSet("A")
		a, err := r.ValueSet("A")
		require.NoError(t, err)
		assert.False(t, a.Contains("y"))

		c.UpdateKeyValueSet("A", []string{"y"}, 3)
		a, err = c.GetKeyValueSet("A").ValueSet("A")
		require.NoError(t, err)
		assert.True(t, a.Contains("y"))
	})

	t.Run("result is a snapshot", func(t *testing.T) {
		r := c.GetKeyValueSet("A")
		c.UpdateKeyValueSet("A", []string{"w"}, 4)

		a, err := r.ValueSet("A")
		require.NoError(t, err)
		assert.False(t, a.Contains("w"))
	})

	t.Run("each lookup returns an owned copy", func(t *testing.T) {
		r := c.GetKeyValueSet("A")
		first, err := r.ValueSet("A")
		require.NoError(t, err)
		first.Add("mutated")

		second, err := r.ValueSet("A")
		require.NoError(t, err)
		assert.False(t, second.Contains("mutated"))
	})

	t.Run("empty set is not missing", func(t *testing.T) {
		c.UpdateKeyValueSet("E", []string{"v"}, 5)
		c.DeleteValuesInSet("E", []string{"v"}, 6)

		e, err := c.GetKeyValueSet("E").ValueSet("E")
		require.NoError(t, err)
		assert.Equal(t, 0, e.Len())
	})
}

func TestUInt32Sets(t *testing.T) {
	c := New()

	c.UpdateUInt32ValueSet("A", []uint32{1, 2, 3}, 1)
	c.UpdateUInt32ValueSet("B", []uint32{2, 3, 4}, 1)
	c.DeleteUInt32ValuesInSet("A", []uint32{3}, 2)
	c.DeleteUInt32ValuesInSet("A", []uint32{1}, 0)

	r := c.GetUInt32ValueSet("A", "B")
	a, err := r.UInt32ValueSet("A")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, a.Elements())

	b, err := r.UInt32ValueSet("B")
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 3, 4}, b.Elements())

	_, err = r.UInt32ValueSet("C")
	assert.ErrorIs(t, err, query.ErrNotFound)

	// String and uint32 sets are separate key spaces.
	_, err = c.GetKeyValueSet("A").ValueSet("A")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetResultAsResolver(t *testing.T) {
	c := New()
	c.UpdateUInt32ValueSet("A", []uint32{1, 2, 3}, 1)
	c.UpdateUInt32ValueSet("B", []uint32{2, 3, 4}, 1)
	c.UpdateUInt32ValueSet("C", []uint32{3, 4, 5}, 1)
	c.UpdateUInt32ValueSet("D", []uint32{1, 5}, 1)

	root, err := query.Parse("(A - B) | (C & D)")
	require.NoError(t, err)

	r := c.GetUInt32ValueSet(query.Identifiers(root)...)
	got, err := query.EvalBits(root, r.UInt32ValueSet)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 5}, got.Elements())

	// Evaluation consumed copies only.
	again, err := query.EvalBits(root, r.UInt32ValueSet)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 5}, again.Elements())

	root, err = query.Parse("A | Z")
	require.NoError(t, err)

	_, err = query.EvalBits(root, r.UInt32ValueSet)
	require.Error(t, err)

	var evalErr *query.EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "Z", evalErr.Name)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveDeletedKeys(t *testing.T) {
	var buf bytes.Buffer
	c := New(WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	c.UpdateKeyValue("k", "v", 1)
	c.DeleteKey("k", 2)
	c.DeleteKey("later", 20)

	c.UpdateKeyValueSet("S", []string{"a", "b"}, 1)
	c.DeleteValuesInSet("S", []string{"a"}, 2)
	c.UpdateKeyValueSet("gone", []string{"a"}, 1)
	c.DeleteValuesInSet("gone", []string{"a"}, 2)

	c.UpdateUInt32ValueSet("U", []uint32{1, 2}, 1)
	c.DeleteUInt32ValuesInSet("U", []uint32{1, 2}, 2)

	c.RemoveDeletedKeys(10)

	st := c.Stats()
	assert.Equal(t, 1, st.Values, "tombstone newer than cutoff survives")
	assert.Equal(t, 1, st.StringSets)
	assert.Equal(t, 0, st.UInt32Sets)
	assert.Equal(t, int64(20), st.MaxCommitTime)

	s, err := c.GetKeyValueSet("S").ValueSet("S")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, s.Elements())

	_, err = c.GetKeyValueSet("gone").ValueSet("gone")
	assert.ErrorIs(t, err, ErrNotFound)

	// Once the tombstone is gone an update at any time is accepted.
	c.UpdateKeyValue("k", "back", 1)
	assert.Equal(t, "back", c.GetKeyValuePairs("k")["k"])

	assert.Contains(t, buf.String(), "removed deleted keys")

	// Writers racing an unlinked entry land in a fresh one.
	c.UpdateUInt32ValueSet("U", []uint32{7}, 3)
	u, err := c.GetUInt32ValueSet("U").UInt32ValueSet("U")
	require.NoError(t, err)
	assert.Equal(t, []uint32{7}, u.Elements())
}

func TestConcurrentAccess(t *testing.T) {
	c := New()

	const writers = 8
	const perWriter = 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				v := uint32(w*perWriter + i)
				c.UpdateUInt32ValueSet("bits", []uint32{v}, int64(i+1))
				c.UpdateKeyValueSet("strs", []string{fmt.Sprint(v)}, int64(i+1))
				_ = c.GetUInt32ValueSet("bits")
				if i%50 == 0 {
					c.RemoveDeletedKeys(int64(i))
				}
			}
		}(w)
	}
	wg.Wait()

	bits, err := c.GetUInt32ValueSet("bits").UInt32ValueSet("bits")
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, bits.Len())

	strs, err := c.GetKeyValueSet("strs").ValueSet("strs")
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, strs.Len())
}
