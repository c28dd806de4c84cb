package cache

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/kvquery/query"
)

type elemVersion struct {
	commitTime int64
	deleted    bool
}

// stringSetEntry is the versioned state of one string set.
// removed is set once the entry has been unlinked from the cache; writers
// holding a stale pointer must look the key up again.
type stringSetEntry struct {
	mu      sync.RWMutex
	elems   map[string]elemVersion
	live    int
	removed bool
}

func newStringSetEntry() *stringSetEntry {
	return &stringSetEntry{elems: make(map[string]elemVersion)}
}

func (e *stringSetEntry) apply(values []string, commitTime int64, deleted bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return false
	}

	for _, v := range values {
		old, ok := e.elems[v]
		if ok && old.commitTime >= commitTime {
			continue
		}
		if ok && !old.deleted {
			e.live--
		}
		if !deleted {
			e.live++
		}
		e.elems[v] = elemVersion{commitTime: commitTime, deleted: deleted}
	}

	return true
}

func (e *stringSetEntry) snapshot() query.StringSet {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := make(query.StringSet, e.live)
	for v, ver := range e.elems {
		if !ver.deleted {
			s[v] = struct{}{}
		}
	}
	return s
}

func (e *stringSetEntry) cleanup(upTo int64) (removed int, empty bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for v, ver := range e.elems {
		if ver.deleted && ver.commitTime <= upTo {
			delete(e.elems, v)
			removed++
		}
	}
	return removed, len(e.elems) == 0
}

// unlink marks an empty entry as removed and reports whether it was empty.
func (e *stringSetEntry) unlink() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.elems) != 0 {
		return false
	}
	e.removed = true
	return true
}

// uint32SetEntry is the versioned state of one uint32 set. live mirrors the
// non-deleted members of versions so snapshots are a bitmap clone.
type uint32SetEntry struct {
	mu       sync.RWMutex
	live     *roaring.Bitmap
	versions map[uint32]elemVersion
	removed  bool
}

func newUInt32SetEntry() *uint32SetEntry {
	return &uint32SetEntry{
		live:     roaring.New(),
		versions: make(map[uint32]elemVersion),
	}
}

func (e *uint32SetEntry) apply(values []uint32, commitTime int64, deleted bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return false
	}

	for _, v := range values {
		if old, ok := e.versions[v]; ok && old.commitTime >= commitTime {
			continue
		}
		e.versions[v] = elemVersion{commitTime: commitTime, deleted: deleted}
		if deleted {
			e.live.Remove(v)
		} else {
			e.live.Add(v)
		}
	}

	return true
}

func (e *uint32SetEntry) snapshot() query.BitSet {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return query.BitSetFrom(e.live.Clone())
}

func (e *uint32SetEntry) cleanup(upTo int64) (removed int, empty bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for v, ver := range e.versions {
		if ver.deleted && ver.commitTime <= upTo {
			delete(e.versions, v)
			removed++
		}
	}
	return removed, len(e.versions) == 0
}

func (e *uint32SetEntry) unlink() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.versions) != 0 {
		return false
	}
	e.removed = true
	return true
}
