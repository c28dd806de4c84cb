package query

import (
	"iter"
	"maps"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// Set is the capability the evaluator requires from a set representation.
//
// The binary operations may reuse either operand's storage for the result;
// callers must not use the operands afterwards.
type Set[S any] interface {
	// Len returns the cardinality.
	Len() int
	// Clone returns an independent copy.
	Clone() S
	// Union returns the elements present in the receiver or o.
	Union(o S) S
	// Intersection returns the elements present in both the receiver and o.
	Intersection(o S) S
	// Difference returns the elements of the receiver not present in o.
	Difference(o S) S
}

// StringSet is a hash set of strings.
//
// The zero value is an empty set that only supports read operations and the
// set algebra; use NewStringSet before calling Add.
type StringSet map[string]struct{}

var _ Set[StringSet] = StringSet(nil)

// NewStringSet creates a set holding elems.
func NewStringSet(elems ...string) StringSet {
	s := make(StringSet, len(elems))
	for _, e := range elems {
		s[e] = struct{}{}
	}
	return s
}

// Add inserts e.
func (s StringSet) Add(e string) {
	s[e] = struct{}{}
}

// Contains reports whether e is a member.
func (s StringSet) Contains(e string) bool {
	_, ok := s[e]
	return ok
}

// Len returns the number of elements.
func (s StringSet) Len() int {
	return len(s)
}

// Clone returns a copy of the set.
func (s StringSet) Clone() StringSet {
	if s == nil {
		return StringSet{}
	}
	return maps.Clone(s)
}

// All iterates the elements in unspecified order.
func (s StringSet) All() iter.Seq[string] {
	return maps.Keys(s)
}

// Elements returns the members in sorted order.
func (s StringSet) Elements() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// Equal reports whether both sets hold the same elements.
func (s StringSet) Equal(o StringSet) bool {
	if len(s) != len(o) {
		return false
	}
	for e := range s {
		if _, ok := o[e]; !ok {
			return false
		}
	}
	return true
}

// Union inserts the smaller set into the larger one and returns the larger.
func (s StringSet) Union(o StringSet) StringSet {
	large, small := s, o
	if len(small) > len(large) {
		large, small = small, large
	}
	for e := range small {
		large[e] = struct{}{}
	}
	return large
}

// Intersection iterates the smaller set and drops whatever the larger one
// lacks, returning the smaller set.
func (s StringSet) Intersection(o StringSet) StringSet {
	large, small := s, o
	if len(small) > len(large) {
		large, small = small, large
	}
	for e := range small {
		if _, ok := large[e]; !ok {
			delete(small, e)
		}
	}
	return small
}

// Difference removes o's elements from s and returns s.
func (s StringSet) Difference(o StringSet) StringSet {
	if len(o) < len(s) {
		for e := range o {
			delete(s, e)
		}
		return s
	}
	for e := range s {
		if _, ok := o[e]; ok {
			delete(s, e)
		}
	}
	return s
}

// BitSet is a set of uint32 values backed by a roaring bitmap.
//
// The zero value is an empty set.
type BitSet struct {
	rb *roaring.Bitmap
}

var _ Set[BitSet] = BitSet{}

// NewBitSet creates a set holding elems.
func NewBitSet(elems ...uint32) BitSet {
	return BitSet{rb: roaring.BitmapOf(elems...)}
}

// BitSetFrom wraps rb without copying. The BitSet takes ownership of rb.
func BitSetFrom(rb *roaring.Bitmap) BitSet {
	return BitSet{rb: rb}
}

// Bitmap returns the underlying bitmap, allocating one for the zero value.
func (s *BitSet) Bitmap() *roaring.Bitmap {
	if s.rb == nil {
		s.rb = roaring.New()
	}
	return s.rb
}

// Add inserts e.
func (s *BitSet) Add(e uint32) {
	s.Bitmap().Add(e)
}

// Contains reports whether e is a member.
func (s BitSet) Contains(e uint32) bool {
	return s.rb != nil && s.rb.Contains(e)
}

// Len returns the number of elements.
func (s BitSet) Len() int {
	if s.rb == nil {
		return 0
	}
	return int(s.rb.GetCardinality())
}

// Clone returns a deep copy of the set.
func (s BitSet) Clone() BitSet {
	if s.rb == nil {
		return BitSet{rb: roaring.New()}
	}
	return BitSet{rb: s.rb.Clone()}
}

// All iterates the elements in ascending order.
func (s BitSet) All() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		if s.rb == nil {
			return
		}
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// Elements returns the members in ascending order.
func (s BitSet) Elements() []uint32 {
	if s.rb == nil {
		return []uint32{}
	}
	return s.rb.ToArray()
}

// Equal reports whether both sets hold the same elements.
func (s BitSet) Equal(o BitSet) bool {
	if s.Len() == 0 || o.Len() == 0 {
		return s.Len() == o.Len()
	}
	return s.rb.Equals(o.rb)
}

// Union merges o into s container by container and returns s.
func (s BitSet) Union(o BitSet) BitSet {
	if s.rb == nil {
		return o
	}
	if o.rb != nil {
		s.rb.Or(o.rb)
	}
	return s
}

// Intersection keeps the containers and values present in both and returns s.
func (s BitSet) Intersection(o BitSet) BitSet {
	if s.rb == nil || o.rb == nil {
		return BitSet{rb: roaring.New()}
	}
	s.rb.And(o.rb)
	return s
}

// Difference removes o's values from s and returns s.
func (s BitSet) Difference(o BitSet) BitSet {
	if s.rb == nil || o.rb == nil {
		return s
	}
	s.rb.AndNot(o.rb)
	return s
}
