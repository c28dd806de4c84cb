package cache

import (
	"github.com/hupe1980/kvquery/query"
)

// SetResult holds sets copied out of a KeyValueCache by GetKeyValueSet or
// GetUInt32ValueSet. It is not affected by later cache mutations.
type SetResult struct {
	strings map[string]query.StringSet
	bits    map[string]query.BitSet
}

// Len returns the number of keys found.
func (r *SetResult) Len() int {
	return len(r.strings) + len(r.bits)
}

// ValueSet returns a copy of the string set stored under key.
func (r *SetResult) ValueSet(key string) (query.StringSet, error) {
	s, ok := r.strings[key]
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	return s.Clone(), nil
}

// UInt32ValueSet returns a copy of the uint32 set stored under key.
func (r *SetResult) UInt32ValueSet(key string) (query.BitSet, error) {
	s, ok := r.bits[key]
	if !ok {
		return query.BitSet{}, &NotFoundError{Key: key}
	}
	return s.Clone(), nil
}

// SetResult lookups are usable as evaluator resolvers.
var (
	_ query.Resolver[query.StringSet] = (*SetResult)(nil).ValueSet
	_ query.Resolver[query.BitSet]    = (*SetResult)(nil).UInt32ValueSet
)
