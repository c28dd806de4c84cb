// Package cache provides the in-memory key-value store that queries are
// evaluated against.
//
// KeyValueCache holds three independent key spaces:
//
//   - plain key/value pairs
//   - sets of strings
//   - sets of uint32 values (roaring bitmaps)
//
// Every mutation carries a logical commit time. A mutation is applied only if
// it is newer than the last one recorded for the same key (or, for sets, the
// same element), so replaying delta files out of order converges to the same
// state. Deletions leave tombstones until RemoveDeletedKeys drops them.
//
// # Consistency
//
// GetKeyValueSet and GetUInt32ValueSet copy each requested set under that
// set's lock. Each set in a SetResult is internally consistent, but different
// keys may reflect different points in time if writers run concurrently.
package cache
