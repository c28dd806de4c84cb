// Package kvquery serves key lookups and set-algebra queries over a
// versioned in-memory key-value cache.
//
// Named sets of strings or uint32 values are kept in a cache.KeyValueCache
// and combined with expressions such as "(A - B) | (C & D)". Union (|),
// intersection (&) and difference (-) are supported; & and - bind tighter
// than | and associate to the left.
//
// # Quick Start
//
//	kv, _ := kvquery.New()
//	c := kv.Cache()
//	c.UpdateKeyValueSet("A", []string{"a", "b", "c"}, 1)
//	c.UpdateKeyValueSet("B", []string{"b"}, 1)
//
//	elems, _ := kv.RunQuery(ctx, "A - B") // [a c]
//
// uint32 sets are stored as roaring bitmaps and queried with RunSetQueryInt:
//
//	c.UpdateUInt32ValueSet("X", []uint32{1, 2, 3}, 2)
//	ids, _ := kv.RunSetQueryInt(ctx, "X & X")
//
// # Loading Deltas
//
// With WithBlobStore, Load and Run apply delta files (see package delta)
// from a local directory, S3 or MinIO to the cache:
//
//	kv, _ := kvquery.New(kvquery.WithBlobStore(store))
//	go kv.Run(ctx, 10*time.Second)
//
// # Errors
//
// Malformed queries fail with ErrInvalidQuery before any set is read.
// Queries naming an unknown set fail with ErrNotFound. Lookups report
// missing keys per key instead of failing the call.
package kvquery
