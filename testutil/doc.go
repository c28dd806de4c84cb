// Package testutil provides testing utilities for kvquery.
//
// This package is intended for tests, benchmarks and tools only.
// It provides a seeded, thread-safe RNG and generators for named sets.
//
//	rng := testutil.NewRNG(42)
//	sets, err := rng.RandomSets([]string{"A", "B"}, 1000, 0, 65536)
//	if errors.Is(err, testutil.ErrInvalidRange) { ... }
//
//	// The same logical set as strings:
//	strs := testutil.Strings(sets["A"])
package testutil
