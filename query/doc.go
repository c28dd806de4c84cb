// Package query parses and evaluates boolean set expressions.
//
// A query combines named sets with three left-associative binary operators:
//
//	|   union
//	&   intersection
//	-   difference
//
// Union binds weakest; intersection and difference share the same, higher
// precedence. Parentheses group sub-expressions:
//
//	(A - B) | (C & D)
//	A - B - C          // same as (A - B) - C
//	A | B & C          // same as A | (B & C)
//
// # Evaluation
//
// Parsing produces an immutable AST that can be evaluated any number of times,
// concurrently, against different set sources. Evaluation is generic over the
// set representation:
//
//   - StringSet: hash set of strings
//   - BitSet: roaring compressed bitmap of uint32 values
//
// Example:
//
//	root, err := query.Parse("(A - B) | (C & D)")
//	if err != nil { ... }
//
//	result, err := query.EvalBits(root, func(name string) (query.BitSet, error) {
//	    return lookup(name) // must return a set the evaluator may own
//	})
//
// Evaluation consumes its operands: intermediate sets are mutated in place and
// reused as results. Resolvers must hand out sets that nobody else references,
// typically fresh copies from the backing store.
package query
