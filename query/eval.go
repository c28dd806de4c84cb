package query

import "fmt"

// Resolver returns the set registered under name.
//
// The evaluator takes ownership of the returned set and may modify it, so
// resolvers must not hand out shared instances. Unknown names should produce
// an error matching ErrNotFound.
type Resolver[S any] func(name string) (S, error)

// Evaluator walks an AST and applies set operations of representation S.
//
// The operator table is built once per Evaluator. An Evaluator is stateless
// after construction and safe for concurrent use.
type Evaluator[S Set[S]] struct {
	ops [numOps]func(a, b S) S
}

// NewEvaluator builds the operator dispatch table for S.
func NewEvaluator[S Set[S]]() *Evaluator[S] {
	return &Evaluator[S]{
		ops: [numOps]func(a, b S) S{
			Union:        func(a, b S) S { return a.Union(b) },
			Intersection: func(a, b S) S { return a.Intersection(b) },
			Difference:   func(a, b S) S { return a.Difference(b) },
		},
	}
}

// Apply combines a and b with op. Both operands are consumed.
func (e *Evaluator[S]) Apply(op Op, a, b S) (S, error) {
	if op >= numOps {
		var zero S
		return zero, fmt.Errorf("unknown operator %d", op)
	}
	return e.ops[op](a, b), nil
}

// Eval evaluates the tree rooted at n.
//
// The left sub-tree is evaluated before the right one. The first resolver
// error aborts the evaluation and is returned as *EvalError; no partial
// result is produced.
func (e *Evaluator[S]) Eval(n Node, resolve Resolver[S]) (S, error) {
	var zero S

	switch n := n.(type) {
	case *Leaf:
		if n == nil {
			return zero, ErrEmptyTree
		}
		s, err := resolve(n.Name)
		if err != nil {
			return zero, &EvalError{Name: n.Name, Err: err}
		}
		return s, nil

	case *Operator:
		if n == nil {
			return zero, ErrEmptyTree
		}
		left, err := e.Eval(n.Left, resolve)
		if err != nil {
			return zero, err
		}
		right, err := e.Eval(n.Right, resolve)
		if err != nil {
			return zero, err
		}
		return e.Apply(n.Op, left, right)

	case nil:
		return zero, ErrEmptyTree

	default:
		return zero, fmt.Errorf("unsupported node type %T", n)
	}
}

var (
	stringEvaluator = NewEvaluator[StringSet]()
	bitEvaluator    = NewEvaluator[BitSet]()
)

// Eval evaluates n with a freshly built evaluator for S. Prefer keeping an
// Evaluator around on hot paths.
func Eval[S Set[S]](n Node, resolve Resolver[S]) (S, error) {
	return NewEvaluator[S]().Eval(n, resolve)
}

// EvalStrings evaluates n over string sets.
func EvalStrings(n Node, resolve Resolver[StringSet]) (StringSet, error) {
	return stringEvaluator.Eval(n, resolve)
}

// EvalBits evaluates n over roaring bitmaps.
func EvalBits(n Node, resolve Resolver[BitSet]) (BitSet, error) {
	return bitEvaluator.Eval(n, resolve)
}

// MapResolver resolves names from m, cloning each set it returns.
func MapResolver[S Set[S]](m map[string]S) Resolver[S] {
	return func(name string) (S, error) {
		s, ok := m[name]
		if !ok {
			var zero S
			return zero, ErrNotFound
		}
		return s.Clone(), nil
	}
}
