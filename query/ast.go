package query

import (
	"slices"
	"strings"
)

// Op is a binary set operator.
type Op uint8

const (
	// Union keeps elements present in either operand.
	Union Op = iota
	// Intersection keeps elements present in both operands.
	Intersection
	// Difference keeps elements of the left operand absent from the right.
	Difference

	numOps
)

func (o Op) String() string {
	switch o {
	case Union:
		return "|"
	case Intersection:
		return "&"
	case Difference:
		return "-"
	default:
		return "?"
	}
}

// Node is an AST node: either *Leaf or *Operator.
//
// Nodes are never modified after parsing, so a tree can be shared by
// concurrent evaluations.
type Node interface {
	node()
}

// Leaf references a set by name.
type Leaf struct {
	Name string
}

// Operator combines the results of two sub-trees.
type Operator struct {
	Op    Op
	Left  Node
	Right Node
}

func (*Leaf) node()     {}
func (*Operator) node() {}

// Format renders the tree with every operator node fully parenthesized.
// Parsing the output yields a tree that evaluates identically.
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n)
	return sb.String()
}

func format(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Leaf:
		if n != nil {
			sb.WriteString(n.Name)
		}
	case *Operator:
		if n == nil {
			return
		}
		sb.WriteByte('(')
		format(sb, n.Left)
		sb.WriteByte(' ')
		sb.WriteString(n.Op.String())
		sb.WriteByte(' ')
		format(sb, n.Right)
		sb.WriteByte(')')
	}
}

// Identifiers returns the distinct set names referenced by the tree, sorted.
func Identifiers(n Node) []string {
	var names []string
	walk(n, func(l *Leaf) {
		names = append(names, l.Name)
	})
	slices.Sort(names)
	return slices.Compact(names)
}

func walk(n Node, fn func(*Leaf)) {
	switch n := n.(type) {
	case *Leaf:
		if n != nil {
			fn(n)
		}
	case *Operator:
		if n == nil {
			return
		}
		walk(n.Left, fn)
		walk(n.Right, fn)
	}
}
