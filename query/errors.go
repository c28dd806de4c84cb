package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSyntax is matched by every LexError and ParseError.
	ErrSyntax = errors.New("query syntax error")

	// ErrNotFound is returned by resolvers when a set name is unknown.
	//
	// Set sources should return an error that satisfies errors.Is(err, ErrNotFound).
	ErrNotFound = errors.New("set not found")

	// ErrEmptyTree is returned when evaluating a nil AST.
	ErrEmptyTree = errors.New("empty expression tree")
)

// LexError reports a character that cannot start any token.
type LexError struct {
	Pos  int
	Char rune
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at position %d: unexpected character %q", e.Pos, e.Char)
}

func (e *LexError) Unwrap() error { return ErrSyntax }

// ParseError reports a grammar violation.
type ParseError struct {
	Pos      int
	Found    Token
	Expected []TokenKind
	// Msg optionally describes the violation, e.g. "unmatched parenthesis".
	Msg string
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "parse error at position %d: ", e.Pos)
	if e.Msg != "" {
		sb.WriteString(e.Msg)
		sb.WriteString(": ")
	}
	sb.WriteString("unexpected ")
	sb.WriteString(e.Found.String())
	if len(e.Expected) > 0 {
		sb.WriteString(", expected ")
		for i, k := range e.Expected {
			if i > 0 {
				if i == len(e.Expected)-1 {
					sb.WriteString(" or ")
				} else {
					sb.WriteString(", ")
				}
			}
			sb.WriteString(k.String())
		}
	}
	return sb.String()
}

func (e *ParseError) Unwrap() error { return ErrSyntax }

// EvalError reports a failure to resolve a set during evaluation.
//
// The resolver error can be accessed via errors.Unwrap.
type EvalError struct {
	Name string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("resolve set %q: %v", e.Name, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }
