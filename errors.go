package kvquery

import (
	"errors"
	"fmt"

	"github.com/hupe1980/kvquery/internal/resource"
	"github.com/hupe1980/kvquery/query"
)

var (
	// ErrNotFound is returned when a query references a set that is not
	// registered.
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuery is returned when a query cannot be parsed.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidConfiguration is returned by New for unusable options.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("kvquery: closed")

	// ErrOverloaded is returned when ResourceLimits.FailFast is set and
	// every query slot is busy.
	ErrOverloaded = resource.ErrOverloaded
)

// ErrQuerySyntax reports where a query failed to parse.
//
// It matches ErrInvalidQuery with errors.Is. The scanner or parser error
// can be accessed via errors.As.
type ErrQuerySyntax struct {
	Query string
	Pos   int
	cause error
}

func (e *ErrQuerySyntax) Error() string {
	return fmt.Sprintf("invalid query %q: %v", e.Query, e.cause)
}

func (e *ErrQuerySyntax) Unwrap() []error { return []error{ErrInvalidQuery, e.cause} }

// ErrSetNotFound names the set a query could not resolve.
//
// It matches ErrNotFound with errors.Is.
type ErrSetNotFound struct {
	Name  string
	cause error
}

func (e *ErrSetNotFound) Error() string {
	return fmt.Sprintf("set not found: %s", e.Name)
}

func (e *ErrSetNotFound) Unwrap() []error { return []error{ErrNotFound, e.cause} }

func translateError(q string, err error) error {
	if err == nil {
		return nil
	}

	var le *query.LexError
	if errors.As(err, &le) {
		return &ErrQuerySyntax{Query: q, Pos: le.Pos, cause: err}
	}
	var pe *query.ParseError
	if errors.As(err, &pe) {
		return &ErrQuerySyntax{Query: q, Pos: pe.Pos, cause: err}
	}
	if errors.Is(err, query.ErrEmptyTree) {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	var ee *query.EvalError
	if errors.As(err, &ee) && errors.Is(err, query.ErrNotFound) {
		return &ErrSetNotFound{Name: ee.Name, cause: err}
	}
	if errors.Is(err, query.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
