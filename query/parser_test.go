package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(name string) Node { return &Leaf{Name: name} }

func op(o Op, l, r Node) Node { return &Operator{Op: o, Left: l, Right: r} }

func TestParse_Trees(t *testing.T) {
	tests := []struct {
		input    string
		expected Node
	}{
		{"A", leaf("A")},
		{"(A)", leaf("A")},
		{"A & B", op(Intersection, leaf("A"), leaf("B"))},
		{"A | B", op(Union, leaf("A"), leaf("B"))},
		{"A - B", op(Difference, leaf("A"), leaf("B"))},
		{"A - B - C", op(Difference, op(Difference, leaf("A"), leaf("B")), leaf("C"))},
		{"A - (B - C)", op(Difference, leaf("A"), op(Difference, leaf("B"), leaf("C")))},
		{"A | B & C", op(Union, leaf("A"), op(Intersection, leaf("B"), leaf("C")))},
		{"A & B | C", op(Union, op(Intersection, leaf("A"), leaf("B")), leaf("C"))},
		{"A & B - C", op(Difference, op(Intersection, leaf("A"), leaf("B")), leaf("C"))},
		{"A - B & C", op(Intersection, op(Difference, leaf("A"), leaf("B")), leaf("C"))},
		{
			"(A - B) | (C & D)",
			op(Union, op(Difference, leaf("A"), leaf("B")), op(Intersection, leaf("C"), leaf("D"))),
		},
		{"((A))", leaf("A")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			root, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, root)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		pos      int
		found    TokenKind
		expected []TokenKind
	}{
		{"MissingOperand", "A &", 3, TokenEnd, []TokenKind{TokenIdent, TokenLParen}},
		{"UnmatchedOpen", "(A | B", 6, TokenEnd, []TokenKind{TokenRParen}},
		{"UnmatchedClose", "A )", 2, TokenRParen, nil},
		{"Empty", "", 0, TokenEnd, []TokenKind{TokenIdent, TokenLParen}},
		{"Blank", "   ", 3, TokenEnd, []TokenKind{TokenIdent, TokenLParen}},
		{"Trailing", "A B", 2, TokenIdent, []TokenKind{TokenOr, TokenAnd, TokenDifference, TokenEnd}},
		{"LeadingOperator", "| A", 0, TokenOr, []TokenKind{TokenIdent, TokenLParen}},
		{"EmptyParens", "()", 1, TokenRParen, []TokenKind{TokenIdent, TokenLParen}},
		{"OpenAtEnd", "someset|(", 9, TokenEnd, []TokenKind{TokenIdent, TokenLParen}},
		{"DoubleOperator", "A & & B", 4, TokenAnd, []TokenKind{TokenIdent, TokenLParen}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, root)
			assert.ErrorIs(t, err, ErrSyntax)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %T: %v", err, err)
			assert.Equal(t, tt.pos, perr.Pos)
			assert.Equal(t, tt.found, perr.Found.Kind)
			assert.Equal(t, tt.expected, perr.Expected)
		})
	}
}

func TestParse_LexErrorSurfaces(t *testing.T) {
	_, err := Parse("A $ B")
	require.Error(t, err)

	var lexErr *LexError
	require.True(t, errors.As(err, &lexErr))
	assert.Equal(t, 2, lexErr.Pos)
}

func TestParseError_Message(t *testing.T) {
	_, err := Parse("A &")
	require.Error(t, err)
	assert.Equal(t,
		`parse error at position 3: missing operand: unexpected end of input, expected identifier or "("`,
		err.Error())
}

func TestFormat(t *testing.T) {
	tests := map[string]string{
		"A":                 "A",
		"A | B & C":         "(A | (B & C))",
		"A & B | C":         "((A & B) | C)",
		"A - B - C":         "((A - B) - C)",
		"(A - B) | (C & D)": "((A - B) | (C & D))",
		"((x))":             "x",
	}

	for input, expected := range tests {
		t.Run(input, func(t *testing.T) {
			root, err := Parse(input)
			require.NoError(t, err)

			formatted := Format(root)
			assert.Equal(t, expected, formatted)

			reparsed, err := Parse(formatted)
			require.NoError(t, err)
			assert.Equal(t, root, reparsed)
		})
	}
}

func TestIdentifiers(t *testing.T) {
	root, err := Parse("(B - A) | (A & C) | B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, Identifiers(root))
}

func TestDriver(t *testing.T) {
	d := NewDriver()
	assert.Nil(t, d.Root())

	require.NoError(t, d.Parse("A & B"))
	assert.Equal(t, op(Intersection, leaf("A"), leaf("B")), d.Root())
	assert.Equal(t, "A & B", d.Query())

	// Re-parsing replaces the tree.
	require.NoError(t, d.Parse("C"))
	assert.Equal(t, leaf("C"), d.Root())

	// A failed parse leaves the driver empty.
	require.Error(t, d.Parse("C |"))
	assert.Nil(t, d.Root())
	assert.Empty(t, d.Query())
}
