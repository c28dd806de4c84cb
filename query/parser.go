package query

import "strconv"

// Parser is a recursive-descent parser for the grammar
//
//	expr   := term ( '|' term )*
//	term   := factor ( ('&' | '-') factor )*
//	factor := IDENT | '(' expr ')'
//
// A Parser consumes a single query; use Parse or a Driver for convenience.
type Parser struct {
	scanner *Scanner
	tok     Token // one-token lookahead
}

// NewParser returns a parser reading tokens from s.
func NewParser(s *Scanner) *Parser {
	return &Parser{scanner: s}
}

// Parse parses src into an AST.
func Parse(src string) (Node, error) {
	return NewParser(NewScanner(src)).Parse()
}

// Parse consumes the whole input and returns the root of the tree.
func (p *Parser) Parse() (Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.tok.Kind == TokenEnd {
		return nil, &ParseError{
			Pos:      p.tok.Pos,
			Found:    p.tok,
			Expected: []TokenKind{TokenIdent, TokenLParen},
			Msg:      "empty expression",
		}
	}

	root, err := p.expr()
	if err != nil {
		return nil, err
	}

	if p.tok.Kind != TokenEnd {
		perr := &ParseError{
			Pos:      p.tok.Pos,
			Found:    p.tok,
			Expected: []TokenKind{TokenOr, TokenAnd, TokenDifference, TokenEnd},
		}
		if p.tok.Kind == TokenRParen {
			perr.Msg = "unmatched parenthesis"
			perr.Expected = nil
		}
		return nil, perr
	}

	return root, nil
}

func (p *Parser) advance() error {
	tok, err := p.scanner.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *Parser) expr() (Node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}

	for p.tok.Kind == TokenOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &Operator{Op: Union, Left: left, Right: right}
	}

	return left, nil
}

func (p *Parser) term() (Node, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}

	for {
		var op Op
		switch p.tok.Kind {
		case TokenAnd:
			op = Intersection
		case TokenDifference:
			op = Difference
		default:
			return left, nil
		}

		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = &Operator{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) factor() (Node, error) {
	switch p.tok.Kind {
	case TokenIdent:
		leaf := &Leaf{Name: p.tok.Text}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return leaf, nil

	case TokenLParen:
		open := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.tok.Kind != TokenRParen {
			perr := &ParseError{
				Pos:      p.tok.Pos,
				Found:    p.tok,
				Expected: []TokenKind{TokenRParen},
			}
			if p.tok.Kind == TokenEnd {
				perr.Msg = "unmatched parenthesis opened at position " + strconv.Itoa(open.Pos)
			}
			return nil, perr
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil

	default:
		perr := &ParseError{
			Pos:      p.tok.Pos,
			Found:    p.tok,
			Expected: []TokenKind{TokenIdent, TokenLParen},
		}
		if p.tok.Kind == TokenEnd {
			perr.Msg = "missing operand"
		}
		return nil, perr
	}
}
