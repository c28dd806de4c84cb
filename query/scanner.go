package query

import "unicode/utf8"

// Scanner splits a query into tokens.
//
// A Scanner is not safe for concurrent use.
type Scanner struct {
	src string
	pos int
}

// NewScanner returns a Scanner reading from src.
func NewScanner(src string) *Scanner {
	return &Scanner{src: src}
}

// Next returns the next token. Once the input is exhausted it keeps returning
// a TokenEnd positioned at len(src).
func (s *Scanner) Next() (Token, error) {
	for s.pos < len(s.src) && isSpace(s.src[s.pos]) {
		s.pos++
	}

	if s.pos >= len(s.src) {
		return Token{Kind: TokenEnd, Pos: len(s.src)}, nil
	}

	start := s.pos
	c := s.src[start]

	switch c {
	case '&':
		s.pos++
		return Token{Kind: TokenAnd, Pos: start}, nil
	case '|':
		s.pos++
		return Token{Kind: TokenOr, Pos: start}, nil
	case '-':
		s.pos++
		return Token{Kind: TokenDifference, Pos: start}, nil
	case '(':
		s.pos++
		return Token{Kind: TokenLParen, Pos: start}, nil
	case ')':
		s.pos++
		return Token{Kind: TokenRParen, Pos: start}, nil
	}

	if isIdentByte(c) {
		for s.pos < len(s.src) && isIdentByte(s.src[s.pos]) {
			s.pos++
		}
		return Token{Kind: TokenIdent, Text: s.src[start:s.pos], Pos: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(s.src[start:])
	return Token{}, &LexError{Pos: start, Char: r}
}

// Tokenize scans the whole input. The returned slice always ends with a
// TokenEnd.
func Tokenize(src string) ([]Token, error) {
	s := NewScanner(src)

	var tokens []Token
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEnd {
			return tokens, nil
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
