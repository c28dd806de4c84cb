package query

import "strconv"

// TokenKind identifies the lexical class of a Token.
type TokenKind uint8

const (
	// TokenEnd marks the end of the input.
	TokenEnd TokenKind = iota
	// TokenIdent is a set name.
	TokenIdent
	// TokenAnd is the intersection operator "&".
	TokenAnd
	// TokenOr is the union operator "|".
	TokenOr
	// TokenDifference is the difference operator "-".
	TokenDifference
	// TokenLParen is "(".
	TokenLParen
	// TokenRParen is ")".
	TokenRParen
)

var tokenNames = [...]string{
	TokenEnd:        "end of input",
	TokenIdent:      "identifier",
	TokenAnd:        `"&"`,
	TokenOr:         `"|"`,
	TokenDifference: `"-"`,
	TokenLParen:     `"("`,
	TokenRParen:     `")"`,
}

func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return "TokenKind(" + strconv.Itoa(int(k)) + ")"
}

// Token is a lexical unit of a query.
type Token struct {
	Kind TokenKind
	// Text holds the set name for TokenIdent and is empty otherwise.
	Text string
	// Pos is the byte offset of the token in the query.
	Pos int
}

func (t Token) String() string {
	if t.Kind == TokenIdent {
		return strconv.Quote(t.Text)
	}
	return t.Kind.String()
}
