// Package expr implements the calculator's expression pipeline: tokenizing,
// parenthesis validation, infix-to-postfix conversion and postfix evaluation.
package expr

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenNumber TokenType = iota // integer or decimal literal

	// Arithmetic
	TokenPlus  // +
	TokenMinus // - (binary)
	TokenStar  // *
	TokenSlash // / or :
	TokenNeg   // - (unary)

	// Grouping
	TokenLParen // (
	TokenRParen // )
)

// Token represents a single lexical token.
type Token struct {
	Type  TokenType
	Value string // raw text; "~" for unary minus
	Pos   int    // index in the whitespace-stripped expression
}

// String returns a debug-friendly representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenNumber:
		return "NUMBER"
	case TokenPlus:
		return "PLUS"
	case TokenMinus:
		return "MINUS"
	case TokenStar:
		return "STAR"
	case TokenSlash:
		return "SLASH"
	case TokenNeg:
		return "NEG"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	default:
		return "UNKNOWN"
	}
}

// IsOperator reports whether t is an arithmetic operator, unary or binary.
func (t TokenType) IsOperator() bool {
	switch t {
	case TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenNeg:
		return true
	default:
		return false
	}
}

// String returns the token's source text.
func (t Token) String() string {
	return t.Value
}

// negSymbol is the text of a unary minus token.
const negSymbol = "~"

// priorities ranks operators for the shunting-yard conversion. A left
// parenthesis ranks below every operator so that only a right parenthesis
// removes it from the stack. Right parentheses are never pushed and have no
// rank.
var priorities = map[TokenType]int{
	TokenLParen: 1,
	TokenPlus:   2,
	TokenMinus:  2,
	TokenStar:   3,
	TokenSlash:  3,
	TokenNeg:    4,
}

// Priority returns the rank of a stackable token type and whether it has one.
func Priority(t TokenType) (int, bool) {
	p, ok := priorities[t]
	return p, ok
}
