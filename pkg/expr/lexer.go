package expr

import (
	"strings"
	"unicode"

	"github.com/astatarinov/calc/pkg/types"
)

// Lexer tokenizes a calculator expression.
type Lexer struct {
	input  []rune
	pos    int
	tokens []Token
}

// NewLexer creates a new lexer for the given input. All whitespace is removed
// up front, so token positions refer to the stripped expression.
func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(stripSpace(input))}
}

// Tokenize scans the entire input and returns all tokens. It fails with
// UnexpectedSymbol on the first unrecognized character and with NoOperator
// when the input holds no arithmetic operator.
func (l *Lexer) Tokenize() ([]Token, error) {
	operators := 0
	for l.pos < len(l.input) {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.Type.IsOperator() {
			operators++
		}
		l.tokens = append(l.tokens, tok)
	}
	if operators == 0 {
		return nil, types.NewNoOperatorError()
	}
	return l.tokens, nil
}

// Tokenize is a shortcut for NewLexer(input).Tokenize().
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}

// next returns the next token from the input.
func (l *Lexer) next() (Token, error) {
	ch := l.input[l.pos]

	if isDigit(ch) {
		return l.readNumber(), nil
	}

	start := l.pos
	switch ch {
	case '+':
		l.pos++
		return Token{Type: TokenPlus, Value: "+", Pos: start}, nil
	case '-':
		l.pos++
		// A minus opening the expression or a group negates its operand.
		if start == 0 || l.input[start-1] == '(' {
			return Token{Type: TokenNeg, Value: negSymbol, Pos: start}, nil
		}
		return Token{Type: TokenMinus, Value: "-", Pos: start}, nil
	case '*':
		l.pos++
		return Token{Type: TokenStar, Value: "*", Pos: start}, nil
	case '/', ':':
		l.pos++
		return Token{Type: TokenSlash, Value: string(ch), Pos: start}, nil
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: start}, nil
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: start}, nil
	}

	return Token{}, types.NewUnexpectedSymbolError(ch, start)
}

// readNumber reads a run of digits containing at most one decimal point. A
// second point ends the literal and is left for next to reject.
func (l *Lexer) readNumber() Token {
	start := l.pos
	dots := 0
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if isDigit(ch) {
			l.pos++
		} else if ch == '.' && dots < 1 {
			dots++
			l.pos++
		} else {
			break
		}
	}
	return Token{Type: TokenNumber, Value: string(l.input[start:l.pos]), Pos: start}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}
