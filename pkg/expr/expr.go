package expr

import (
	"strings"

	"github.com/astatarinov/calc/pkg/types"
)

// Program is a validated expression in postfix order, ready to evaluate.
type Program struct {
	source  string
	tokens  []Token
	postfix []Token
}

// Compile tokenizes, validates and converts an expression. The returned
// program can be evaluated any number of times.
func Compile(expression string) (*Program, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, types.NewEmptyInputError()
	}

	tokens, err := Tokenize(expression)
	if err != nil {
		return nil, err
	}
	if err := CheckParentheses(tokens); err != nil {
		return nil, err
	}
	postfix, err := ToPostfix(tokens)
	if err != nil {
		return nil, err
	}

	return &Program{source: expression, tokens: tokens, postfix: postfix}, nil
}

// Eval evaluates the program.
func (p *Program) Eval() (types.Number, error) {
	return EvalPostfix(p.postfix)
}

// Source returns the expression the program was compiled from.
func (p *Program) Source() string { return p.source }

// Tokens returns a copy of the infix tokens.
func (p *Program) Tokens() []Token {
	return append([]Token(nil), p.tokens...)
}

// Postfix returns a copy of the postfix tokens.
func (p *Program) Postfix() []Token {
	return append([]Token(nil), p.postfix...)
}

// String returns the program in postfix notation.
func (p *Program) String() string {
	return FormatPostfix(p.postfix)
}

// Evaluate computes the value of an arithmetic expression. Any error is a
// *types.CalcError; use types.IsFatal to detect division by zero.
func Evaluate(expression string) (types.Number, error) {
	prog, err := Compile(expression)
	if err != nil {
		return types.Number{}, err
	}
	return prog.Eval()
}
