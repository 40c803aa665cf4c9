package expr

import (
	"strings"

	"github.com/astatarinov/calc/pkg/types"
)

// ToPostfix reorders validated infix tokens into postfix order using the
// shunting-yard algorithm. Operators of equal rank are folded left to right.
func ToPostfix(tokens []Token) ([]Token, error) {
	var stack []Token
	output := make([]Token, 0, len(tokens))

	for _, tok := range tokens {
		switch tok.Type {
		case TokenNumber:
			output = append(output, tok)

		case TokenLParen:
			stack = append(stack, tok)

		case TokenRParen:
			for {
				if len(stack) == 0 {
					return nil, types.NewMismatchedParenthesesError(tok.Pos)
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.Type == TokenLParen {
					break
				}
				output = append(output, top)
			}

		default:
			prio := mustPriority(tok)
			for len(stack) > 0 && mustPriority(stack[len(stack)-1]) >= prio {
				output = append(output, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, tok)
		}
	}

	for len(stack) > 0 {
		output = append(output, stack[len(stack)-1])
		stack = stack[:len(stack)-1]
	}

	return output, nil
}

func mustPriority(tok Token) int {
	p, ok := priorities[tok.Type]
	if !ok {
		panic("expr: no priority for token " + tok.Type.String())
	}
	return p
}

// FormatPostfix joins tokens with single spaces, e.g. "2 3 4 * +".
func FormatPostfix(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.Value
	}
	return strings.Join(parts, " ")
}
