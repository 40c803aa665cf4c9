package expr

import (
	"math"
	"strconv"
	"strings"

	"github.com/astatarinov/calc/pkg/types"
)

// EvalPostfix evaluates a postfix token sequence on an operand stack.
func EvalPostfix(postfix []Token) (types.Number, error) {
	stack := make([]types.Number, 0, len(postfix))
	pop := func() (types.Number, bool) {
		if len(stack) == 0 {
			return types.Number{}, false
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top, true
	}

	for _, tok := range postfix {
		switch tok.Type {
		case TokenNumber:
			n, err := parseNumber(tok)
			if err != nil {
				return types.Number{}, err
			}
			stack = append(stack, n)

		case TokenNeg:
			x, ok := pop()
			if !ok {
				return types.Number{}, types.NewMissingOperandError(operatorName(tok), tok.Pos)
			}
			res, err := evalSub(tok, types.NewInt(0), x)
			if err != nil {
				return types.Number{}, err
			}
			stack = append(stack, res)

		case TokenPlus, TokenMinus, TokenStar, TokenSlash:
			right, ok := pop()
			if !ok {
				return types.Number{}, types.NewMissingOperandError(operatorName(tok), tok.Pos)
			}
			left, ok := pop()
			if !ok {
				return types.Number{}, types.NewMissingOperandError(operatorName(tok), tok.Pos)
			}
			res, err := evalBinary(tok, left, right)
			if err != nil {
				return types.Number{}, err
			}
			stack = append(stack, res)

		default:
			panic("expr: unexpected token in postfix sequence: " + tok.Type.String())
		}
	}

	switch len(stack) {
	case 0:
		panic("expr: empty operand stack after evaluation")
	case 1:
		return stack[0], nil
	default:
		return types.Number{}, types.NewMissingOperatorError(len(stack))
	}
}

// parseNumber casts a literal to an int, or to a double when it contains a
// decimal point.
func parseNumber(tok Token) (types.Number, error) {
	if strings.Contains(tok.Value, ".") {
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return types.Number{}, types.NewInvalidNumberError(tok.Value, tok.Pos)
		}
		return types.NewDouble(f), nil
	}
	i, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil {
		return types.Number{}, types.NewInvalidNumberError(tok.Value, tok.Pos)
	}
	return types.NewInt(i), nil
}

func evalBinary(tok Token, left, right types.Number) (types.Number, error) {
	switch tok.Type {
	case TokenPlus:
		return evalArith(tok, left, right, addInt, func(a, b float64) float64 { return a + b })
	case TokenMinus:
		return evalSub(tok, left, right)
	case TokenStar:
		return evalArith(tok, left, right, mulInt, func(a, b float64) float64 { return a * b })
	case TokenSlash:
		return evalDivide(tok, left, right)
	default:
		panic("expr: unsupported binary operator: " + tok.Type.String())
	}
}

func evalSub(tok Token, left, right types.Number) (types.Number, error) {
	return evalArith(tok, left, right, subInt, func(a, b float64) float64 { return a - b })
}

// evalArith applies intOp when both operands are ints and floatOp otherwise.
// intOp reports false on int64 overflow.
func evalArith(tok Token, left, right types.Number, intOp func(int64, int64) (int64, bool), floatOp func(float64, float64) float64) (types.Number, error) {
	if left.IsInt() && right.IsInt() {
		r, ok := intOp(left.AsInt(), right.AsInt())
		if !ok {
			return types.Number{}, types.NewOutOfRangeError(operatorName(tok), tok.Pos)
		}
		return types.NewInt(r), nil
	}
	return types.NewDouble(floatOp(left.Float64(), right.Float64())), nil
}

func evalDivide(tok Token, left, right types.Number) (types.Number, error) {
	if right.IsZero() {
		return types.Number{}, types.NewDivisionByZeroError(tok.Pos)
	}
	// Division always returns a double.
	return types.NewDouble(left.Float64() / right.Float64()), nil
}

func addInt(a, b int64) (int64, bool) {
	c := a + b
	return c, (a^c)&(b^c) >= 0
}

func subInt(a, b int64) (int64, bool) {
	c := a - b
	return c, (a^b)&(a^c) >= 0
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	return c, c/b == a
}

// operatorName is the operator text used in error messages.
func operatorName(tok Token) string {
	if tok.Type == TokenNeg {
		return "unary -"
	}
	return tok.Value
}
