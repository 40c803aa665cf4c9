package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcErrorIs(t *testing.T) {
	err := fmt.Errorf("evaluating: %w", NewDivisionByZeroError(3))

	assert.True(t, errors.Is(err, ErrDivisionByZero))
	assert.False(t, errors.Is(err, ErrMissingOperand))
	assert.True(t, IsFatal(err))

	ce, ok := AsCalcError(err)
	require.True(t, ok)
	assert.Equal(t, 3, ce.Pos)
}

func TestOnlyDivisionByZeroIsFatal(t *testing.T) {
	kinds := []ErrorKind{
		KindEmptyInput, KindMismatchedParentheses, KindUnexpectedSymbol,
		KindNoOperator, KindMissingOperand, KindMissingOperator,
		KindInvalidNumber, KindOutOfRange,
	}
	for _, k := range kinds {
		assert.False(t, k.Fatal(), "%s", k)
	}
	assert.True(t, KindDivisionByZero.Fatal())
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestCalcErrorMessages(t *testing.T) {
	tests := []struct {
		err  *CalcError
		want string
	}{
		{NewEmptyInputError(), "Empty input was provided."},
		{NewMismatchedParenthesesError(-1), "Not matching parentheses were found in math expression."},
		{NewUnexpectedSymbolError('^', 1), "Got invalid symbol: '^'"},
		{NewNoOperatorError(), "There are no any arithmetic operators like '-' or '*'"},
		{NewMissingOperandError("*", 0), "Missing operand for operator *"},
		{NewMissingOperatorError(2), "Missing operator between 2 operands"},
		{NewDivisionByZeroError(1), "Division by 0 appeared in your expression."},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestCalcErrorMarshalJSON(t *testing.T) {
	data, err := json.Marshal(NewUnexpectedSymbolError('^', 1))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "UnexpectedSymbol",
		"message": "Got invalid symbol: '^'",
		"fatal": false,
		"symbol": "^",
		"position": 1
	}`, string(data))

	data, err = json.Marshal(NewEmptyInputError())
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind": "EmptyInput", "message": "Empty input was provided.", "fatal": false}`, string(data))
}
