package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astatarinov/calc/pkg/types"
)

func TestCheckParentheses(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"2+3", true},
		{"(2+3)", true},
		{"((2+3)*(4-1))", true},
		{"(2+3", false},
		{"2+3)", false},
		{"(2+3))", false},
		{"2+(3*4))+(1", false},
		{"1+)2+3(", false},
		// The first two tokens only seed the counters.
		{")(1+2", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			require.NoError(t, err)

			err = CheckParentheses(tokens)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, types.ErrMismatchedParentheses)
		})
	}
}

func TestCheckParenthesesEmpty(t *testing.T) {
	assert.NoError(t, CheckParentheses(nil))
}
