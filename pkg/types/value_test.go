package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberString(t *testing.T) {
	tests := []struct {
		name string
		n    Number
		want string
	}{
		{"int", NewInt(14), "14"},
		{"negative int", NewInt(-2), "-2"},
		{"whole double", NewDouble(5), "5.0"},
		{"negative whole double", NewDouble(-4), "-4.0"},
		{"fraction", NewDouble(2.5), "2.5"},
		{"repeating", NewDouble(1.0 / 3.0), "0.3333333333333333"},
		{"large double", NewDouble(1e20), "1e+20"},
		{"infinity", NewDouble(math.Inf(1)), "+Inf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.n.String())
		})
	}
}

func TestNumberEquality(t *testing.T) {
	assert.True(t, NewInt(5).Equal(NewDouble(5)))
	assert.False(t, NewInt(5).Identical(NewDouble(5)))
	assert.True(t, NewDouble(2.5).Identical(NewDouble(2.5)))
	assert.False(t, NewInt(5).Equal(NewInt(6)))
	assert.True(t, Number{}.Identical(NewInt(0)))
}

func TestNumberIsZero(t *testing.T) {
	assert.True(t, NewInt(0).IsZero())
	assert.True(t, NewDouble(0).IsZero())
	assert.True(t, NewDouble(math.Copysign(0, -1)).IsZero())
	assert.False(t, NewDouble(1e-300).IsZero())
}

func TestNumberAccessorsPanicOnWrongType(t *testing.T) {
	assert.Panics(t, func() { NewDouble(1).AsInt() })
	assert.Panics(t, func() { NewInt(1).AsDouble() })
	assert.Equal(t, 3.0, NewInt(3).Float64())
}

func TestNumberMarshalJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Number{"i": NewInt(7), "d": NewDouble(2.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"i": 7, "d": 2.5}`, string(data))
}

func TestNumberFromGo(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want Number
		ok   bool
	}{
		{"int", 3, NewInt(3), true},
		{"int64", int64(-9), NewInt(-9), true},
		{"float64", 2.5, NewDouble(2.5), true},
		{"json int", json.Number("12"), NewInt(12), true},
		{"json float", json.Number("1.5"), NewDouble(1.5), true},
		{"string", "12", Number{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NumberFromGo(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Identical(tt.want), "got %v", got)
				assert.Equal(t, got.ToGoValue(), tt.want.ToGoValue())
			}
		})
	}
}

func TestParseNumberType(t *testing.T) {
	for _, typ := range []NumberType{TypeInt, TypeDouble} {
		got, ok := ParseNumberType(typ.String())
		assert.True(t, ok)
		assert.Equal(t, typ, got)
	}
	_, ok := ParseNumberType("string")
	assert.False(t, ok)
}
