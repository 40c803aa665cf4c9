// Package types defines the numeric value and error types shared by the
// calculator core, its storage and its transports.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// NumberType represents the type of a calculator value.
type NumberType int

const (
	TypeInt    NumberType = iota // int64
	TypeDouble                   // float64
)

// String returns the type name used in API payloads.
func (t NumberType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	default:
		return "unknown"
	}
}

// ParseNumberType is the inverse of NumberType.String.
func ParseNumberType(s string) (NumberType, bool) {
	switch s {
	case "int":
		return TypeInt, true
	case "double":
		return TypeDouble, true
	default:
		return 0, false
	}
}

// Number is either an exact integer or a fractional number. The zero value is
// the integer 0.
type Number struct {
	typ       NumberType
	intVal    int64
	doubleVal float64
}

// NewInt creates an integer value (64-bit).
func NewInt(v int64) Number {
	return Number{typ: TypeInt, intVal: v}
}

// NewDouble creates a fractional value (64-bit float).
func NewDouble(v float64) Number {
	return Number{typ: TypeDouble, doubleVal: v}
}

// Type returns the value's type.
func (n Number) Type() NumberType {
	return n.typ
}

// IsInt reports whether n holds an exact integer.
func (n Number) IsInt() bool {
	return n.typ == TypeInt
}

// AsInt returns the integer value. Panics if not an int.
func (n Number) AsInt() int64 {
	if n.typ != TypeInt {
		panic(fmt.Sprintf("AsInt called on %s value", n.typ))
	}
	return n.intVal
}

// AsDouble returns the double value. Panics if not a double.
func (n Number) AsDouble() float64 {
	if n.typ != TypeDouble {
		panic(fmt.Sprintf("AsDouble called on %s value", n.typ))
	}
	return n.doubleVal
}

// Float64 returns the value as float64 regardless of its type.
func (n Number) Float64() float64 {
	if n.typ == TypeInt {
		return float64(n.intVal)
	}
	return n.doubleVal
}

// IsZero reports whether n is exactly zero (0 or 0.0, either sign).
func (n Number) IsZero() bool {
	if n.typ == TypeInt {
		return n.intVal == 0
	}
	return n.doubleVal == 0
}

// Equal compares numerically; an int and a double are equal when they denote
// the same number.
func (n Number) Equal(other Number) bool {
	if n.typ == TypeInt && other.typ == TypeInt {
		return n.intVal == other.intVal
	}
	return n.Float64() == other.Float64()
}

// Identical is like Equal but also requires the same type, so 5 and 5.0 differ.
func (n Number) Identical(other Number) bool {
	return n.typ == other.typ && n.Equal(other)
}

// String formats the value the way the calculator prints results. Whole
// doubles keep one decimal place so that 10/2 reads as 5.0.
func (n Number) String() string {
	if n.typ == TypeInt {
		return strconv.FormatInt(n.intVal, 10)
	}
	if n.doubleVal == math.Trunc(n.doubleVal) && !math.IsInf(n.doubleVal, 0) && math.Abs(n.doubleVal) < 1e15 {
		return strconv.FormatFloat(n.doubleVal, 'f', 1, 64)
	}
	return strconv.FormatFloat(n.doubleVal, 'g', -1, 64)
}

// MarshalJSON encodes ints as JSON integers and doubles as JSON numbers.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.typ == TypeInt {
		return json.Marshal(n.intVal)
	}
	if math.IsInf(n.doubleVal, 0) || math.IsNaN(n.doubleVal) {
		return json.Marshal(n.String())
	}
	return json.Marshal(n.doubleVal)
}

// NumberFromGo converts a decoded Go value (int, int64, float64 or
// json.Number) into a Number. Integral json.Number text without a decimal
// point becomes an int.
func NumberFromGo(v interface{}) (Number, bool) {
	switch val := v.(type) {
	case int:
		return NewInt(int64(val)), true
	case int64:
		return NewInt(val), true
	case uint64:
		if val > math.MaxInt64 {
			return NewDouble(float64(val)), true
		}
		return NewInt(int64(val)), true
	case float64:
		return NewDouble(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return NewInt(i), true
		}
		if f, err := val.Float64(); err == nil {
			return NewDouble(f), true
		}
		return Number{}, false
	default:
		return Number{}, false
	}
}

// ToGoValue converts a Number to a plain Go value suitable for marshaling.
func (n Number) ToGoValue() interface{} {
	if n.typ == TypeInt {
		return n.intVal
	}
	return n.doubleVal
}
