package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind identifies a class of calculator failure.
type ErrorKind string

// Error kinds. Every kind except KindDivisionByZero is recoverable: the caller
// can report it and ask for another expression.
const (
	KindEmptyInput            ErrorKind = "EmptyInput"
	KindMismatchedParentheses ErrorKind = "MismatchedParentheses"
	KindUnexpectedSymbol      ErrorKind = "UnexpectedSymbol"
	KindNoOperator            ErrorKind = "NoOperator"
	KindMissingOperand        ErrorKind = "MissingOperand"
	KindMissingOperator       ErrorKind = "MissingOperator"
	KindInvalidNumber         ErrorKind = "InvalidNumber"
	KindOutOfRange            ErrorKind = "OutOfRange"
	KindDivisionByZero        ErrorKind = "DivisionByZero"
)

// Fatal reports whether errors of this kind end the current run.
func (k ErrorKind) Fatal() bool {
	return k == KindDivisionByZero
}

// CalcError is the single error type returned by the calculator core.
type CalcError struct {
	Kind    ErrorKind
	Message string
	// Symbol is the offending character for KindUnexpectedSymbol.
	Symbol rune
	// Operator is the operator missing an operand for KindMissingOperand.
	Operator string
	// Pos is the index into the whitespace-stripped expression, or -1.
	Pos int
}

// Error implements the error interface.
func (e *CalcError) Error() string {
	return e.Message
}

// Fatal reports whether the error is the fatal division-by-zero variant.
func (e *CalcError) Fatal() bool {
	return e.Kind.Fatal()
}

// Is matches any CalcError of the same kind, so the sentinels below work with
// errors.Is.
func (e *CalcError) Is(target error) bool {
	var t *CalcError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// MarshalJSON encodes the error as {"kind", "message", "fatal"} plus the
// kind-specific detail fields.
func (e *CalcError) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"kind":    e.Kind,
		"message": e.Message,
		"fatal":   e.Fatal(),
	}
	if e.Kind == KindUnexpectedSymbol {
		m["symbol"] = string(e.Symbol)
	}
	if e.Operator != "" {
		m["operator"] = e.Operator
	}
	if e.Pos >= 0 {
		m["position"] = e.Pos
	}
	return json.Marshal(m)
}

// Sentinels for errors.Is.
var (
	ErrEmptyInput            = &CalcError{Kind: KindEmptyInput}
	ErrMismatchedParentheses = &CalcError{Kind: KindMismatchedParentheses}
	ErrUnexpectedSymbol      = &CalcError{Kind: KindUnexpectedSymbol}
	ErrNoOperator            = &CalcError{Kind: KindNoOperator}
	ErrMissingOperand        = &CalcError{Kind: KindMissingOperand}
	ErrMissingOperator       = &CalcError{Kind: KindMissingOperator}
	ErrInvalidNumber         = &CalcError{Kind: KindInvalidNumber}
	ErrOutOfRange            = &CalcError{Kind: KindOutOfRange}
	ErrDivisionByZero        = &CalcError{Kind: KindDivisionByZero}
)

// IsFatal reports whether err is, or wraps, a fatal CalcError.
func IsFatal(err error) bool {
	var ce *CalcError
	return errors.As(err, &ce) && ce.Fatal()
}

// AsCalcError unwraps err into a CalcError.
func AsCalcError(err error) (*CalcError, bool) {
	var ce *CalcError
	ok := errors.As(err, &ce)
	return ce, ok
}

// Common error constructors.

// NewEmptyInputError creates an EmptyInput error.
func NewEmptyInputError() *CalcError {
	return &CalcError{Kind: KindEmptyInput, Message: "Empty input was provided.", Pos: -1}
}

// NewMismatchedParenthesesError creates a MismatchedParentheses error.
func NewMismatchedParenthesesError(pos int) *CalcError {
	return &CalcError{
		Kind:    KindMismatchedParentheses,
		Message: "Not matching parentheses were found in math expression.",
		Pos:     pos,
	}
}

// NewUnexpectedSymbolError creates an UnexpectedSymbol error for r at pos.
func NewUnexpectedSymbolError(r rune, pos int) *CalcError {
	return &CalcError{
		Kind:    KindUnexpectedSymbol,
		Message: fmt.Sprintf("Got invalid symbol: '%c'", r),
		Symbol:  r,
		Pos:     pos,
	}
}

// NewNoOperatorError creates a NoOperator error.
func NewNoOperatorError() *CalcError {
	return &CalcError{
		Kind:    KindNoOperator,
		Message: "There are no any arithmetic operators like '-' or '*'",
		Pos:     -1,
	}
}

// NewMissingOperandError creates a MissingOperand error for op at pos.
func NewMissingOperandError(op string, pos int) *CalcError {
	return &CalcError{
		Kind:     KindMissingOperand,
		Message:  fmt.Sprintf("Missing operand for operator %s", op),
		Operator: op,
		Pos:      pos,
	}
}

// NewMissingOperatorError creates a MissingOperator error; n is the number of
// values left over after evaluation.
func NewMissingOperatorError(n int) *CalcError {
	return &CalcError{
		Kind:    KindMissingOperator,
		Message: fmt.Sprintf("Missing operator between %d operands", n),
		Pos:     -1,
	}
}

// NewInvalidNumberError creates an InvalidNumber error for a literal.
func NewInvalidNumberError(literal string, pos int) *CalcError {
	return &CalcError{
		Kind:    KindInvalidNumber,
		Message: fmt.Sprintf("Cannot represent number %q", literal),
		Pos:     pos,
	}
}

// NewOutOfRangeError creates an OutOfRange error for integer overflow in op.
func NewOutOfRangeError(op string, pos int) *CalcError {
	return &CalcError{
		Kind:     KindOutOfRange,
		Message:  fmt.Sprintf("Integer overflow in operator %s", op),
		Operator: op,
		Pos:      pos,
	}
}

// NewDivisionByZeroError creates the fatal DivisionByZero error.
func NewDivisionByZeroError(pos int) *CalcError {
	return &CalcError{
		Kind:     KindDivisionByZero,
		Message:  "Division by 0 appeared in your expression.",
		Operator: "/",
		Pos:      pos,
	}
}
