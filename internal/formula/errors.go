package formula

import (
	"errors"
	"fmt"
)

// Code is a machine-readable failure class.
type Code string

const (
	// CodeMalformedFraction is an unbalanced or incomplete \frac.
	CodeMalformedFraction Code = "MalformedFraction"
	// CodeUnsupportedConstruct is an unrecognized macro, nested sum, chained
	// exponent or other notation outside the supported subset.
	CodeUnsupportedConstruct Code = "UnsupportedConstruct"
	// CodeSyntaxError is a canonical expression the parser cannot read.
	CodeSyntaxError Code = "SyntaxError"
	// CodeUnboundVariable is an identifier with no binding and no constant.
	CodeUnboundVariable Code = "UnboundVariable"
	// CodeUnknownFunction is a call outside the function whitelist.
	CodeUnknownFunction Code = "UnknownFunction"
	// CodeDivisionByZero is a division whose divisor evaluated to zero.
	CodeDivisionByZero Code = "DivisionByZero"
	// CodeNumericOverflow is a NaN or infinite intermediate or final value.
	CodeNumericOverflow Code = "NumericOverflow"
	// CodeResourceExhausted is a breached step, depth, size or time limit.
	CodeResourceExhausted Code = "ResourceExhausted"
)

// Codes lists every failure class in a stable order.
var Codes = []Code{
	CodeMalformedFraction,
	CodeUnsupportedConstruct,
	CodeSyntaxError,
	CodeUnboundVariable,
	CodeUnknownFunction,
	CodeDivisionByZero,
	CodeNumericOverflow,
	CodeResourceExhausted,
}

// Error is the failure type returned by every pipeline stage.
type Error struct {
	Code     Code              // Failure class
	Message  string            // Human-readable detail
	Metadata map[string]string // Values for message templating
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is comparisons.
var (
	ErrMalformedFraction    = &Error{Code: CodeMalformedFraction}
	ErrUnsupportedConstruct = &Error{Code: CodeUnsupportedConstruct}
	ErrSyntax               = &Error{Code: CodeSyntaxError}
	ErrUnboundVariable      = &Error{Code: CodeUnboundVariable}
	ErrUnknownFunction      = &Error{Code: CodeUnknownFunction}
	ErrDivisionByZero       = &Error{Code: CodeDivisionByZero}
	ErrNumericOverflow      = &Error{Code: CodeNumericOverflow}
	ErrResourceExhausted    = &Error{Code: CodeResourceExhausted}
)

func newError(code Code, meta map[string]string, format string, args ...any) *Error {
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Metadata: meta,
	}
}

func wrapError(code Code, cause error, meta map[string]string, format string, args ...any) *Error {
	e := newError(code, meta, format, args...)
	e.Cause = cause
	return e
}

// CodeOf extracts the failure class of err. Errors that did not come from
// this package report CodeUnknown.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeUnknown
}

// CodeUnknown is reported by CodeOf for foreign errors.
const CodeUnknown Code = "Unknown"

// exhausted reports a breached resource limit.
func exhausted(limit string, format string, args ...any) *Error {
	return newError(CodeResourceExhausted, map[string]string{"limit": limit}, format, args...)
}
