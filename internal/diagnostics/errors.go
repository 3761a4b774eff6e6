package diagnostics

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/funvibe/miniml/internal/token"
)

type ErrorCode string

// Type errors raised by inference.
const (
	ErrT001 ErrorCode = "T001" // type mismatch
	ErrT002 ErrorCode = "T002" // undefined name
	ErrT003 ErrorCode = "T003" // recursive type (occurs check)
	ErrT004 ErrorCode = "T004" // match without cases
	ErrT005 ErrorCode = "T005" // numeric class violation
	ErrT006 ErrorCode = "T006" // malformed constructor use
	ErrT007 ErrorCode = "T007" // unknown host member
	ErrT008 ErrorCode = "T008" // duplicate declaration
	ErrT009 ErrorCode = "T009" // unknown module
)

// Code generation errors that are the user's fault.
const (
	ErrC001 ErrorCode = "C001" // ordering on a type without ordering
	ErrC002 ErrorCode = "C002" // missing specialization of an imported function
)

var codeTitles = map[ErrorCode]string{
	ErrT001: "type mismatch",
	ErrT002: "undefined name",
	ErrT003: "recursive type",
	ErrT004: "empty match",
	ErrT005: "not numeric",
	ErrT006: "bad constructor",
	ErrT007: "unknown host member",
	ErrT008: "duplicate declaration",
	ErrT009: "unknown module",
	ErrC001: "no ordering",
	ErrC002: "missing specialization",
}

func (c ErrorCode) Title() string {
	if t, ok := codeTitles[c]; ok {
		return t
	}
	return "error"
}

// IsTypeError reports whether the code belongs to the inference taxonomy.
func (c ErrorCode) IsTypeError() bool {
	return len(c) > 0 && c[0] == 'T'
}

// DiagnosticError is a user-facing compile error with a source location.
type DiagnosticError struct {
	Code    ErrorCode
	Pos     token.Position
	Message string
}

func NewError(code ErrorCode, pos token.Position, format string, args ...any) *DiagnosticError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &DiagnosticError{Code: code, Pos: pos, Message: msg}
}

func (e *DiagnosticError) Error() string {
	return fmt.Sprintf("%s: error %s: %s", e.Pos, e.Code, e.Message)
}

// WithPos fills in the position if the error has none yet.
func (e *DiagnosticError) WithPos(pos token.Position) *DiagnosticError {
	if !e.Pos.IsValid() {
		e.Pos = pos
	}
	return e
}

// InternalError marks a defect in the compiler itself, as opposed to a
// problem in the program being compiled.
type InternalError struct {
	cause error
}

// Internalf builds an InternalError carrying a stack trace.
func Internalf(format string, args ...any) error {
	return &InternalError{cause: errors.Errorf(format, args...)}
}

func (e *InternalError) Error() string {
	return "internal compiler error: " + e.cause.Error()
}

func (e *InternalError) Unwrap() error { return e.cause }

// Format prints the stack trace of the underlying cause with %+v.
func (e *InternalError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "internal compiler error: %+v", e.cause)
		return
	}
	fmt.Fprint(s, e.Error())
}

// IsInternal reports whether err is or wraps an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

// AsDiagnostic extracts a DiagnosticError from err.
func AsDiagnostic(err error) (*DiagnosticError, bool) {
	var de *DiagnosticError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
