package vm

import (
	"fmt"
)

// FaultKind classifies runtime faults.
type FaultKind int

const (
	FaultNonExhaustive FaultKind = iota // no match case applied
	FaultMatchFailure                   // head or tail of an empty list
	FaultDivideByZero
	FaultBadUnbox // boxed value of the wrong representation
	FaultLink     // missing module, method, field or host member
	FaultHost     // a host member failed
	FaultStackDepth
)

func (k FaultKind) String() string {
	switch k {
	case FaultNonExhaustive:
		return "non-exhaustive match"
	case FaultMatchFailure:
		return "match failure"
	case FaultDivideByZero:
		return "division by zero"
	case FaultBadUnbox:
		return "bad unbox"
	case FaultLink:
		return "link error"
	case FaultHost:
		return "host error"
	}
	return "call stack too deep"
}

// Fault is a runtime error raised by executing generated code.
type Fault struct {
	Kind   FaultKind
	Method string
	Line   int
	Msg    string
	Cause  error
}

func (f *Fault) Error() string {
	loc := f.Method
	if f.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, f.Line)
	}
	msg := f.Kind.String()
	if f.Msg != "" {
		msg += ": " + f.Msg
	}
	if loc != "" {
		return "runtime fault in " + loc + ": " + msg
	}
	return "runtime fault: " + msg
}

func (f *Fault) Unwrap() error { return f.Cause }

func faultf(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func badUnbox(r Repr, v any) *Fault {
	return faultf(FaultBadUnbox, "expected %s, got %T", r, v)
}
