package typesystem

import "fmt"

type UnifyErrorKind int

const (
	MismatchError UnifyErrorKind = iota
	RecursiveError
	NumericError
)

// UnifyError carries both offending types for diagnostics.
type UnifyError struct {
	Kind  UnifyErrorKind
	Left  Type
	Right Type
}

func (e *UnifyError) Error() string {
	switch e.Kind {
	case RecursiveError:
		return fmt.Sprintf("infinite type detected: %s in %s", e.Left, e.Right)
	case NumericError:
		return fmt.Sprintf("%s is not a numeric type", e.Right)
	}
	return fmt.Sprintf("cannot unify %s with %s", e.Left, e.Right)
}

func errUnify(t1, t2 Type) error {
	return &UnifyError{Kind: MismatchError, Left: t1, Right: t2}
}

func errRecursive(v, t Type) error {
	return &UnifyError{Kind: RecursiveError, Left: v, Right: t}
}

func errNotNumeric(n, t Type) error {
	return &UnifyError{Kind: NumericError, Left: n, Right: t}
}
