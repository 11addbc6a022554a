package bf

import (
	"errors"
	"fmt"
)

// Kind classifies why a machine operation failed.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindOutOfMemory
	KindUnknownAddress
	KindUnboundName
	KindOutOfBounds
	KindSink
)

var kindNames = map[Kind]string{
	KindInvalidArgument: "invalid argument",
	KindOutOfMemory:     "out of memory",
	KindUnknownAddress:  "unknown address",
	KindUnboundName:     "unbound name",
	KindOutOfBounds:     "out of bounds",
	KindSink:            "sink failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrOutOfMemory     = &Error{Kind: KindOutOfMemory}
	ErrUnknownAddress  = &Error{Kind: KindUnknownAddress}
	ErrUnboundName     = &Error{Kind: KindUnboundName}
	ErrOutOfBounds     = &Error{Kind: KindOutOfBounds}
	ErrSink            = &Error{Kind: KindSink}
)

// Error is returned by every failing Machine and Allocator operation.
type Error struct {
	Kind Kind
	Op   string // operation that detected the violation
	Msg  string
	Err  error // underlying cause, only set for KindSink
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == ""
}

// KindOf extracts the Kind of err, or 0 when err is not a machine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}
