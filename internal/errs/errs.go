// Package errs defines the three error kinds both sketches raise:
// InvalidArgument for bad caller input (including a binary image whose
// fields are corrupt), LogicError for an invariant the sketch itself should
// never violate, and Truncated for a binary image or string that is shorter
// than its contents require. Callers branch on kind with
// errors.As rather than parsing message text.
package errs

import "fmt"

type Kind int

const (
	InvalidArgument Kind = iota
	LogicError
	Truncated
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case LogicError:
		return "logic error"
	case Truncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with a formatted message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func InvalidArgumentf(format string, args ...any) error {
	return New(InvalidArgument, format, args...)
}

func LogicErrorf(format string, args ...any) error {
	return New(LogicError, format, args...)
}

func Truncatedf(format string, args ...any) error {
	return New(Truncated, format, args...)
}
