package validation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStats marks a rejected stat allocation
	ErrInvalidStats = errors.New("invalid stats")
	// ErrInvalidInput marks any other rejected request field
	ErrInvalidInput = errors.New("invalid input")
)

// Error carries a user-facing message and unwraps to its sentinel kind.
// The message is returned verbatim by Error().
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func invalid(kind error, format string, args ...interface{}) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}
