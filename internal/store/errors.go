package store

import "errors"

// Error marks a persistence failure: the store was unreachable or a query
// failed. Handlers map it to 500.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err as a store failure of op. Nil stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// IsError reports whether err is, or wraps, a store failure.
func IsError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
