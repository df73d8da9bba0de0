package domain

import "errors"

// Request-scoped failure kinds. Wrap them with fmt.Errorf("%w: ...") and
// test with errors.Is; transports map each kind to a status.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("scheduling conflict")
	ErrAlreadyCanceled = errors.New("already canceled")
)

// UnprocessableError marks malformed input (missing or mistyped fields)
// as opposed to values that fail a business rule.
type UnprocessableError struct {
	Msg string
}

func (e *UnprocessableError) Error() string {
	return e.Msg
}

func (e *UnprocessableError) Unwrap() error {
	return ErrValidation
}

func Unprocessable(msg string) error {
	return &UnprocessableError{Msg: msg}
}

// IsUnprocessable reports whether err carries an UnprocessableError.
func IsUnprocessable(err error) bool {
	var target *UnprocessableError
	return errors.As(err, &target)
}
