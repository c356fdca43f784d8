package election

import "fmt"

// NotFoundError marks an error as "the referenced election does not
// exist", for HTTP-status mapping in httpapi (404).
type NotFoundError struct {
	err error
}

func (e NotFoundError) Error() string { return e.err.Error() }
func (e NotFoundError) Unwrap() error { return e.err }
func (e NotFoundError) Type() string  { return "not_found" }
func (NotFoundError) NotFound()       {}

func notFoundf(format string, a ...any) error {
	return NotFoundError{err: fmt.Errorf(format, a...)}
}

// AlreadyStoppedError marks an error as "intake is closed for this
// election", for HTTP-status mapping (409 Conflict).
type AlreadyStoppedError struct {
	err error
}

func (e AlreadyStoppedError) Error() string { return e.err.Error() }
func (e AlreadyStoppedError) Unwrap() error { return e.err }
func (e AlreadyStoppedError) Type() string  { return "already_stopped" }
func (AlreadyStoppedError) AlreadyStopped() {}

func alreadyStoppedf(format string, a ...any) error {
	return AlreadyStoppedError{err: fmt.Errorf(format, a...)}
}

// TooManyBallotsError marks an error as "the election's MaxBallots cap
// has been reached", for HTTP-status mapping (429 Too Many Requests).
type TooManyBallotsError struct {
	err error
}

func (e TooManyBallotsError) Error() string { return e.err.Error() }
func (e TooManyBallotsError) Unwrap() error { return e.err }
func (e TooManyBallotsError) Type() string  { return "too_many_ballots" }
func (TooManyBallotsError) TooManyBallots() {}

func tooManyBallotsf(format string, a ...any) error {
	return TooManyBallotsError{err: fmt.Errorf(format, a...)}
}

// ValidationError marks an error as "the caller's input was malformed",
// for HTTP-status mapping (400 Bad Request).
type ValidationError struct {
	err error
}

func (e ValidationError) Error() string { return e.err.Error() }
func (e ValidationError) Unwrap() error { return e.err }
func (e ValidationError) Type() string  { return "invalid_input" }
func (ValidationError) Invalid()        {}

func validationf(format string, a ...any) error {
	return ValidationError{err: fmt.Errorf(format, a...)}
}
