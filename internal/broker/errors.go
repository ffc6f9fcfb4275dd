package broker

import "errors"

// RecoverableError marks an analyzer failure the broker logs and skips,
// continuing with the next analyzer (spec section 7).
type RecoverableError struct{ Err error }

func (e *RecoverableError) Error() string { return e.Err.Error() }
func (e *RecoverableError) Unwrap() error { return e.Err }

func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &RecoverableError{Err: err}
}

// FatalError marks a failure that aborts the remaining run loop but
// still proceeds to finalize with FAILED (spec section 7): internal
// contract violations, invalid analyzer wiring, required-input decode
// errors, and trigger failures (package fetch/install/remove/purge,
// archive extraction, bad package-fetch directory contents).
type FatalError struct{ Err error }

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

func IsRecoverable(err error) bool {
	var re *RecoverableError
	return errors.As(err, &re)
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
