package cmd

import (
	"errors"
	"fmt"
)

// exitCodeError carries a process exit code alongside the message shown
// to the operator.
type exitCodeError struct {
	code int
	msg  string
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

// exitError wraps a command failure with a foundry exit code.
func exitError[C ~int](code C, msg string, err error) error {
	return &exitCodeError{code: int(code), msg: msg, err: err}
}

// exitCodeOf extracts the exit code from a command error, defaulting to 1.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	return 1
}
