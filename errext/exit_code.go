package errext

import (
	"errors"

	"github.com/liuxd6825/foxshot/errext/exitcodes"
)

// HasExitCode is a wrapper around an error with an attached exit code.
// Codes stay between 0 and 125, see exitcodes.
type HasExitCode interface {
	error
	ExitCode() exitcodes.ExitCode
}

// WithExitCodeIfNone can attach an exit code to the given error, if it doesn't
// have one already. It won't do anything if the error already had an exit code
// attached. Similarly, if there is no error (i.e. the given error is nil), it
// also won't do anything.
func WithExitCodeIfNone(err error, exitCode exitcodes.ExitCode) error {
	if err == nil {
		return nil
	}
	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		return err
	}
	return withExitCode{err, exitCode}
}

// UnknownExitCode is what the process exits with when a failure carries no
// exit code of its own.
const UnknownExitCode = -1

// ProcessExitCode maps the outcome of a command to the process exit status:
// 0 for success, the attached code when there is one, UnknownExitCode
// otherwise.
func ProcessExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		return int(ecerr.ExitCode())
	}
	return UnknownExitCode
}

type withExitCode struct {
	error
	exitCode exitcodes.ExitCode
}

func (wh withExitCode) Unwrap() error {
	return wh.error
}

func (wh withExitCode) ExitCode() exitcodes.ExitCode {
	return wh.exitCode
}

var _ HasExitCode = withExitCode{}
