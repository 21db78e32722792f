// Package errext contains extensions for normal Go errors that are used in foxshot.
//
// Every failure a capture run can hit is one of a small set of tagged types,
// so callers can tell them apart with errors.As instead of matching strings.
package errext

import (
	"errors"
	"fmt"
	"time"

	"github.com/liuxd6825/foxshot/errext/exitcodes"
)

// ErrElementNotFound is wrapped by the ProtocolError returned when a
// selector lookup yields an empty result list.
var ErrElementNotFound = errors.New("no element matches the selector")

// ConnectionError is a transport level failure: refused or timed out dials,
// resets, broken pipes and unexpected end of stream.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

var (
	_ HasExitCode = &ConnectionError{}
	_ HasHint     = &ConnectionError{}
)

func (e *ConnectionError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("marionette connection %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("marionette connection %s %s: %v", e.Op, e.Addr, e.Err)
}

// Unwrap returns the underlying network error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// ExitCode returns the status code used when the process exits.
func (e *ConnectionError) ExitCode() exitcodes.ExitCode { return exitcodes.ConnectionFailed }

// Hint returns a user facing suggestion.
func (e *ConnectionError) Hint() string {
	return "the browser closed the Marionette socket or never accepted it; run with --verbose to see its output"
}

// ProtocolError is a violation of the Marionette protocol, either detected
// locally (bad handshake, malformed frame, unexpected bytes) or reported by
// the peer through a non-null error field in a response.
type ProtocolError struct {
	// Command is the command name the error belongs to. It's empty for
	// failures outside of the command/response cycle, like the handshake.
	Command string
	// Reason describes locally detected violations.
	Reason string
	// Payload is the peer's error object, verbatim.
	Payload []byte
	// Name, Message and Stacktrace are the decoded fields of Payload.
	Name       string
	Message    string
	Stacktrace string

	Err error
}

var _ HasExitCode = &ProtocolError{}

func (e *ProtocolError) Error() string {
	switch {
	case e.IsPeerError():
		return fmt.Sprintf("%s failed: %s: %s", e.Command, e.Name, e.Message)
	case e.Command != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Command, e.Reason, e.Err)
	case e.Command != "":
		return fmt.Sprintf("%s: %s", e.Command, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("marionette protocol: %s: %v", e.Reason, e.Err)
	default:
		return "marionette protocol: " + e.Reason
	}
}

// Unwrap returns the wrapped cause, if any.
func (e *ProtocolError) Unwrap() error { return e.Err }

// ExitCode returns the status code used when the process exits.
func (e *ProtocolError) ExitCode() exitcodes.ExitCode { return exitcodes.ProtocolViolation }

// IsPeerError tells whether the error was sent by the browser.
func (e *ProtocolError) IsPeerError() bool { return e.Payload != nil }

// TimeoutError is returned when a bounded wait expires.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	hint    string
}

var _ HasExitCode = &TimeoutError{}

// NewTimeoutError returns a TimeoutError for op with an optional hint.
func NewTimeoutError(op string, timeout time.Duration, hint string) *TimeoutError {
	return &TimeoutError{Op: op, Timeout: timeout, hint: hint}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// ExitCode returns the status code used when the process exits.
func (e *TimeoutError) ExitCode() exitcodes.ExitCode { return exitcodes.Timeout }

// Hint returns a user facing suggestion.
func (e *TimeoutError) Hint() string { return e.hint }

// FilesystemError wraps failures touching the profile directory or the
// capture output.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

var _ HasExitCode = &FilesystemError{}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying fs error.
func (e *FilesystemError) Unwrap() error { return e.Err }

// ExitCode returns the status code used when the process exits.
func (e *FilesystemError) ExitCode() exitcodes.ExitCode { return exitcodes.FilesystemFailure }

// InterruptError is returned when the run was stopped by a signal.
type InterruptError struct {
	Reason string
}

var _ HasExitCode = &InterruptError{}

// Error returns the reason of the interruption.
func (i *InterruptError) Error() string {
	return i.Reason
}

// ExitCode returns the status code used when the process exits.
func (i *InterruptError) ExitCode() exitcodes.ExitCode {
	return exitcodes.ExternalAbort
}

// IsInterruptError returns true if err is *InterruptError.
func IsInterruptError(err error) bool {
	if err == nil {
		return false
	}
	var intErr *InterruptError
	return errors.As(err, &intErr)
}
