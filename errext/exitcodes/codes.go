// Package exitcodes contains the constants representing possible foxshot exit error codes.
//
//nolint:golint
package exitcodes

// ExitCode is just a type representing a process exit code for foxshot
type ExitCode uint8

// list of exit codes used by foxshot
const (
	InvalidConfig       ExitCode = 104
	ExternalAbort       ExitCode = 105
	ConnectionFailed    ExitCode = 110
	ProtocolViolation   ExitCode = 111
	Timeout             ExitCode = 112
	FilesystemFailure   ExitCode = 113
	BrowserLaunchFailed ExitCode = 114
)
