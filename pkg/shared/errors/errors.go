package errors

import (
	"errors"
	"fmt"
)

const (
	ExitCodeOK           = 0
	ExitCodeError        = 1
	ExitCodeSecretsFound = 2
)

// ErrSecretsFound is returned by the check command when the scanned changes are unsafe.
var ErrSecretsFound = errors.New("potential secrets found")

// CommandError represents an error that occurred during command execution, carrying the process exit code.
type CommandError struct {
	ExitCode    int
	CommonError string
	Err         error
}

// Error implements the error interface, returning the message from the common error.
func (e *CommandError) Error() string {
	return e.CommonError
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new CommandError instance.
func NewCommandError(err error, code int) *CommandError {
	return &CommandError{
		ExitCode:    code,
		CommonError: err.Error(),
		Err:         err,
	}
}

// NewCommandErrorf formats the message and wraps it as a CommandError with ExitCodeError.
func NewCommandErrorf(format string, args ...interface{}) *CommandError {
	return NewCommandError(fmt.Errorf(format, args...), ExitCodeError)
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeOK
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	if errors.Is(err, ErrSecretsFound) {
		return ExitCodeSecretsFound
	}
	return ExitCodeError
}
