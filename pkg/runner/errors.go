package runner

import (
	"fmt"
	"time"
)

// SpawnError indicates the external binary could not be started, for
// example because it is missing from PATH or not executable.
type SpawnError struct {
	// Command is the executable that failed to start.
	Command string

	// Err is the underlying error from the operating system.
	Err error
}

// Error implements the error interface.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError indicates the external tool ran to completion but returned a
// non-zero exit code.
type ExitError struct {
	// Command is the executable that failed.
	Command string

	// ExitCode is the subprocess exit code.
	ExitCode int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}

// TimeoutError indicates the subprocess exceeded its time budget and was
// force-killed.
type TimeoutError struct {
	// Command is the executable that was killed.
	Command string

	// Timeout is the budget that was exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Command, e.Timeout)
}
