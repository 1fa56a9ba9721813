package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stackpilot/stackpilot/pkg/runner"
)

// Phase identifies one discrete step of a deployment session. It is set
// on errors at the point of failure so callers never have to infer the
// failing step from message text.
type Phase string

const (
	// PhaseInit is the provisioning tool's workspace initialization.
	PhaseInit Phase = "init"

	// PhasePlan is the provisioning dry-run.
	PhasePlan Phase = "plan"

	// PhaseApply is resource creation. The longest-running phase; it is
	// the one bounded by the session timeout.
	PhaseApply Phase = "apply"

	// PhaseOutput reads provisioning outputs as JSON.
	PhaseOutput Phase = "output"

	// PhasePublish mirrors artifacts into the content store.
	PhasePublish Phase = "publish"

	// PhaseInvalidate purges the edge cache. Never fatal.
	PhaseInvalidate Phase = "invalidate"

	// PhaseDestroy tears down a session's resources.
	PhaseDestroy Phase = "destroy"
)

// Tag returns the transcript tag for the phase, e.g. "INIT" or "S3 SYNC".
func (p Phase) Tag() string {
	switch p {
	case PhasePublish:
		return "S3 SYNC"
	case PhaseInvalidate:
		return "CLOUDFRONT"
	default:
		return strings.ToUpper(string(p))
	}
}

// PhaseError wraps a fatal error with the phase it occurred in.
type PhaseError struct {
	// Phase is the step that failed.
	Phase Phase

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// FailedPhase returns the phase an error occurred in, if it carries one.
func FailedPhase(err error) (Phase, bool) {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase, true
	}
	return "", false
}

// OutputParseError indicates the output phase exited cleanly but its
// stdout was not the expected JSON structure.
type OutputParseError struct {
	// Err is the JSON decoding error.
	Err error
}

// Error implements the error interface.
func (e *OutputParseError) Error() string {
	return fmt.Sprintf("failed to parse provisioning outputs: %v", e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *OutputParseError) Unwrap() error {
	return e.Err
}

// TeardownError indicates the destroy operation failed.
type TeardownError struct {
	// SessionID is the session whose teardown failed.
	SessionID string

	// Err is the underlying runner error.
	Err error
}

// Error implements the error interface.
func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown of session %s failed: %v", e.SessionID, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *TeardownError) Unwrap() error {
	return e.Err
}

// ErrorClass is a coarse failure category for callers that map errors to
// user-facing guidance. Classification inspects error types only, never
// message text.
type ErrorClass string

const (
	// ErrorClassEnvironment indicates a required external tool is
	// missing or not executable on this host.
	ErrorClassEnvironment ErrorClass = "environment"

	// ErrorClassProvisioning indicates the provisioning tool ran and
	// rejected the operation (bad config, credentials, quota).
	ErrorClassProvisioning ErrorClass = "provisioning"

	// ErrorClassTimeout indicates the session exceeded its time budget.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassOutput indicates provisioning outputs were missing or
	// malformed.
	ErrorClassOutput ErrorClass = "output"

	// ErrorClassUnknown is the fallback for unclassified errors.
	ErrorClassUnknown ErrorClass = "unknown"
)

// Classify maps an engine error to its coarse failure category.
func Classify(err error) ErrorClass {
	var spawnErr *runner.SpawnError
	var exitErr *runner.ExitError
	var timeoutErr *runner.TimeoutError
	var parseErr *OutputParseError

	switch {
	case errors.As(err, &timeoutErr):
		return ErrorClassTimeout
	case errors.As(err, &parseErr):
		return ErrorClassOutput
	case errors.As(err, &spawnErr):
		return ErrorClassEnvironment
	case errors.As(err, &exitErr):
		return ErrorClassProvisioning
	default:
		return ErrorClassUnknown
	}
}
