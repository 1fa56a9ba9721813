package engine

import (
	"fmt"
	"time"
)

// StackType identifies what kind of artifact a session deploys. It selects
// which artifact directory the caller prepares; the publish step itself is
// identical for all stack types.
type StackType string

const (
	// StackTypeStaticSite is a plain static site (HTML/CSS/JS as-is).
	StackTypeStaticSite StackType = "static-site"

	// StackTypeReactApp is a React application with a prebuilt bundle.
	StackTypeReactApp StackType = "react-app"
)

// Validate checks if the stack type is known.
func (s StackType) Validate() error {
	switch s {
	case StackTypeStaticSite, StackTypeReactApp:
		return nil
	default:
		return fmt.Errorf("invalid stack type: %s", s)
	}
}

// DeployStatus represents the overall status of a deployment session.
type DeployStatus string

const (
	// StatusPending indicates the session has been created but not started.
	StatusPending DeployStatus = "pending"

	// StatusRunning indicates the session is currently executing.
	StatusRunning DeployStatus = "running"

	// StatusSucceeded indicates every step completed successfully.
	StatusSucceeded DeployStatus = "succeeded"

	// StatusFailed indicates a fatal error aborted the session.
	StatusFailed DeployStatus = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s DeployStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Well-known provisioning output keys the engine itself consumes. The full
// key set is defined by the workspace configuration, not the engine.
const (
	// OutputKeySiteURL is the public URL of the deployed site.
	OutputKeySiteURL = "site_url"

	// OutputKeyBucket is the content store bucket artifacts are synced to.
	OutputKeyBucket = "s3_bucket_name"

	// OutputKeyDistribution is the edge-cache distribution to invalidate.
	OutputKeyDistribution = "cloudfront_distribution_id"
)

// Record accumulates the state and outcome of one deployment session. It
// is owned by the single goroutine driving the session and must not be
// shared across sessions.
type Record struct {
	// SessionID is the caller-supplied correlation and workspace key.
	SessionID string `json:"session_id"`

	// StackType selects the artifact flavor being deployed.
	StackType StackType `json:"stack_type"`

	// Status is the session status. Success is known only once the
	// status is terminal.
	Status DeployStatus `json:"status"`

	// Outputs is the flattened provisioning output map, populated
	// wholesale by the output phase.
	Outputs map[string]any `json:"outputs,omitempty"`

	// SiteURL is outputs["site_url"] when present, for convenience.
	SiteURL string `json:"site_url,omitempty"`

	// StartedAt is when the init phase began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall-clock time from init start to completion or
	// failure. Always set on a terminal record.
	Duration time.Duration `json:"duration"`

	// Logs is the ordered transcript of tagged subprocess output lines
	// across all phases, e.g. "[APPLY] Creating bucket...".
	Logs []string `json:"logs"`

	// Errors holds the failure messages; empty on success.
	Errors []string `json:"errors"`
}

// NewRecord creates a pending record for a session.
func NewRecord(sessionID string, stackType StackType) *Record {
	return &Record{
		SessionID: sessionID,
		StackType: stackType,
		Status:    StatusPending,
		Logs:      make([]string, 0),
		Errors:    make([]string, 0),
	}
}

// AppendLog appends one tagged line to the transcript.
func (r *Record) AppendLog(line string) {
	r.Logs = append(r.Logs, line)
}

// Output returns a named provisioning output as a string. The second
// return is false when the key is absent or not a string.
func (r *Record) Output(key string) (string, bool) {
	v, ok := r.Outputs[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Succeeded reports whether the session completed successfully.
func (r *Record) Succeeded() bool {
	return r.Status == StatusSucceeded
}
