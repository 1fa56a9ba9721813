package stores

import (
	"time"
)

// Deployment is a persisted deployment record row.
type Deployment struct {
	// SessionID is the session identifier, unique per deployment.
	SessionID string `json:"session_id"`

	// StackType is the artifact flavor that was deployed.
	StackType string `json:"stack_type"`

	// Status is the terminal session status.
	Status string `json:"status"`

	// Outputs is the flattened provisioning output map as a JSON blob.
	Outputs string `json:"outputs"`

	// SiteURL is the deployed site URL, if provisioning emitted one.
	SiteURL *string `json:"site_url,omitempty"`

	// StartedAt is when the session began.
	StartedAt time.Time `json:"started_at"`

	// DurationMs is the session wall-clock duration in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Errors is a JSON array of failure messages; empty on success.
	Errors string `json:"errors"`

	// CreatedAt is when the row was first written.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the row was last written.
	UpdatedAt time.Time `json:"updated_at"`
}
