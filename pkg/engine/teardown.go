package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/stackpilot/stackpilot/pkg/runner"
	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// DestroyRequest describes a teardown of one session's resources.
type DestroyRequest struct {
	// SessionID is the session whose resources are destroyed.
	SessionID string

	// WorkspaceDir holds the provisioning configuration and var file.
	WorkspaceDir string

	// Timeout optionally bounds the destroy subprocess. Zero means
	// unbounded; teardown is a single phase, so there is no session
	// timeout to inherit.
	Timeout time.Duration
}

// Destroy tears down all resources for a session's workspace with one
// auto-approved destroy run. No partial-teardown recovery is attempted.
// The returned record carries the transcript either way.
func (e *Engine) Destroy(ctx context.Context, req DestroyRequest) (*Record, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if req.WorkspaceDir == "" {
		return nil, fmt.Errorf("workspace directory is required")
	}

	rec := NewRecord(req.SessionID, "")
	rec.Status = StatusRunning
	rec.StartedAt = time.Now()

	ctx, span := e.tracer.Start(ctx, "destroy",
		telemetry.AttrSessionID.String(req.SessionID),
	)
	defer span.End()

	e.log.WithSessionID(req.SessionID).
		WithField("workspace", req.WorkspaceDir).
		Info("starting teardown")

	cmd := runner.Command{
		Name:    e.cfg.TerraformBin,
		Args:    []string{"destroy", "-auto-approve", "-var-file=" + e.cfg.VarFile},
		Dir:     req.WorkspaceDir,
		Timeout: req.Timeout,
	}

	start := time.Now()
	err := e.runner.Run(ctx, cmd, phaseSink(rec, PhaseDestroy))
	e.metrics.ObservePhase(string(PhaseDestroy), time.Since(start))

	if err != nil {
		terr := &PhaseError{Phase: PhaseDestroy, Err: &TeardownError{SessionID: req.SessionID, Err: err}}
		span.RecordError(terr)
		rec.Status = StatusFailed
		rec.Errors = append(rec.Errors, terr.Error())
		rec.Duration = time.Since(rec.StartedAt)
		e.saveRecord(ctx, rec)
		e.log.WithSessionID(req.SessionID).
			WithField("duration", rec.Duration.String()).
			WithError(terr).
			Error("teardown failed")
		return rec, terr
	}

	rec.Status = StatusSucceeded
	rec.Duration = time.Since(rec.StartedAt)
	e.saveRecord(ctx, rec)

	e.log.WithSessionID(req.SessionID).
		WithField("duration", rec.Duration.String()).
		Info("teardown succeeded")

	return rec, nil
}
