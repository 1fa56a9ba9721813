package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stackpilot/stackpilot/pkg/runner"
	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// DefaultApplyTimeout bounds the apply phase when no timeout is
// configured. Apply is the longest-running phase by a wide margin.
const DefaultApplyTimeout = 20 * time.Minute

// Config holds the engine's invocation settings.
type Config struct {
	// TerraformBin is the provisioning tool executable.
	TerraformBin string

	// VarFile is the variables file name inside each session workspace.
	VarFile string

	// ApplyTimeout bounds the apply phase. Zero means DefaultApplyTimeout.
	ApplyTimeout time.Duration
}

// withDefaults fills unset config fields.
func (c Config) withDefaults() Config {
	if c.TerraformBin == "" {
		c.TerraformBin = "terraform"
	}
	if c.VarFile == "" {
		c.VarFile = "terraform.tfvars"
	}
	if c.ApplyTimeout == 0 {
		c.ApplyTimeout = DefaultApplyTimeout
	}
	return c
}

// Publisher mirrors a session's artifact directory into the content store
// bucket named by the record's outputs.
type Publisher interface {
	Publish(ctx context.Context, rec *Record, artifactDir string) error
}

// Invalidator purges the edge cache distribution named by the record's
// outputs. Implementations must treat every outcome as non-fatal.
type Invalidator interface {
	Invalidate(ctx context.Context, rec *Record) error
}

// Store persists terminal deployment records. Implementations live in the
// stores package; a nil Store disables persistence.
type Store interface {
	SaveDeployment(ctx context.Context, rec *Record) error
}

// DeployRequest describes one deployment session. The workspace and
// artifact directories are prepared by the caller before Deploy runs.
type DeployRequest struct {
	// SessionID is the opaque session identifier.
	SessionID string

	// StackType selects the artifact flavor.
	StackType StackType

	// WorkspaceDir holds the provisioning configuration and var file.
	WorkspaceDir string

	// ArtifactDir holds the built files to publish.
	ArtifactDir string
}

// Validate checks the request for required fields.
func (r DeployRequest) Validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if err := r.StackType.Validate(); err != nil {
		return err
	}
	if r.WorkspaceDir == "" {
		return fmt.Errorf("workspace directory is required")
	}
	if r.ArtifactDir == "" {
		return fmt.Errorf("artifact directory is required")
	}
	return nil
}

// Engine sequences the deployment lifecycle for one session at a time:
// init, plan, apply, output, publish, invalidate. Engines are safe for
// concurrent Deploy calls as long as each call targets its own workspace.
type Engine struct {
	cfg         Config
	runner      runner.Runner
	publisher   Publisher
	invalidator Invalidator
	store       Store
	metrics     *telemetry.Metrics
	tracer      *telemetry.Tracer
	log         *telemetry.Logger
}

// NewEngine creates a deployment engine. The publisher is required for
// Deploy; invalidator, store, metrics, and tracer may be nil.
func NewEngine(
	cfg Config,
	r runner.Runner,
	publisher Publisher,
	invalidator Invalidator,
	store Store,
	metrics *telemetry.Metrics,
	tracer *telemetry.Tracer,
) *Engine {
	return &Engine{
		cfg:         cfg.withDefaults(),
		runner:      r,
		publisher:   publisher,
		invalidator: invalidator,
		store:       store,
		metrics:     metrics,
		tracer:      tracer,
		log:         telemetry.FromZerolog(log.Logger).NewComponentLogger("engine"),
	}
}

// Deploy runs the full lifecycle for one session and returns the terminal
// record. On failure the record is returned alongside the error, with the
// triggering message recorded and the duration finalized.
func (e *Engine) Deploy(ctx context.Context, req DeployRequest) (*Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rec := NewRecord(req.SessionID, req.StackType)
	rec.Status = StatusRunning
	rec.StartedAt = time.Now()

	ctx, span := e.tracer.Start(ctx, "deploy",
		telemetry.AttrSessionID.String(req.SessionID),
		telemetry.AttrStackType.String(string(req.StackType)),
	)
	defer span.End()

	e.metrics.DeployStarted()

	e.log.WithSessionID(req.SessionID).
		WithStackType(string(req.StackType)).
		WithField("workspace", req.WorkspaceDir).
		Info("starting deployment")

	steps := []struct {
		phase Phase
		run   func(context.Context) error
	}{
		{PhaseInit, func(ctx context.Context) error { return e.runInit(ctx, req.WorkspaceDir, rec) }},
		{PhasePlan, func(ctx context.Context) error { return e.runPlan(ctx, req.WorkspaceDir, rec) }},
		{PhaseApply, func(ctx context.Context) error { return e.runApply(ctx, req.WorkspaceDir, rec) }},
		{PhaseOutput, func(ctx context.Context) error { return e.runOutput(ctx, req.WorkspaceDir, rec) }},
		{PhasePublish, func(ctx context.Context) error { return e.publisher.Publish(ctx, rec, req.ArtifactDir) }},
	}
	for _, step := range steps {
		if err := e.runStep(ctx, rec, step.phase, step.run); err != nil {
			return e.fail(ctx, rec, err)
		}
	}

	// Cache invalidation is best-effort: a stale cache is recoverable, a
	// failed deploy is not. Implementations swallow their own failures;
	// the guard here only covers a misbehaving implementation.
	if e.invalidator != nil {
		if err := e.runStep(ctx, rec, PhaseInvalidate, func(ctx context.Context) error {
			return e.invalidator.Invalidate(ctx, rec)
		}); err != nil {
			e.log.WithSessionID(req.SessionID).
				WithError(err).
				Warn("cache invalidation failed")
		}
	}

	rec.Status = StatusSucceeded
	if url, ok := rec.Output(OutputKeySiteURL); ok {
		rec.SiteURL = url
	}
	rec.Duration = time.Since(rec.StartedAt)

	e.metrics.DeployCompleted(string(StatusSucceeded), rec.Duration)
	e.saveRecord(ctx, rec)

	e.log.WithSessionID(req.SessionID).
		WithField("site_url", rec.SiteURL).
		WithField("duration", rec.Duration.String()).
		Info("deployment succeeded")

	return rec, nil
}

// runStep executes one lifecycle step with a phase span and duration
// metric around it.
func (e *Engine) runStep(ctx context.Context, rec *Record, phase Phase, run func(context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, string(phase),
		telemetry.AttrSessionID.String(rec.SessionID),
		telemetry.AttrPhase.String(string(phase)),
	)
	defer span.End()

	start := time.Now()
	err := run(ctx)
	e.metrics.ObservePhase(string(phase), time.Since(start))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// fail finalizes a record for a fatal error and returns both.
func (e *Engine) fail(ctx context.Context, rec *Record, err error) (*Record, error) {
	rec.Status = StatusFailed
	rec.Errors = append(rec.Errors, err.Error())
	rec.Duration = time.Since(rec.StartedAt)

	e.metrics.DeployCompleted(string(StatusFailed), rec.Duration)
	e.saveRecord(ctx, rec)

	phase, _ := FailedPhase(err)
	e.log.WithSessionID(rec.SessionID).
		WithPhase(string(phase)).
		WithField("class", string(Classify(err))).
		WithField("duration", rec.Duration.String()).
		WithError(err).
		Error("deployment failed")

	return rec, err
}

// saveRecord persists a terminal record when a store is configured.
// Persistence failures are logged, not raised: losing history must not
// change a deployment's outcome.
func (e *Engine) saveRecord(ctx context.Context, rec *Record) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveDeployment(ctx, rec); err != nil {
		e.log.WithSessionID(rec.SessionID).
			WithError(err).
			Warn("failed to persist deployment record")
	}
}
