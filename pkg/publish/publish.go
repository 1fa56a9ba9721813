// Package publish mirrors deployment artifacts into the content store
// and purges the edge cache in front of it.
package publish

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/stackpilot/stackpilot/pkg/engine"
	"github.com/stackpilot/stackpilot/pkg/runner"
	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// MissingBucketError indicates publish was attempted before the
// provisioning outputs named a content store bucket. It is raised before
// any subprocess is spawned.
type MissingBucketError struct {
	// SessionID is the session whose outputs lacked a bucket.
	SessionID string
}

// Error implements the error interface.
func (e *MissingBucketError) Error() string {
	return fmt.Sprintf("session %s outputs have no %s; cannot publish", e.SessionID, engine.OutputKeyBucket)
}

// PublishError indicates the sync tool failed to mirror artifacts into
// the bucket.
type PublishError struct {
	// Bucket is the destination bucket.
	Bucket string

	// Err is the underlying runner error.
	Err error
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish artifacts to %s: %v", e.Bucket, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *PublishError) Unwrap() error {
	return e.Err
}

// S3Publisher mirrors a local artifact directory into an S3 bucket via
// the aws CLI. The destination ends up as an exact mirror of the source:
// the sync runs with --delete.
type S3Publisher struct {
	awsBin string
	runner runner.Runner
	log    *telemetry.Logger
}

// NewS3Publisher creates a publisher using the given aws executable.
func NewS3Publisher(awsBin string, r runner.Runner) *S3Publisher {
	if awsBin == "" {
		awsBin = "aws"
	}
	return &S3Publisher{
		awsBin: awsBin,
		runner: r,
		log:    telemetry.FromZerolog(log.Logger).NewComponentLogger("publish"),
	}
}

// Publish implements engine.Publisher. The bucket comes from the
// record's provisioning outputs; its absence fails fast without spawning
// a subprocess. Both stack types share this implementation; the stack
// type only decides what the caller put in the artifact directory.
func (p *S3Publisher) Publish(ctx context.Context, rec *engine.Record, artifactDir string) error {
	bucket, ok := rec.Output(engine.OutputKeyBucket)
	if !ok || bucket == "" {
		return &engine.PhaseError{
			Phase: engine.PhasePublish,
			Err:   &MissingBucketError{SessionID: rec.SessionID},
		}
	}

	p.log.WithSessionID(rec.SessionID).
		WithField("bucket", bucket).
		WithField("artifact_dir", artifactDir).
		Info("publishing artifacts")

	tag := engine.PhasePublish.Tag()
	sink := func(stream runner.Stream, line string) {
		if stream == runner.StreamStderr {
			rec.AppendLog("[" + tag + " ERROR] " + line)
		} else {
			rec.AppendLog("[" + tag + "] " + line)
		}
	}

	cmd := runner.Command{
		Name: p.awsBin,
		Args: []string{"s3", "sync", artifactDir, "s3://" + bucket, "--delete"},
	}
	if err := p.runner.Run(ctx, cmd, sink); err != nil {
		return &engine.PhaseError{
			Phase: engine.PhasePublish,
			Err:   &PublishError{Bucket: bucket, Err: err},
		}
	}
	return nil
}
