package publish

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/stackpilot/stackpilot/pkg/engine"
	"github.com/stackpilot/stackpilot/pkg/runner"
	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// CloudFrontInvalidator purges all paths on the edge-cache distribution
// named by a session's provisioning outputs. This is the one place in
// the system where failure is deliberately swallowed: cache staleness is
// recoverable, a failed deploy is not.
type CloudFrontInvalidator struct {
	awsBin  string
	runner  runner.Runner
	metrics *telemetry.Metrics
	log     *telemetry.Logger
}

// NewCloudFrontInvalidator creates an invalidator using the given aws
// executable. Metrics may be nil.
func NewCloudFrontInvalidator(awsBin string, r runner.Runner, metrics *telemetry.Metrics) *CloudFrontInvalidator {
	if awsBin == "" {
		awsBin = "aws"
	}
	return &CloudFrontInvalidator{
		awsBin:  awsBin,
		runner:  r,
		metrics: metrics,
		log:     telemetry.FromZerolog(log.Logger).NewComponentLogger("publish"),
	}
}

// Invalidate implements engine.Invalidator. It always returns nil: a
// missing distribution id is a logged skip, and any subprocess failure
// lands in the transcript and metrics only.
func (c *CloudFrontInvalidator) Invalidate(ctx context.Context, rec *engine.Record) error {
	tag := engine.PhaseInvalidate.Tag()

	distID, ok := rec.Output(engine.OutputKeyDistribution)
	if !ok || distID == "" {
		rec.AppendLog("[" + tag + "] no distribution id in outputs, skipping invalidation")
		c.log.WithSessionID(rec.SessionID).
			Debug("no distribution id, skipping cache invalidation")
		return nil
	}

	c.log.WithSessionID(rec.SessionID).
		WithField("distribution_id", distID).
		Info("invalidating edge cache")

	sink := func(stream runner.Stream, line string) {
		if stream == runner.StreamStderr {
			rec.AppendLog("[" + tag + " ERROR] " + line)
		} else {
			rec.AppendLog("[" + tag + "] " + line)
		}
	}

	cmd := runner.Command{
		Name: c.awsBin,
		Args: []string{"cloudfront", "create-invalidation", "--distribution-id", distID, "--paths", "/*"},
	}
	if err := c.runner.Run(ctx, cmd, sink); err != nil {
		rec.AppendLog("[" + tag + " ERROR] " + err.Error())
		c.metrics.InvalidationFailure()
		c.log.WithSessionID(rec.SessionID).
			WithField("distribution_id", distID).
			WithError(err).
			Warn("cache invalidation failed, continuing")
	}
	return nil
}
