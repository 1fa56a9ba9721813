package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stackpilot/stackpilot/pkg/runner"
)

// phaseSink returns a line sink that tags subprocess output with the
// phase and appends it to the record transcript. Stderr lines get the
// ERROR variant of the tag.
func phaseSink(rec *Record, phase Phase) runner.LineSink {
	tag := phase.Tag()
	return func(stream runner.Stream, line string) {
		if stream == runner.StreamStderr {
			rec.AppendLog("[" + tag + " ERROR] " + line)
		} else {
			rec.AppendLog("[" + tag + "] " + line)
		}
	}
}

// runInit executes the provisioning tool's workspace initialization.
func (e *Engine) runInit(ctx context.Context, workspaceDir string, rec *Record) error {
	cmd := runner.Command{
		Name: e.cfg.TerraformBin,
		Args: []string{"init"},
		Dir:  workspaceDir,
	}
	if err := e.runner.Run(ctx, cmd, phaseSink(rec, PhaseInit)); err != nil {
		return &PhaseError{Phase: PhaseInit, Err: err}
	}
	return nil
}

// runPlan executes the provisioning dry-run against the session var file.
func (e *Engine) runPlan(ctx context.Context, workspaceDir string, rec *Record) error {
	cmd := runner.Command{
		Name: e.cfg.TerraformBin,
		Args: []string{"plan", "-var-file=" + e.cfg.VarFile},
		Dir:  workspaceDir,
	}
	if err := e.runner.Run(ctx, cmd, phaseSink(rec, PhasePlan)); err != nil {
		return &PhaseError{Phase: PhasePlan, Err: err}
	}
	return nil
}

// runApply executes resource creation. This is the only phase bounded by
// the session timeout; on expiry the subprocess is force-killed and the
// session fails.
func (e *Engine) runApply(ctx context.Context, workspaceDir string, rec *Record) error {
	cmd := runner.Command{
		Name:    e.cfg.TerraformBin,
		Args:    []string{"apply", "-auto-approve", "-var-file=" + e.cfg.VarFile},
		Dir:     workspaceDir,
		Timeout: e.cfg.ApplyTimeout,
	}
	if err := e.runner.Run(ctx, cmd, phaseSink(rec, PhaseApply)); err != nil {
		return &PhaseError{Phase: PhaseApply, Err: err}
	}
	return nil
}

// runOutput reads provisioning outputs as JSON and flattens the
// {key: {value: V}} structure into the record's output map. Stdout is
// buffered for parsing rather than logged line-by-line; stderr still
// lands in the transcript.
func (e *Engine) runOutput(ctx context.Context, workspaceDir string, rec *Record) error {
	var stdout strings.Builder
	sink := func(stream runner.Stream, line string) {
		if stream == runner.StreamStdout {
			stdout.WriteString(line)
			stdout.WriteByte('\n')
			return
		}
		rec.AppendLog("[" + PhaseOutput.Tag() + " ERROR] " + line)
	}

	cmd := runner.Command{
		Name: e.cfg.TerraformBin,
		Args: []string{"output", "-json"},
		Dir:  workspaceDir,
	}
	if err := e.runner.Run(ctx, cmd, sink); err != nil {
		return &PhaseError{Phase: PhaseOutput, Err: err}
	}

	outputs, err := flattenOutputs([]byte(stdout.String()))
	if err != nil {
		return &PhaseError{Phase: PhaseOutput, Err: &OutputParseError{Err: err}}
	}
	rec.Outputs = outputs
	return nil
}

// flattenOutputs decodes provisioning-tool output JSON and strips the
// per-key wrapper, keeping only the value.
func flattenOutputs(data []byte) (map[string]any, error) {
	var raw map[string]struct {
		Value any `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	flat := make(map[string]any, len(raw))
	for key, wrapped := range raw {
		flat[key] = wrapped.Value
	}
	return flat, nil
}
