package publish

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stackpilot/stackpilot/pkg/engine"
	"github.com/stackpilot/stackpilot/pkg/runner"
)

// fakeRunner records invocations and returns a scripted error.
type fakeRunner struct {
	calls []runner.Command
	emit  []string
	err   error
}

func (r *fakeRunner) Run(ctx context.Context, cmd runner.Command, sink runner.LineSink) error {
	r.calls = append(r.calls, cmd)
	for _, line := range r.emit {
		sink(runner.StreamStdout, line)
	}
	return r.err
}

func recordWithOutputs(outputs map[string]any) *engine.Record {
	rec := engine.NewRecord("sess-1", engine.StackTypeStaticSite)
	rec.Outputs = outputs
	return rec
}

func TestPublishSyncCommand(t *testing.T) {
	r := &fakeRunner{emit: []string{"upload: index.html"}}
	p := NewS3Publisher("aws", r)
	rec := recordWithOutputs(map[string]any{engine.OutputKeyBucket: "my-bucket"})

	if err := p.Publish(context.Background(), rec, "/artifacts"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r.calls) != 1 {
		t.Fatalf("expected 1 subprocess, got %d", len(r.calls))
	}
	call := r.calls[0]
	if call.Name != "aws" {
		t.Errorf("expected aws binary, got %s", call.Name)
	}
	want := []string{"s3", "sync", "/artifacts", "s3://my-bucket", "--delete"}
	if len(call.Args) != len(want) {
		t.Fatalf("expected args %v, got %v", want, call.Args)
	}
	for i := range want {
		if call.Args[i] != want[i] {
			t.Errorf("expected args %v, got %v", want, call.Args)
		}
	}

	if len(rec.Logs) != 1 || rec.Logs[0] != "[S3 SYNC] upload: index.html" {
		t.Errorf("unexpected transcript: %v", rec.Logs)
	}
}

func TestPublishMissingBucket(t *testing.T) {
	r := &fakeRunner{}
	p := NewS3Publisher("aws", r)
	rec := recordWithOutputs(map[string]any{engine.OutputKeySiteURL: "https://a.example"})

	err := p.Publish(context.Background(), rec, "/artifacts")

	var missing *MissingBucketError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingBucketError, got %v", err)
	}
	if missing.SessionID != "sess-1" {
		t.Errorf("expected session sess-1, got %s", missing.SessionID)
	}
	phase, ok := engine.FailedPhase(err)
	if !ok || phase != engine.PhasePublish {
		t.Errorf("expected publish phase, got %v", phase)
	}
	if len(r.calls) != 0 {
		t.Errorf("missing bucket must not spawn a subprocess, got %d calls", len(r.calls))
	}
}

func TestPublishSyncFailure(t *testing.T) {
	r := &fakeRunner{err: &runner.ExitError{Command: "aws", ExitCode: 1}}
	p := NewS3Publisher("", r)
	rec := recordWithOutputs(map[string]any{engine.OutputKeyBucket: "my-bucket"})

	err := p.Publish(context.Background(), rec, "/artifacts")

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected *PublishError, got %v", err)
	}
	if pubErr.Bucket != "my-bucket" {
		t.Errorf("expected bucket my-bucket, got %s", pubErr.Bucket)
	}
	var exitErr *runner.ExitError
	if !errors.As(err, &exitErr) {
		t.Errorf("expected underlying *runner.ExitError in chain, got %v", err)
	}
}

func TestInvalidateSkipsWithoutDistribution(t *testing.T) {
	r := &fakeRunner{}
	inv := NewCloudFrontInvalidator("aws", r, nil)
	rec := recordWithOutputs(map[string]any{engine.OutputKeyBucket: "my-bucket"})

	if err := inv.Invalidate(context.Background(), rec); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(r.calls) != 0 {
		t.Errorf("skip must not spawn a subprocess, got %d calls", len(r.calls))
	}
	if len(rec.Logs) != 1 || !strings.Contains(rec.Logs[0], "skipping invalidation") {
		t.Errorf("expected skip log line, got %v", rec.Logs)
	}
}

func TestInvalidateCommand(t *testing.T) {
	r := &fakeRunner{emit: []string{`{"Invalidation": {"Id": "I1"}}`}}
	inv := NewCloudFrontInvalidator("aws", r, nil)
	rec := recordWithOutputs(map[string]any{engine.OutputKeyDistribution: "E123"})

	if err := inv.Invalidate(context.Background(), rec); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	if len(r.calls) != 1 {
		t.Fatalf("expected 1 subprocess, got %d", len(r.calls))
	}
	want := []string{"cloudfront", "create-invalidation", "--distribution-id", "E123", "--paths", "/*"}
	call := r.calls[0]
	if len(call.Args) != len(want) {
		t.Fatalf("expected args %v, got %v", want, call.Args)
	}
	for i := range want {
		if call.Args[i] != want[i] {
			t.Errorf("expected args %v, got %v", want, call.Args)
		}
	}
}

func TestInvalidateFailureSwallowed(t *testing.T) {
	r := &fakeRunner{err: &runner.ExitError{Command: "aws", ExitCode: 255}}
	inv := NewCloudFrontInvalidator("aws", r, nil)
	rec := recordWithOutputs(map[string]any{engine.OutputKeyDistribution: "E123"})

	if err := inv.Invalidate(context.Background(), rec); err != nil {
		t.Fatalf("invalidation failure must be swallowed, got %v", err)
	}

	found := false
	for _, line := range rec.Logs {
		if strings.HasPrefix(line, "[CLOUDFRONT ERROR]") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected [CLOUDFRONT ERROR] line, got %v", rec.Logs)
	}
}
