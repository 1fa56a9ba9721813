package runner

import (
	"context"
	"errors"
	"testing"
	"time"
)

// collectingSink records every line it receives.
type collectingSink struct {
	lines []struct {
		stream Stream
		line   string
	}
}

func (s *collectingSink) sink(stream Stream, line string) {
	s.lines = append(s.lines, struct {
		stream Stream
		line   string
	}{stream, line})
}

func TestRunCleanExit(t *testing.T) {
	r := NewExecRunner()
	var sink collectingSink

	err := r.Run(context.Background(), Command{
		Name: "/bin/sh",
		Args: []string{"-c", "echo one; echo two"},
	}, sink.sink)
	if err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}

	if len(sink.lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(sink.lines))
	}
	if sink.lines[0].line != "one" || sink.lines[1].line != "two" {
		t.Errorf("unexpected lines: %+v", sink.lines)
	}
	for _, l := range sink.lines {
		if l.stream != StreamStdout {
			t.Errorf("expected stdout stream, got %s", l.stream)
		}
	}
}

func TestRunStderrTagged(t *testing.T) {
	r := NewExecRunner()
	var sink collectingSink

	err := r.Run(context.Background(), Command{
		Name: "/bin/sh",
		Args: []string{"-c", "echo oops >&2"},
	}, sink.sink)
	if err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}

	if len(sink.lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(sink.lines))
	}
	if sink.lines[0].stream != StreamStderr {
		t.Errorf("expected stderr stream, got %s", sink.lines[0].stream)
	}
	if sink.lines[0].line != "oops" {
		t.Errorf("unexpected line: %q", sink.lines[0].line)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	r := NewExecRunner()

	err := r.Run(context.Background(), Command{
		Name: "/bin/sh",
		Args: []string{"-c", "exit 3"},
	}, nil)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", exitErr.ExitCode)
	}
}

func TestRunSpawnFailure(t *testing.T) {
	r := NewExecRunner()

	err := r.Run(context.Background(), Command{
		Name: "/nonexistent/definitely-not-a-binary",
	}, nil)

	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %v", err)
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	r := NewExecRunner()

	start := time.Now()
	err := r.Run(context.Background(), Command{
		Name:    "/bin/sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: 200 * time.Millisecond,
	}, nil)
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if timeoutErr.Timeout != 200*time.Millisecond {
		t.Errorf("unexpected timeout in error: %s", timeoutErr.Timeout)
	}
	// The subprocess must be observably terminated: Run returns once the
	// kill lands, well before the sleep would finish on its own.
	if elapsed > 5*time.Second {
		t.Errorf("timeout did not terminate subprocess, elapsed %s", elapsed)
	}
}

func TestRunTimeoutKillsBackgroundChildren(t *testing.T) {
	r := NewExecRunner()

	start := time.Now()
	err := r.Run(context.Background(), Command{
		Name:    "/bin/sh",
		Args:    []string{"-c", "sleep 30 & sleep 30"},
		Timeout: 200 * time.Millisecond,
	}, nil)
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	// The backgrounded child inherits the output pipes; the group kill
	// must take it down too rather than letting it hold Run open until
	// it exits on its own.
	if elapsed > 2*time.Second {
		t.Errorf("timeout took %s to surface; a background child survived the kill", elapsed)
	}
}

func TestRunTimeoutNotTriggeredOnFastExit(t *testing.T) {
	r := NewExecRunner()

	err := r.Run(context.Background(), Command{
		Name:    "/bin/sh",
		Args:    []string{"-c", "echo done"},
		Timeout: 10 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}
}

func TestRunContextCancellation(t *testing.T) {
	r := NewExecRunner()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	err := r.Run(ctx, Command{
		Name: "/bin/sh",
		Args: []string{"-c", "sleep 30"},
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunStreamOrdering(t *testing.T) {
	r := NewExecRunner()
	var sink collectingSink

	err := r.Run(context.Background(), Command{
		Name: "/bin/sh",
		Args: []string{"-c", "for i in 1 2 3 4 5; do echo $i; done"},
	}, sink.sink)
	if err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}

	want := []string{"1", "2", "3", "4", "5"}
	if len(sink.lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(sink.lines))
	}
	for i, w := range want {
		if sink.lines[i].line != w {
			t.Errorf("line %d: expected %q, got %q", i, w, sink.lines[i].line)
		}
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	r := NewExecRunner()
	var sink collectingSink

	dir := t.TempDir()
	err := r.Run(context.Background(), Command{
		Name: "/bin/sh",
		Args: []string{"-c", "pwd"},
		Dir:  dir,
	}, sink.sink)
	if err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}
	if len(sink.lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(sink.lines))
	}
	// Resolve through symlinks is unnecessary here; sh's pwd prints the
	// directory it was started in.
	if sink.lines[0].line == "" {
		t.Error("expected pwd output")
	}
}
