// Package runner executes external commands and streams their output
// line-by-line to a caller-supplied sink.
package runner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Stream identifies which output stream a line arrived on.
type Stream string

const (
	// StreamStdout is the subprocess standard output stream.
	StreamStdout Stream = "stdout"

	// StreamStderr is the subprocess standard error stream.
	StreamStderr Stream = "stderr"
)

// LineSink receives one line of subprocess output at a time, tagged by
// stream. The runner serializes calls to the sink, so implementations do
// not need to be goroutine-safe. Lines within a stream arrive in emission
// order; no relative order is guaranteed between the two streams.
type LineSink func(stream Stream, line string)

// Command describes one external command invocation.
type Command struct {
	// Name is the executable to run.
	Name string

	// Args are the command arguments, not including the executable name.
	Args []string

	// Dir is the working directory. Empty means the calling process's
	// working directory.
	Dir string

	// Env is additional environment, appended to the parent environment.
	Env []string

	// Timeout, when positive, bounds the subprocess wall-clock runtime.
	// On expiry the whole process group is force-killed and Run returns
	// a *TimeoutError. The timer starts at spawn and is cancelled when
	// the process exits naturally.
	Timeout time.Duration
}

// Runner executes a command to completion, forwarding each output line to
// the sink as it arrives.
type Runner interface {
	// Run returns nil on exit code 0. It returns *SpawnError if the
	// process could not be started, *ExitError on a non-zero exit, and
	// *TimeoutError if cmd.Timeout elapsed first. The sink may be nil.
	Run(ctx context.Context, cmd Command, sink LineSink) error
}

// ExecRunner runs commands locally via os/exec.
type ExecRunner struct{}

// NewExecRunner creates a local process runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command, sink LineSink) error {
	start := time.Now()

	log.Debug().
		Str("command", cmd.Name).
		Strs("args", cmd.Args).
		Str("dir", cmd.Dir).
		Dur("timeout", cmd.Timeout).
		Msg("starting subprocess")

	proc := exec.Command(cmd.Name, cmd.Args...)
	proc.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		proc.Env = append(proc.Environ(), cmd.Env...)
	}
	// Own process group, so a kill reaches children of wrapper scripts
	// that inherited the output pipes.
	proc.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := proc.StdoutPipe()
	if err != nil {
		return &SpawnError{Command: cmd.Name, Err: err}
	}
	stderr, err := proc.StderrPipe()
	if err != nil {
		return &SpawnError{Command: cmd.Name, Err: err}
	}

	if err := proc.Start(); err != nil {
		return &SpawnError{Command: cmd.Name, Err: err}
	}

	// One goroutine per stream; a shared mutex serializes sink calls so
	// the sink sees at most one line at a time.
	var sinkMu sync.Mutex
	var wg sync.WaitGroup
	forward := func(stream Stream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if sink == nil {
				continue
			}
			sinkMu.Lock()
			sink(stream, scanner.Text())
			sinkMu.Unlock()
		}
	}
	wg.Add(2)
	go forward(StreamStdout, stdout)
	go forward(StreamStderr, stderr)

	// Wait must not be called before both pipes are drained.
	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- proc.Wait()
	}()

	var timeoutCh <-chan time.Time
	if cmd.Timeout > 0 {
		timer := time.NewTimer(cmd.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var waitErr error
	select {
	case waitErr = <-done:
	case <-timeoutCh:
		killGroup(proc)
		awaitKill(done)
		log.Warn().
			Str("command", cmd.Name).
			Dur("timeout", cmd.Timeout).
			Msg("subprocess killed after timeout")
		return &TimeoutError{Command: cmd.Name, Timeout: cmd.Timeout}
	case <-ctx.Done():
		killGroup(proc)
		awaitKill(done)
		return ctx.Err()
	}

	log.Debug().
		Str("command", cmd.Name).
		Dur("duration", time.Since(start)).
		Msg("subprocess finished")

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &ExitError{Command: cmd.Name, ExitCode: exitErr.ExitCode()}
		}
		return &SpawnError{Command: cmd.Name, Err: waitErr}
	}
	return nil
}

// killGroup terminates the subprocess and everything it spawned.
func killGroup(proc *exec.Cmd) {
	if proc.Process == nil {
		return
	}
	if err := syscall.Kill(-proc.Process.Pid, syscall.SIGKILL); err != nil {
		_ = proc.Process.Kill()
	}
}

// awaitKill drains the exit of a killed process. The group kill closes
// every pipe writer, so this normally returns at once; the bound covers
// a descendant that moved itself into another group while keeping the
// pipes open.
func awaitKill(done <-chan error) {
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}
