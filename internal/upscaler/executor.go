package upscaler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"
)

const waitDelay = 5 * time.Second

// ExecResult holds the outcome of a single process invocation.
type ExecResult struct {
	Stderr   string
	ExitCode int // -1 when the process did not exit normally.
	TimedOut bool
	Err      error
}

// Execute runs argv with a time limit. Stderr is always captured for error
// classification and, when tee is non-nil, mirrored to it in real time.
//
// Cancellation of ctx is deliberately not forwarded: an interrupted batch
// lets the current image finish and stops before the next one. The child
// still receives terminal signals sent to the process group.
func Execute(ctx context.Context, argv []string, timeout time.Duration, tee io.Writer) ExecResult {
	runCtx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)

	var stderrBuf bytes.Buffer
	if tee != nil {
		cmd.Stderr = io.MultiWriter(&stderrBuf, tee)
	} else {
		cmd.Stderr = &stderrBuf
	}
	cmd.Stdout = io.Discard
	// Grandchildren holding stderr open must not stall Wait after a kill.
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	res := ExecResult{Stderr: stderrBuf.String(), Err: err}
	if err == nil {
		return res
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
	}
	return res
}
