package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"deckpilot/internal/logging"
)

// maxOutputBytes caps captured stdout and stderr per run.
const maxOutputBytes = 4 << 20

type processResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Killed   bool
}

// runProcess runs a backend binary in dir. Non-zero exits are reported in the
// result; the error is set only when the process could not run at all or
// was killed by ctx.
func runProcess(ctx context.Context, dir, binary string, args ...string) (*processResult, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("simulator binary %q not found: %w", binary, err)
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, max: maxOutputBytes}
	cmd.Stderr = &limitedWriter{w: &stderr, max: maxOutputBytes}

	logging.Get(logging.CategorySimulator).Debugf("exec %s %v (dir=%s)", binary, args, dir)
	start := time.Now()
	err := cmd.Run()
	res := &processResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		res.Killed = true
		return res, ctx.Err()
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("failed to run %s: %w", binary, err)
	}
	return res, nil
}

// limitedWriter stops buffering after max bytes while still accepting writes.
type limitedWriter struct {
	w       io.Writer
	max     int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	remaining := lw.max - lw.written
	if remaining <= 0 {
		return n, nil
	}
	if int64(n) > remaining {
		p = p[:remaining]
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	if err != nil {
		return written, err
	}
	return n, nil
}
