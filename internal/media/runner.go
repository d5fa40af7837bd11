// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media wraps the external probe/mux tool (ffmpeg/ffprobe) and the
// upload tool (rclone). Every invocation runs in its own process group so
// Stop can reap the whole tree mid-flight.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clearfeed/gatekeeper/internal/metrics"
	"github.com/clearfeed/gatekeeper/internal/procgroup"
)

var (
	// ErrStopped reports that the runner was cancelled by the operator.
	ErrStopped = errors.New("media: stopped")
	// ErrTimeout reports that a tool exceeded its deadline and was killed.
	ErrTimeout = errors.New("media: command timed out")
)

// Runner executes external tools one at a time for a single task, tracking
// the live command so a concurrent Stop can kill its process group.
type Runner struct {
	mu      sync.Mutex
	current *exec.Cmd
	stopped atomic.Bool
}

// NewRunner returns a fresh runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Stopped reports whether Stop has been called.
func (r *Runner) Stopped() bool {
	return r.stopped.Load()
}

// Stop flips the cancel flag and kills the current subprocess tree, if any.
// Idempotent and safe from any goroutine.
func (r *Runner) Stop() {
	r.stopped.Store(true)
	r.mu.Lock()
	cmd := r.current
	r.mu.Unlock()
	if cmd != nil {
		metrics.SubprocessKills.Inc()
		_ = procgroup.Kill(cmd)
	}
}

// setCurrent publishes the live command for Stop. A nil clears it.
func (r *Runner) setCurrent(cmd *exec.Cmd) {
	r.mu.Lock()
	r.current = cmd
	r.mu.Unlock()
}

// Run spawns the tool, waits up to timeout and returns captured stdout.
// Stderr is discarded; Upload wires its own stderr pipe instead of going
// through here. A stopped runner returns ErrStopped without spawning.
func (r *Runner) Run(ctx context.Context, timeout time.Duration, bin string, args ...string) (string, error) {
	if r.Stopped() {
		return "", ErrStopped
	}

	cmd := exec.Command(bin, args...) // #nosec G204 -- args are built internally
	procgroup.Set(cmd)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("media: start %s: %w", bin, err)
	}
	r.setCurrent(cmd)
	defer r.setCurrent(nil)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if r.Stopped() {
			return "", ErrStopped
		}
		if err != nil {
			return stdout.String(), fmt.Errorf("media: %s: %w", bin, err)
		}
		return stdout.String(), nil
	case <-timer.C:
		_ = procgroup.Kill(cmd)
		<-done
		if r.Stopped() {
			return "", ErrStopped
		}
		return "", fmt.Errorf("%w: %s after %s", ErrTimeout, bin, timeout)
	case <-ctx.Done():
		_ = procgroup.Kill(cmd)
		<-done
		if r.Stopped() {
			return "", ErrStopped
		}
		return "", ctx.Err()
	}
}
