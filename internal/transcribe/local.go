// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcribe

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/clearfeed/gatekeeper/internal/media"
	"golang.org/x/sync/semaphore"
)

// inferenceSlot is the process-wide single-holder lock: at most one local
// inference anywhere in the daemon, because the model pins several GiB.
// Held only for one segment, never across segments, so other tasks keep
// making cloud progress while one task is pinned to local.
var inferenceSlot = semaphore.NewWeighted(1)

// LocalEngine shells out to a whisper.cpp style CLI with an on-disk model.
// Running the model as a one-shot subprocess is the release-on-every-use
// policy: the OS reclaims every byte when the process exits, trading
// latency for steady-state RSS.
type LocalEngine struct {
	Bin   string
	Model string
}

// NewLocalEngine returns nil when no model is configured, which disables
// the local tier entirely.
func NewLocalEngine(bin, model string) *LocalEngine {
	if bin == "" || model == "" {
		return nil
	}
	if _, err := os.Stat(model); err != nil {
		return nil
	}
	return &LocalEngine{Bin: bin, Model: model}
}

// Transcribe acquires the inference slot, runs the engine on one wav and
// returns its stdout transcript. The runner owns the subprocess so a task
// cancel kills the engine mid-inference; the slot is released on every
// exit path.
func (e *LocalEngine) Transcribe(ctx context.Context, runner *media.Runner, wavPath string, logf func(string)) (string, error) {
	if logf != nil {
		logf("⏳ 等待本地模型资源锁...")
	}
	if err := inferenceSlot.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: %v", ErrLocalFailed, err)
	}
	defer func() {
		inferenceSlot.Release(1)
		// Return whatever the scan buffered to the kernel and trim the page
		// cache the model file left behind.
		debug.FreeOSMemory()
		dropCaches()
	}()

	if runner.Stopped() {
		return "", media.ErrStopped
	}
	if logf != nil {
		logf("🔒 获得锁，本地推理中...")
	}

	start := time.Now()
	out, err := runner.Run(ctx, 15*time.Minute, e.Bin,
		"-m", e.Model,
		"-f", wavPath,
		"--language", "zh",
		"--no-prints",
		"--no-timestamps")
	if err != nil {
		if runner.Stopped() {
			return "", media.ErrStopped
		}
		return "", fmt.Errorf("%w: %v", ErrLocalFailed, err)
	}
	if logf != nil {
		logf(fmt.Sprintf("✅ 本地识别完成 (%.1fs)", time.Since(start).Seconds()))
	}
	return strings.TrimSpace(out), nil
}

// dropCaches asks the kernel to shed page cache so the resident set drops
// back after an inference. Best effort; needs root and a Linux procfs.
func dropCaches() {
	f, err := os.OpenFile("/proc/sys/vm/drop_caches", os.O_WRONLY, 0)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString("3")
}
