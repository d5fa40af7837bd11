// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcribe implements the two-tier speech-to-text stack: a cloud
// HTTP endpoint first, and a memory-hungry local engine behind a
// process-wide single-holder lock as the last-resort fallback.
package transcribe

import (
	"context"
	"errors"
	"time"

	"github.com/clearfeed/gatekeeper/internal/media"
	"github.com/clearfeed/gatekeeper/internal/metrics"
)

var (
	// ErrCloudFailed is a soft failure: the worker re-queues the task.
	ErrCloudFailed = errors.New("transcribe: cloud provider failed")
	// ErrLocalFailed means the fallback engine crashed or produced nothing.
	ErrLocalFailed = errors.New("transcribe: local engine failed")
	// ErrNoProvider means no provider was willing to take the segment.
	ErrNoProvider = errors.New("transcribe: no provider available")
)

const (
	ProviderCloud = "cloud"
	ProviderLocal = "local"
)

// Result is one transcribed segment.
type Result struct {
	Text     string
	Provider string
}

// Transcriber routes a wav segment to a provider.
type Transcriber struct {
	Cloud *CloudClient
	Local *LocalEngine // nil when no local engine is configured

	// Log feeds the task event stream; may be nil.
	Log func(msg string)
}

func (t *Transcriber) logf(msg string) {
	if t.Log != nil {
		t.Log(msg)
	}
}

// Transcribe runs the cloud provider and, only when allowLocal is set,
// falls back to the local engine. The retry budget gating (cloud-only until
// the final attempt) lives in the caller; here allowLocal is a plain switch.
// The runner owns any subprocess so a task cancel reaches the engine.
func (t *Transcriber) Transcribe(ctx context.Context, runner *media.Runner, wavPath string, allowLocal bool) (Result, error) {
	if t.Cloud != nil {
		start := time.Now()
		text, err := t.Cloud.Transcribe(ctx, wavPath)
		if err == nil {
			metrics.TranscribeDuration.WithLabelValues(ProviderCloud).Observe(time.Since(start).Seconds())
			return Result{Text: CleanTranscript(text), Provider: ProviderCloud}, nil
		}
		metrics.TranscribeFailures.WithLabelValues(ProviderCloud).Inc()
		t.logf("⚠️ 云端识别失败: " + err.Error())
	}

	if !allowLocal {
		return Result{}, ErrCloudFailed
	}
	if t.Local == nil {
		return Result{}, ErrNoProvider
	}

	start := time.Now()
	text, err := t.Local.Transcribe(ctx, runner, wavPath, t.logf)
	if err != nil {
		metrics.TranscribeFailures.WithLabelValues(ProviderLocal).Inc()
		return Result{}, err
	}
	metrics.TranscribeDuration.WithLabelValues(ProviderLocal).Observe(time.Since(start).Seconds())
	return Result{Text: CleanTranscript(text), Provider: ProviderLocal}, nil
}
