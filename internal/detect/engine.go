// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package detect orchestrates one file's inspection: metadata scrub,
// subtitle scrub, then the sampled audio scan with checkpointing.
package detect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clearfeed/gatekeeper/internal/config"
	"github.com/clearfeed/gatekeeper/internal/media"
	"github.com/clearfeed/gatekeeper/internal/metrics"
	"github.com/clearfeed/gatekeeper/internal/model"
	"github.com/clearfeed/gatekeeper/internal/transcribe"
)

// ErrRequeue asks the worker for another attempt: the cloud tier failed
// and the retry budget still forbids the local fallback.
var ErrRequeue = errors.New("detect: cloud failed, local withheld, requeue requested")

// Status is the engine's verdict for one run.
type Status int

const (
	StatusReady Status = iota // clean, hand to upload
	StatusDirty               // content violation, file must go
	StatusCancelled
)

// Result carries the verdict plus the possibly-renamed path.
type Result struct {
	Status  Status
	Reason  string // dirty reason, operator-facing
	NewPath string // non-empty when a scrub rewrote the container
}

// Options parameterises one engine run.
type Options struct {
	TaskID       int
	Settings     config.Settings
	Keywords     model.KeywordSet
	DirectUpload bool
	Passed       []string // checkpointed segment names to skip
	AllowLocal   bool     // final attempt and operator enabled the local tier
	Attempt      int      // 1-based, for log lines
	RetryLimit   int
}

// Engine runs the detection pipeline for a single task. Callbacks may be
// nil; OnCheckpoint fires after each clean segment, OnRename when a scrub
// moves the file.
type Engine struct {
	Toolkit     *media.Toolkit
	Transcriber *transcribe.Transcriber
	TempDir     string

	Progress     func(pct int)
	OnCheckpoint func(segment string)
	OnRename     func(newPath string)
}

func (e *Engine) logf(format string, args ...any) {
	if e.Toolkit.Log == nil {
		return
	}
	if len(args) == 0 {
		e.Toolkit.Log(format)
		return
	}
	e.Toolkit.Log(fmt.Sprintf(format, args...))
}

func (e *Engine) progress(pct int) {
	if e.Progress != nil {
		e.Progress(pct)
	}
}

func (e *Engine) stopped() bool {
	return e.Toolkit.Runner.Stopped()
}

// Process runs the full pipeline. Retryable failures come back as errors;
// content verdicts come back in the Result.
func (e *Engine) Process(ctx context.Context, path string, opt Options) (Result, error) {
	if e.stopped() {
		return Result{Status: StatusCancelled}, nil
	}

	if opt.DirectUpload {
		e.logf("⏩ 直传模式")
		return Result{Status: StatusReady}, nil
	}
	if _, err := os.Stat(path); err != nil {
		return Result{}, fmt.Errorf("detect: 文件不存在: %s", path)
	}

	current := path

	if !IsVideo(current) {
		e.logf("⏩ 非视频文件 (%s) -> 跳过检测，直接上传", filepath.Ext(current))
		return Result{Status: StatusReady}, nil
	}

	if e.stopped() {
		return Result{Status: StatusCancelled}, nil
	}
	if opt.Settings.SanitizeMetadata {
		e.sanitizeMetadata(ctx, current, opt.Keywords.Meta)
	}
	e.progress(10)

	if e.stopped() {
		return Result{Status: StatusCancelled}, nil
	}
	if opt.Settings.CheckSubtitles {
		if newPath := e.scrubSubtitles(ctx, current, opt.Keywords.Subtitle); newPath != "" {
			current = newPath
			if e.OnRename != nil {
				e.OnRename(current)
			}
		}
	}
	e.progress(30)

	if e.stopped() {
		return Result{Status: StatusCancelled}, nil
	}
	if opt.Settings.CheckAudio {
		e.logf("🔍 准备音频检测...")
		e.progress(40)

		duration := e.Toolkit.ProbeDuration(ctx, current)
		if duration > 0 {
			hit, reason, err := e.scanAudio(ctx, current, duration, opt)
			if e.stopped() {
				e.logf("🛑 检测过程已中断")
				return Result{Status: StatusCancelled}, nil
			}
			if err != nil {
				return Result{}, err
			}
			if hit {
				return Result{Status: StatusDirty, Reason: reason}, nil
			}
		}
	}

	if e.stopped() {
		e.logf("🛑 最终阶段收到停止指令")
		return Result{Status: StatusCancelled}, nil
	}

	e.logf("✅ 全流程通过")
	e.progress(100)

	res := Result{Status: StatusReady}
	if current != path {
		res.NewPath = current
	}
	return res, nil
}

// scanAudio walks the segment plan tail-first, transcribing each window
// that is not already checkpointed and matching the audio blacklist.
func (e *Engine) scanAudio(ctx context.Context, path string, duration float64, opt Options) (bool, string, error) {
	audioMap := e.Toolkit.SmartAudioMap(ctx, path)
	plan := PlanSegments(duration, opt.Settings)

	passed := map[string]struct{}{}
	for _, name := range opt.Passed {
		passed[name] = struct{}{}
	}

	tempWav := filepath.Join(e.TempDir, fmt.Sprintf("scan_%d.wav", opt.TaskID))
	defer os.Remove(tempWav)

	for i, seg := range plan {
		if e.stopped() {
			return false, "", nil
		}
		if _, done := passed[seg.Name]; done {
			e.logf("⏭️ [断点] 跳过: %s", seg.Name)
			e.progress(50 + (i+1)*15)
			continue
		}

		e.logf("✂️ 提取音频 [%s]: %.1fs - %.0fs", seg.Name, seg.Start, seg.Duration)
		if err := e.Toolkit.ExtractAudioSegment(ctx, path, seg.Start, seg.Duration, tempWav, audioMap); err != nil {
			if e.stopped() {
				return false, "", nil
			}
			return false, "", fmt.Errorf("detect: 音频提取失败 [%s]: %w", seg.Name, err)
		}

		e.logf("☁️ 云端识别中...")
		res, err := e.Transcriber.Transcribe(ctx, e.Toolkit.Runner, tempWav, opt.AllowLocal)
		if err != nil {
			if e.stopped() {
				return false, "", nil
			}
			if errors.Is(err, transcribe.ErrCloudFailed) || errors.Is(err, transcribe.ErrNoProvider) {
				e.logf("⚠️ 云端识别失败 (第%d/%d次) -> 请求重排队", opt.Attempt, opt.RetryLimit+1)
				return false, "", fmt.Errorf("%w: %v", ErrRequeue, err)
			}
			return false, "", err
		}

		if hit, reason := matchKeywords(res.Text, opt.Keywords.Audio); hit {
			metrics.KeywordHits.WithLabelValues("audio").Inc()
			if res.Provider == transcribe.ProviderLocal {
				e.logf("🏠 [违规] 本地内容: %s", res.Text)
				reason = "本地拦截: " + reason
			} else {
				e.logf("☁️ [违规] 内容: %s", res.Text)
			}
			e.logf("💥 [音频违规] %s", reason)
			return true, reason, nil
		}

		if opt.Settings.DetailedMode {
			e.logf("✅ [通过] 内容: %s", res.Text)
		} else {
			e.logf("✅ 识别通过 (%s)", res.Provider)
		}

		if e.OnCheckpoint != nil {
			e.OnCheckpoint(seg.Name)
		}
		e.progress(50 + (i+1)*15)
	}

	return false, "", nil
}
