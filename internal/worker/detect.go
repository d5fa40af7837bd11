// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clearfeed/gatekeeper/internal/config"
	"github.com/clearfeed/gatekeeper/internal/detect"
	"github.com/clearfeed/gatekeeper/internal/log"
	"github.com/clearfeed/gatekeeper/internal/media"
	"github.com/clearfeed/gatekeeper/internal/metrics"
	"github.com/clearfeed/gatekeeper/internal/model"
	"github.com/clearfeed/gatekeeper/internal/transcribe"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type detectWorker struct {
	deps  Deps
	owner string
}

func (w *detectWorker) run(ctx context.Context) {
	logger := log.WithComponent("detect-worker").With().Str("owner", w.owner).Logger()
	for {
		id, ok := w.deps.DetectQ.Take(ctx)
		if !ok {
			return
		}
		// A panicking task must never take the worker down with it.
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Int("task_id", id).Interface("panic", r).Msg("detect stage panicked")
					w.recoverToRetry(id, fmt.Errorf("内部错误: %v", r))
				}
			}()
			w.process(ctx, id, logger.With().Int("task_id", id).Logger())
		}()
	}
}

func (w *detectWorker) process(ctx context.Context, id int, logger zerolog.Logger) {
	st := w.deps.Store
	bg := context.Background()

	t, err := st.GetTask(bg, id)
	if err != nil || t.Status == model.StatusCancelled {
		return
	}

	if _, err := st.UpdateTask(bg, id, func(t *model.Task) error {
		t.Status = model.StatusProcessing
		t.Stage = model.StageDetect
		t.Progress = 0
		return nil
	}); err != nil {
		logger.Error().Err(err).Msg("cannot mark task processing")
		return
	}

	settings, err := st.EffectiveSettings(bg, t.Overrides)
	if err != nil {
		logger.Error().Err(err).Msg("settings resolution failed")
	}

	attempt := t.RetryCount + 1
	allowLocal := t.RetryCount >= model.RetryLimit && settings.EnableLocalModel

	runner := media.NewRunner()
	toolkit := &media.Toolkit{
		FFmpeg:  w.deps.Boot.FFmpegBin,
		FFprobe: w.deps.Boot.FFprobeBin,
		Rclone:  w.deps.Boot.RcloneBin,
		Runner:  runner,
		Logger:  logger,
		Log:     func(msg string) { _ = st.AppendLog(bg, id, msg) },
	}

	w.deps.Registry.Add(id, runner)
	defer w.deps.Registry.Remove(id)

	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	engine := &detect.Engine{
		Toolkit: toolkit,
		Transcriber: &transcribe.Transcriber{
			Cloud: transcribe.NewCloudClient(settings.APIURL, settings.APIKey, settings.APIModel),
			Local: transcribe.NewLocalEngine(w.deps.Boot.LocalSTTBin, w.deps.Boot.LocalSTTModel),
			Log:   toolkit.Log,
		},
		TempDir: w.deps.Boot.TempDir,
		Progress: func(pct int) {
			if pct >= 100 || limiter.Allow() {
				_ = st.SetProgress(bg, id, pct)
			}
		},
		OnCheckpoint: func(segment string) {
			_, _ = st.UpdateTask(bg, id, func(t *model.Task) error {
				t.Overrides.AddPassed(segment)
				return nil
			})
		},
		OnRename: func(newPath string) {
			_, _ = st.UpdateTask(bg, id, func(t *model.Task) error {
				t.Filepath = newPath
				t.Filename = filepath.Base(newPath)
				return nil
			})
			_ = st.AppendLog(bg, id, fmt.Sprintf("🔄 文件已更新为: %s", filepath.Base(newPath)))
		},
	}

	res, procErr := engine.Process(ctx, t.Filepath, detect.Options{
		TaskID:       id,
		Settings:     settings,
		Keywords:     w.keywords(bg),
		DirectUpload: t.Overrides.DirectUpload(),
		Passed:       t.Overrides.Passed(),
		AllowLocal:   allowLocal,
		Attempt:      attempt,
		RetryLimit:   model.RetryLimit,
	})

	switch {
	case procErr != nil && ctx.Err() != nil:
		// Daemon shutdown, not a task fault: the row stays processing so
		// startup recovery re-enqueues it without spending a retry.
		logger.Info().Msg("detect interrupted by shutdown")

	case procErr != nil:
		w.retryOrFail(bg, id, t.RetryCount, settings, procErr)

	case res.Status == detect.StatusCancelled:
		_, _ = st.UpdateTask(bg, id, func(t *model.Task) error {
			t.Status = model.StatusCancelled
			now := time.Now()
			t.FinishedAt = &now
			return nil
		})
		_ = st.AppendLog(bg, id, "⏹ 任务已手动停止")
		metrics.TaskOutcomes.WithLabelValues("detect", "cancelled").Inc()

	case res.Status == detect.StatusDirty:
		updated, _ := st.UpdateTask(bg, id, func(t *model.Task) error {
			t.Status = model.StatusDirty
			now := time.Now()
			t.FinishedAt = &now
			return nil
		})
		if updated != nil {
			if err := os.Remove(updated.Filepath); err != nil && !os.IsNotExist(err) {
				logger.Warn().Err(err).Str("path", updated.Filepath).Msg("dirty file removal failed")
			}
			if settings.NotifyErrors {
				w.deps.Notifier.Send(settings.TGBotToken, settings.TGChatID,
					fmt.Sprintf("🚫 拦截: %s\n原因: %s", updated.Filename, res.Reason))
			}
		}
		metrics.TaskOutcomes.WithLabelValues("detect", "dirty").Inc()

	default: // ready to upload
		_, _ = st.UpdateTask(bg, id, func(t *model.Task) error {
			if res.NewPath != "" {
				t.Filepath = res.NewPath
				t.Filename = filepath.Base(res.NewPath)
			}
			t.Status = model.StatusPendingUpload
			t.Stage = model.StageUpload
			t.Progress = 0
			return nil
		})
		_ = st.AppendLog(bg, id, "✅ 检测通过，加入上传队列")
		metrics.TaskOutcomes.WithLabelValues("detect", "clean").Inc()
		w.deps.UploadQ.Put(id)
	}
}

// retryOrFail applies the detect retry ladder: bounded re-enqueues with
// checkpoint preservation, then terminal error. Cloud soft failures and
// unclassified exceptions share the ladder but keep distinct log lines.
func (w *detectWorker) retryOrFail(ctx context.Context, id, retryCount int, settings config.Settings, procErr error) {
	st := w.deps.Store
	cloud := errors.Is(procErr, detect.ErrRequeue)

	if retryCount < model.RetryLimit {
		_, _ = st.UpdateTask(ctx, id, func(t *model.Task) error {
			t.RetryCount++
			t.Status = model.StatusPending
			return nil
		})
		if cloud {
			_ = st.AppendLog(ctx, id,
				fmt.Sprintf("⚠️ 云端异常/超时 -> 重新排队 (尝试 %d/%d)", retryCount+1, model.RetryLimit))
		} else {
			_ = st.AppendLog(ctx, id,
				fmt.Sprintf("⚠️ 异常 -> 重新排队 (尝试 %d/%d)\nErr: %v", retryCount+1, model.RetryLimit, procErr))
		}
		metrics.TaskRetries.Inc()
		w.deps.DetectQ.Put(id)
		return
	}

	updated, _ := st.UpdateTask(ctx, id, func(t *model.Task) error {
		t.Status = model.StatusError
		now := time.Now()
		t.FinishedAt = &now
		return nil
	})
	if cloud {
		_ = st.AppendLog(ctx, id, fmt.Sprintf("❌ 最终失败: %v", procErr))
	} else {
		_ = st.AppendLog(ctx, id, fmt.Sprintf("❌ 最终异常: %v", procErr))
	}
	metrics.TaskOutcomes.WithLabelValues("detect", "error").Inc()
	if settings.NotifyErrors && updated != nil {
		if cloud {
			w.deps.Notifier.Send(settings.TGBotToken, settings.TGChatID,
				fmt.Sprintf("❌ 任务出错: %s\n原因: %v", updated.Filename, procErr))
		} else {
			w.deps.Notifier.Send(settings.TGBotToken, settings.TGChatID,
				fmt.Sprintf("❌ 系统异常: %s", updated.Filename))
		}
	}
}

// recoverToRetry feeds a recovered panic into the same retry ladder as an
// error return, so a transient crash still gets its bounded re-enqueues.
func (w *detectWorker) recoverToRetry(id int, cause error) {
	bg := context.Background()
	t, err := w.deps.Store.GetTask(bg, id)
	if err != nil {
		return
	}
	settings, _ := w.deps.Store.EffectiveSettings(bg, t.Overrides)
	w.retryOrFail(bg, id, t.RetryCount, settings, cause)
}

func (w *detectWorker) keywords(ctx context.Context) model.KeywordSet {
	set, err := w.deps.Store.EnabledKeywords(ctx)
	if err != nil {
		logger := log.WithComponent("detect-worker")
		logger.Error().Err(err).Msg("keyword load failed")
	}
	return set
}
