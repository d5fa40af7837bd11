// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/clearfeed/gatekeeper/internal/fsutil"
	"github.com/clearfeed/gatekeeper/internal/log"
	"github.com/clearfeed/gatekeeper/internal/media"
	"github.com/clearfeed/gatekeeper/internal/metrics"
	"github.com/clearfeed/gatekeeper/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type uploadWorker struct {
	deps  Deps
	owner string
}

func (w *uploadWorker) run(ctx context.Context) {
	logger := log.WithComponent("upload-worker").With().Str("owner", w.owner).Logger()
	for {
		id, ok := w.deps.UploadQ.Take(ctx)
		if !ok {
			return
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Int("task_id", id).Interface("panic", r).Msg("upload stage panicked")
				}
			}()
			w.process(ctx, id, logger.With().Int("task_id", id).Logger())
		}()
	}
}

func (w *uploadWorker) process(ctx context.Context, id int, logger zerolog.Logger) {
	st := w.deps.Store
	bg := context.Background()

	t, err := st.GetTask(bg, id)
	if err != nil || t.Status == model.StatusCancelled {
		return
	}

	if _, err := st.UpdateTask(bg, id, func(t *model.Task) error {
		t.Status = model.StatusUploading
		t.Stage = model.StageUpload
		return nil
	}); err != nil {
		logger.Error().Err(err).Msg("cannot mark task uploading")
		return
	}

	settings, err := st.EffectiveSettings(bg, t.Overrides)
	if err != nil {
		logger.Error().Err(err).Msg("settings resolution failed")
	}

	rootName := filepath.Base(strings.TrimRight(settings.ScanPath, "/"))
	remote := media.RemotePrefix(t.Filepath, rootName, settings.RcloneRemote)

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
	uploadErr := toolkit.Upload(ctx, t.Filepath, remote, func(p media.UploadProgress) {
		if p.Percent >= 100 || limiter.Allow() {
			_ = st.SetUploadProgress(bg, id, p.Percent, p.Speed, p.ETA)
		}
	})

	switch {
	case uploadErr == nil:
		_, _ = st.UpdateTask(bg, id, func(t *model.Task) error {
			t.Status = model.StatusUploaded
			t.Progress = 100
			t.UploadETA = "完成"
			now := time.Now()
			t.FinishedAt = &now
			return nil
		})
		_ = st.AppendLog(bg, id, "✅ 上传成功")
		// The move semantics removed the file; sweep up empty folders.
		fsutil.PruneEmptyParents(t.Filepath, rootName)
		metrics.TaskOutcomes.WithLabelValues("upload", "uploaded").Inc()
		if settings.NotifyUploadSuccess {
			w.deps.Notifier.Send(settings.TGBotToken, settings.TGChatID,
				fmt.Sprintf("🎉 上传成功: %s\n☁️ 节点: %s", t.Filename, remote))
		}

	case errors.Is(uploadErr, media.ErrStopped):
		// Operator cancel, not a failure: no error status, no notification.
		_ = st.AppendLog(bg, id, "⏹ 上传已停止/删除")
		metrics.TaskOutcomes.WithLabelValues("upload", "cancelled").Inc()

	case ctx.Err() != nil:
		// Daemon shutdown: the row stays uploading so startup recovery
		// re-enqueues it.
		logger.Info().Msg("upload interrupted by shutdown")

	default:
		// No internal retry for uploads: the file stays for a manual retry.
		_, _ = st.UpdateTask(bg, id, func(t *model.Task) error {
			t.Status = model.StatusError
			now := time.Now()
			t.FinishedAt = &now
			return nil
		})
		_ = st.AppendLog(bg, id, fmt.Sprintf("❌ 上传失败: %v", uploadErr))
		metrics.TaskOutcomes.WithLabelValues("upload", "error").Inc()
		if settings.NotifyErrors {
			w.deps.Notifier.Send(settings.TGBotToken, settings.TGChatID,
				fmt.Sprintf("❌ 上传失败: %s", t.Filename))
		}
	}
}
