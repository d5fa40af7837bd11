// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package supervisor owns first-run seeding and startup recovery: after a
// restart no task may sit in a mid-flight status with no worker attached.
package supervisor

import (
	"context"
	"fmt"

	"github.com/clearfeed/gatekeeper/internal/log"
	"github.com/clearfeed/gatekeeper/internal/model"
	"github.com/clearfeed/gatekeeper/internal/store"
	"github.com/clearfeed/gatekeeper/internal/worker"
)

// Supervisor glues the store to the queues at daemon start.
type Supervisor struct {
	Store   *store.Store
	DetectQ *worker.Queue
	UploadQ *worker.Queue
}

// Bootstrap seeds the built-in blacklists and re-enqueues interrupted
// tasks. Safe to run on every start; both steps are idempotent.
func (s *Supervisor) Bootstrap(ctx context.Context) error {
	if err := s.Store.SeedKeywords(ctx, map[string][]string{
		model.KeywordAudio:    defaultAudioKeywords,
		model.KeywordSubtitle: defaultSubtitleKeywords,
		model.KeywordMeta:     defaultMetaKeywords,
	}); err != nil {
		return fmt.Errorf("supervisor: seed keywords: %w", err)
	}
	return s.recover(ctx)
}

// recover rewrites mid-flight statuses to their queueable form and
// enqueues each row exactly once.
func (s *Supervisor) recover(ctx context.Context) error {
	logger := log.WithComponent("supervisor")

	detectRows, err := s.Store.ListByStatus(ctx, model.StatusProcessing, model.StatusPending)
	if err != nil {
		return fmt.Errorf("supervisor: list detect rows: %w", err)
	}
	for _, t := range detectRows {
		interrupted := t.Status == model.StatusProcessing
		if _, err := s.Store.UpdateTask(ctx, t.ID, func(t *model.Task) error {
			t.Status = model.StatusPending
			t.Stage = model.StageDetect
			return nil
		}); err != nil {
			logger.Error().Err(err).Int("task_id", t.ID).Msg("detect recovery write failed")
			continue
		}
		if interrupted {
			_ = s.Store.AppendLog(ctx, t.ID, "=== 系统重启：恢复检测 ===")
		}
		s.DetectQ.Put(t.ID)
	}

	uploadRows, err := s.Store.ListByStatus(ctx, model.StatusUploading, model.StatusPendingUpload)
	if err != nil {
		return fmt.Errorf("supervisor: list upload rows: %w", err)
	}
	for _, t := range uploadRows {
		interrupted := t.Status == model.StatusUploading
		if _, err := s.Store.UpdateTask(ctx, t.ID, func(t *model.Task) error {
			t.Status = model.StatusPendingUpload
			t.Stage = model.StageUpload
			return nil
		}); err != nil {
			logger.Error().Err(err).Int("task_id", t.ID).Msg("upload recovery write failed")
			continue
		}
		if interrupted {
			_ = s.Store.AppendLog(ctx, t.ID, "=== 系统重启：恢复上传 ===")
		}
		s.UploadQ.Put(t.ID)
	}

	logger.Info().
		Int("detect", len(detectRows)).
		Int("upload", len(uploadRows)).
		Msg("interrupted tasks re-enqueued")
	return nil
}
