// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/clearfeed/gatekeeper/internal/fsutil"
	"github.com/clearfeed/gatekeeper/internal/log"
	"github.com/clearfeed/gatekeeper/internal/model"
	"github.com/clearfeed/gatekeeper/internal/store"
	"github.com/go-chi/chi/v5"
)

// listCap bounds each half of the task listing; the UI never pages.
const listCap = 200

func taskID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil && id > 0
}

func taskView(t *model.Task) map[string]any {
	var finished any
	if t.FinishedAt != nil {
		finished = t.FinishedAt.Format(time.RFC3339)
	}
	return map[string]any{
		"id":           t.ID,
		"filename":     t.Filename,
		"filepath":     t.Filepath,
		"status":       string(t.Status),
		"stage":        string(t.Stage),
		"progress":     t.Progress,
		"log":          t.Log,
		"retry_count":  t.RetryCount,
		"config":       t.Overrides,
		"upload_speed": t.UploadSpeed,
		"upload_eta":   t.UploadETA,
		"created_at":   t.CreatedAt.Format(time.RFC3339),
		"finished_at":  finished,
	}
}

// handleTrigger registers a new file for the pipeline. The id comes from
// the ring allocator; a displaced occupant of the slot is stopped first.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		respond(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "missing path"})
		return
	}

	ctx := r.Context()
	id, err := s.Store.NextID(ctx, func(old int) {
		s.Registry.Stop(old)
	})
	if err != nil {
		logger := log.WithComponent("api")
		logger.Error().Err(err).Msg("id allocation failed")
		respondCode(w, http.StatusInternalServerError)
		return
	}
	if _, err := s.Store.CreateTask(ctx, id, filepath.Base(req.Path), req.Path); err != nil {
		logger := log.WithComponent("api")
		logger.Error().Err(err).Int("task_id", id).Msg("task insert failed")
		respondCode(w, http.StatusInternalServerError)
		return
	}
	s.DetectQ.Put(id)
	respond(w, http.StatusOK, map[string]any{"code": 200, "task_id": id})
}

// handleListTasks returns the two halves of the pipeline separately, newest
// first, each capped at listCap rows.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.Store.ListTasks(r.Context(), 0)
	if err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	detect := []map[string]any{}
	upload := []map[string]any{}
	for _, t := range tasks {
		switch {
		case t.Stage == model.StageUpload && len(upload) < listCap:
			upload = append(upload, taskView(t))
		case t.Stage != model.StageUpload && len(detect) < listCap:
			detect = append(detect, taskView(t))
		}
	}
	respond(w, http.StatusOK, map[string]any{
		"code":         200,
		"detect_tasks": detect,
		"upload_tasks": upload,
	})
}

// handleRetry restarts a task from scratch: the checkpoint list and retry
// budget reset, and the task re-enters the queue its stage points at.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		respondCode(w, http.StatusBadRequest)
		return
	}
	var stage model.Stage
	_, err := s.Store.UpdateTask(r.Context(), id, func(t *model.Task) error {
		t.Overrides.ClearPassed()
		t.RetryCount = 0
		t.Progress = 0
		t.FinishedAt = nil
		t.UploadSpeed = ""
		t.UploadETA = ""
		if t.Stage == model.StageUpload {
			t.Status = model.StatusPendingUpload
		} else {
			t.Status = model.StatusPending
		}
		stage = t.Stage
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		respondCode(w, http.StatusNotFound)
		return
	}
	if err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	_ = s.Store.AppendLog(r.Context(), id, "=== 人工重试 ===")
	if stage == model.StageUpload {
		s.UploadQ.Put(id)
	} else {
		s.DetectQ.Put(id)
	}
	respondCode(w, http.StatusOK)
}

// handleCancel stops the running worker (if any) and pins the row cancelled.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		respondCode(w, http.StatusBadRequest)
		return
	}
	wasRunning := s.Registry.Stop(id)
	_, err := s.Store.UpdateTask(r.Context(), id, func(t *model.Task) error {
		t.Status = model.StatusCancelled
		now := time.Now()
		t.FinishedAt = &now
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		respondCode(w, http.StatusNotFound)
		return
	}
	if err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	if !wasRunning {
		// Running tasks log their own stop line when the runner unwinds.
		_ = s.Store.AppendLog(r.Context(), id, "⏹ 任务已手动停止")
	}
	respondCode(w, http.StatusOK)
}

// handleDirectUpload flags the task to skip detection, then resubmits it.
func (s *Server) handleDirectUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		respondCode(w, http.StatusBadRequest)
		return
	}
	_, err := s.Store.UpdateTask(r.Context(), id, func(t *model.Task) error {
		t.Overrides = model.Overrides{}
		t.Overrides.SetDirectUpload()
		t.Status = model.StatusPending
		t.Stage = model.StageDetect
		t.RetryCount = 0
		t.Progress = 0
		t.FinishedAt = nil
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		respondCode(w, http.StatusNotFound)
		return
	}
	if err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	_ = s.Store.AppendLog(r.Context(), id, "=== 直传 ===")
	s.DetectQ.Put(id)
	respondCode(w, http.StatusOK)
}

// handleAdjustAndRetry replaces the task's override blob with the request
// body, then restarts detection under the new settings.
func (s *Server) handleAdjustAndRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		respondCode(w, http.StatusBadRequest)
		return
	}
	var overrides map[string]any
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		respond(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "invalid config"})
		return
	}
	_, err := s.Store.UpdateTask(r.Context(), id, func(t *model.Task) error {
		t.Overrides = model.Overrides(overrides)
		t.Overrides.ClearPassed()
		t.Status = model.StatusPending
		t.Stage = model.StageDetect
		t.RetryCount = 0
		t.Progress = 0
		t.FinishedAt = nil
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		respondCode(w, http.StatusNotFound)
		return
	}
	if err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	_ = s.Store.AppendLog(r.Context(), id, "=== 调整重试 ===")
	s.DetectQ.Put(id)
	respondCode(w, http.StatusOK)
}

// handleDelete removes the task row and every on-disk artifact the task may
// have produced, including scrubbed _clean siblings.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		respondCode(w, http.StatusBadRequest)
		return
	}
	if s.Registry.Stop(id) {
		// Give the killed subprocess a moment to release the file.
		time.Sleep(500 * time.Millisecond)
	}
	t, err := s.Store.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondCode(w, http.StatusNotFound)
		return
	}
	if err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	removed := fsutil.RemoveAllSiblings(t.Filepath)
	if err := s.Store.DeleteTask(r.Context(), id); err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	respond(w, http.StatusOK, map[string]any{"code": 200, "removed": removed})
}

// handleUpdateOverrides merges the body into the task's override blob
// without touching its lifecycle.
func (s *Server) handleUpdateOverrides(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		respondCode(w, http.StatusBadRequest)
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "invalid config"})
		return
	}
	_, err := s.Store.UpdateTask(r.Context(), id, func(t *model.Task) error {
		if t.Overrides == nil {
			t.Overrides = model.Overrides{}
		}
		for k, v := range patch {
			t.Overrides[k] = v
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		respondCode(w, http.StatusNotFound)
		return
	}
	if err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	respondCode(w, http.StatusOK)
}

// handleBatch applies retry or stop across one half of the pipeline.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"` // retry | stop
		Target string `json:"target"` // detect | upload
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondCode(w, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	count := 0
	switch {
	case req.Action == "retry" && req.Target == "detect":
		// Cancelled and dirty rows are retryable too, not just errors:
		// a batch stop followed by a batch retry must round-trip.
		rows, err := s.Store.ListByStatus(ctx,
			model.StatusError, model.StatusCancelled, model.StatusDirty)
		if err != nil {
			respondCode(w, http.StatusInternalServerError)
			return
		}
		for _, t := range rows {
			if t.Stage == model.StageUpload {
				continue
			}
			if _, err := s.Store.UpdateTask(ctx, t.ID, func(t *model.Task) error {
				t.Overrides.ClearPassed()
				t.Status = model.StatusPending
				t.RetryCount = 0
				t.Progress = 0
				t.FinishedAt = nil
				return nil
			}); err != nil {
				continue
			}
			_ = s.Store.AppendLog(ctx, t.ID, "=== 批量重试 (检测) ===")
			s.DetectQ.Put(t.ID)
			count++
		}

	case req.Action == "retry" && req.Target == "upload":
		rows, err := s.Store.ListByStatus(ctx, model.StatusError, model.StatusCancelled)
		if err != nil {
			respondCode(w, http.StatusInternalServerError)
			return
		}
		for _, t := range rows {
			if t.Stage != model.StageUpload {
				continue
			}
			if _, err := s.Store.UpdateTask(ctx, t.ID, func(t *model.Task) error {
				t.Status = model.StatusPendingUpload
				t.RetryCount = 0
				t.Progress = 0
				t.FinishedAt = nil
				return nil
			}); err != nil {
				continue
			}
			_ = s.Store.AppendLog(ctx, t.ID, "=== 批量重传 ===")
			s.UploadQ.Put(t.ID)
			count++
		}

	case req.Action == "stop":
		var statuses []model.Status
		if req.Target == "upload" {
			statuses = []model.Status{model.StatusPendingUpload, model.StatusUploading}
		} else {
			statuses = []model.Status{model.StatusPending, model.StatusProcessing}
		}
		rows, err := s.Store.ListByStatus(ctx, statuses...)
		if err != nil {
			respondCode(w, http.StatusInternalServerError)
			return
		}
		for _, t := range rows {
			wasRunning := s.Registry.Stop(t.ID)
			if _, err := s.Store.UpdateTask(ctx, t.ID, func(t *model.Task) error {
				t.Status = model.StatusCancelled
				now := time.Now()
				t.FinishedAt = &now
				return nil
			}); err != nil {
				continue
			}
			if !wasRunning {
				_ = s.Store.AppendLog(ctx, t.ID, "⏹ 任务已手动停止")
			}
			count++
		}

	default:
		respondCode(w, http.StatusBadRequest)
		return
	}
	respond(w, http.StatusOK, map[string]any{"code": 200, "count": count})
}

// handleClearFinished purges every terminal-status row.
func (s *Server) handleClearFinished(w http.ResponseWriter, r *http.Request) {
	n, err := s.Store.ClearFinished(r.Context())
	if err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	respond(w, http.StatusOK, map[string]any{"code": 200, "cleared": n})
}
