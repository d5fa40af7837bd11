// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api translates control-plane requests into task store and queue
// operations. Transport is HTTP/JSON with the legacy {"code": N} envelope.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clearfeed/gatekeeper/internal/config"
	"github.com/clearfeed/gatekeeper/internal/log"
	"github.com/clearfeed/gatekeeper/internal/store"
	"github.com/clearfeed/gatekeeper/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the adapter's collaborators.
type Server struct {
	Store    *store.Store
	Registry *worker.Registry
	DetectQ  *worker.Queue
	UploadQ  *worker.Queue
	Boot     config.Bootstrap
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"code": 200})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// The trigger is the only route exposed to other machines; keep a
		// per-IP budget on it.
		r.With(httprate.LimitByIP(60, time.Minute)).Post("/api/trigger", s.handleTrigger)

		r.Get("/api/tasks", s.handleListTasks)
		r.Post("/api/tasks/batch", s.handleBatch)
		r.Post("/api/tasks/clear", s.handleClearFinished)
		r.Post("/api/retry/{id}", s.handleRetry)
		r.Post("/api/cancel/{id}", s.handleCancel)
		r.Post("/api/task/{id}/direct_upload", s.handleDirectUpload)
		r.Post("/api/task/{id}/save_and_retry", s.handleAdjustAndRetry)
		r.Post("/api/task/{id}/delete", s.handleDelete)
		r.Post("/api/update_task_config/{id}", s.handleUpdateOverrides)

		r.Get("/api/settings", s.handleGetSettings)
		r.Post("/api/settings", s.handleSetSettings)

		r.Get("/api/keywords", s.handleListKeywords)
		r.Post("/api/keywords", s.handleAddKeywords)
		r.Put("/api/keyword/{id}", s.handleToggleKeyword)
		r.Delete("/api/keyword/{id}", s.handleDeleteKeyword)
	})

	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := log.ContextWithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logger := log.WithContext(ctx, log.WithComponent("api"))
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondCode(w http.ResponseWriter, code int) {
	respond(w, code, map[string]any{"code": code})
}
