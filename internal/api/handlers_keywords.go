// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/clearfeed/gatekeeper/internal/model"
	"github.com/go-chi/chi/v5"
)

func keywordTypeValid(typ string) bool {
	switch typ {
	case model.KeywordAudio, model.KeywordSubtitle, model.KeywordMeta:
		return true
	}
	return false
}

// handleListKeywords returns every blacklist row, enabled or not.
func (s *Server) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := s.Store.ListKeywords(r.Context())
	if err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	views := make([]map[string]any, 0, len(keywords))
	for _, k := range keywords {
		views = append(views, map[string]any{
			"id":      k.ID,
			"type":    k.Type,
			"content": k.Content,
			"enabled": k.Enabled,
		})
	}
	respond(w, http.StatusOK, map[string]any{"code": 200, "keywords": views})
}

// handleAddKeywords bulk-inserts entries; content takes "|"-separated terms.
func (s *Server) handleAddKeywords(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !keywordTypeValid(req.Type) {
		respond(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "invalid keyword"})
		return
	}
	var contents []string
	for _, part := range strings.Split(req.Content, "|") {
		if part = strings.TrimSpace(part); part != "" {
			contents = append(contents, part)
		}
	}
	if len(contents) == 0 {
		respond(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "empty keyword"})
		return
	}
	if err := s.Store.AddKeywords(r.Context(), req.Type, contents); err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	respond(w, http.StatusOK, map[string]any{"code": 200, "added": len(contents)})
}

// handleToggleKeyword flips one entry's enabled flag.
func (s *Server) handleToggleKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondCode(w, http.StatusBadRequest)
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondCode(w, http.StatusBadRequest)
		return
	}
	if err := s.Store.SetKeywordEnabled(r.Context(), id, req.Enabled); err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	respondCode(w, http.StatusOK)
}

// handleDeleteKeyword removes one entry permanently.
func (s *Server) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondCode(w, http.StatusBadRequest)
		return
	}
	if err := s.Store.DeleteKeyword(r.Context(), id); err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	respondCode(w, http.StatusOK)
}
