// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/clearfeed/gatekeeper/internal/config"
)

// handleGetSettings returns the effective global settings, defaults applied.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Store.EffectiveSettings(r.Context(), nil)
	if err != nil {
		respondCode(w, http.StatusInternalServerError)
		return
	}
	respond(w, http.StatusOK, map[string]any{"code": 200, "settings": settings.Map()})
}

// handleSetSettings persists the posted key/value pairs. Values arrive as
// JSON types and are stored as text; bool and int keys get canonical forms
// so reads round-trip.
func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "invalid settings"})
		return
	}
	for key, value := range body {
		if strings.HasPrefix(key, "_") {
			continue
		}
		encoded := encodeSettingValue(key, value)
		if err := s.Store.SetConfig(r.Context(), key, encoded); err != nil {
			respondCode(w, http.StatusInternalServerError)
			return
		}
		if key == "api_token" {
			s.persistToken(encoded)
		}
	}
	respondCode(w, http.StatusOK)
}

func encodeSettingValue(key string, v any) string {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if config.IsIntKey(key) {
			return strconv.Itoa(int(t))
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		if config.IsBoolKey(key) {
			return strconv.FormatBool(strings.EqualFold(strings.TrimSpace(t), "true"))
		}
		return strings.TrimSpace(t)
	default:
		return fmt.Sprint(t)
	}
}
