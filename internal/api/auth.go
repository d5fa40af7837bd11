// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/clearfeed/gatekeeper/internal/log"
	"github.com/google/renameio/v2"
)

const tokenSecretFile = ".token_secret"

var tokenPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// effectiveToken resolves the shared API token: the on-disk secret file
// wins over the persisted settings row.
func (s *Server) effectiveToken(ctx context.Context) string {
	secretPath := filepath.Join(s.Boot.DataDir, tokenSecretFile)
	if raw, err := os.ReadFile(secretPath); err == nil { // #nosec G304 -- fixed name under data dir
		if tok := strings.TrimSpace(string(raw)); tok != "" {
			return tok
		}
	}
	settings, err := s.Store.EffectiveSettings(ctx, nil)
	if err != nil {
		return ""
	}
	return settings.APIToken
}

// persistToken writes the token secret file atomically. Tokens outside the
// allowed alphabet are persisted only in the settings row.
func (s *Server) persistToken(token string) {
	token = strings.TrimSpace(token)
	if !tokenPattern.MatchString(token) {
		return
	}
	path := filepath.Join(s.Boot.DataDir, tokenSecretFile)
	if err := renameio.WriteFile(path, []byte(token), 0o600); err != nil {
		logger := log.WithComponent("api")
		logger.Warn().Err(err).Msg("token secret write failed")
	}
}

// authMiddleware enforces the shared token on every API route.
// Fail-closed: no configured token means no access.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.effectiveToken(r.Context())
		if token == "" {
			logger := log.WithComponent("api")
			logger.Error().Str("event", "auth.fail_closed").
				Msg("no api token configured, denying access")
			respondCode(w, http.StatusForbidden)
			return
		}

		reqToken := r.Header.Get("X-API-Token")
		if reqToken == "" {
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				reqToken = strings.TrimPrefix(h, "Bearer ")
			}
		}

		if subtle.ConstantTimeCompare([]byte(reqToken), []byte(token)) != 1 {
			logger := log.WithComponent("api")
			logger.Warn().Str("event", "auth.invalid_token").
				Str("path", r.URL.Path).Msg("invalid api token")
			respondCode(w, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
