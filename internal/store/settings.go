// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clearfeed/gatekeeper/internal/config"
)

// AllConfig returns every persisted settings row.
func (s *Store) AllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, fmt.Errorf("store: read config: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// GetConfig returns one row's value, or "" when absent.
func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetConfig upserts one settings row.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("store: set config %s: %w", key, err)
	}
	return nil
}

// EffectiveSettings resolves defaults <- persisted rows <- task overrides.
// The counter row shares the config table but is not a settings key; the
// resolver simply ignores it.
func (s *Store) EffectiveSettings(ctx context.Context, overrides map[string]any) (config.Settings, error) {
	persisted, err := s.AllConfig(ctx)
	if err != nil {
		return config.DefaultSettings(), err
	}
	return config.Resolve(persisted, overrides), nil
}
