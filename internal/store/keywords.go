// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"fmt"

	"github.com/clearfeed/gatekeeper/internal/model"
)

// SeedKeywords inserts any missing (type, content) pairs, leaving existing
// rows (including operator-disabled ones) untouched. Idempotent.
func (s *Store) SeedKeywords(ctx context.Context, byType map[string][]string) error {
	for typ, contents := range byType {
		for _, content := range contents {
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO keywords (type, content, enabled) VALUES (?, ?, 1)
				 ON CONFLICT(type, content) DO NOTHING`, typ, content)
			if err != nil {
				return fmt.Errorf("store: seed keyword %q/%q: %w", typ, content, err)
			}
		}
	}
	return nil
}

// AddKeywords inserts the given contents under one type, skipping duplicates.
func (s *Store) AddKeywords(ctx context.Context, typ string, contents []string) error {
	return s.SeedKeywords(ctx, map[string][]string{typ: contents})
}

// ListKeywords returns every keyword row.
func (s *Store) ListKeywords(ctx context.Context) ([]model.Keyword, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, content, enabled FROM keywords ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list keywords: %w", err)
	}
	defer rows.Close()

	var out []model.Keyword
	for rows.Next() {
		var k model.Keyword
		if err := rows.Scan(&k.ID, &k.Type, &k.Content, &k.Enabled); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// EnabledKeywords collects the enabled entries grouped for a detect run.
func (s *Store) EnabledKeywords(ctx context.Context) (model.KeywordSet, error) {
	var set model.KeywordSet
	rows, err := s.db.QueryContext(ctx, `SELECT type, content FROM keywords WHERE enabled = 1`)
	if err != nil {
		return set, fmt.Errorf("store: enabled keywords: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ, content string
		if err := rows.Scan(&typ, &content); err != nil {
			return set, err
		}
		switch typ {
		case model.KeywordAudio:
			set.Audio = append(set.Audio, content)
		case model.KeywordSubtitle:
			set.Subtitle = append(set.Subtitle, content)
		case model.KeywordMeta:
			set.Meta = append(set.Meta, content)
		}
	}
	return set, rows.Err()
}

// SetKeywordEnabled toggles one entry.
func (s *Store) SetKeywordEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE keywords SET enabled = ? WHERE id = ?`, enabled, id)
	return err
}

// DeleteKeyword removes one entry.
func (s *Store) DeleteKeyword(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM keywords WHERE id = ?`, id)
	return err
}
