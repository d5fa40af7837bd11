// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligible(t *testing.T) {
	w := New("/downloads", nil)

	assert.True(t, w.eligible("/downloads/show/e1.mkv"))
	assert.False(t, w.eligible("/downloads/show/notes.txt"))
	assert.False(t, w.eligible("/downloads/show/.hidden.mkv"))
	assert.False(t, w.eligible("/downloads/show/e1_clean.mkv"), "scrub outputs are not new arrivals")
	assert.False(t, w.eligible("/downloads/show/e1_clean_meta.mkv"))
}

func TestSweepWaitsForSizeToSettle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "e1.mkv")
	require.NoError(t, os.WriteFile(path, []byte("partial"), 0o644))

	var submitted []string
	w := New(dir, func(p string) { submitted = append(submitted, p) })

	pending := map[string]*candidate{path: {size: 7}}

	// First stable poll: not yet.
	w.sweep(pending)
	assert.Empty(t, submitted)
	assert.Contains(t, pending, path)

	// File grows: counter resets.
	require.NoError(t, os.WriteFile(path, []byte("partial-more"), 0o644))
	w.sweep(pending)
	assert.Empty(t, submitted)
	assert.Zero(t, pending[path].stable)

	// Two stable polls in a row: submitted and dropped from the set.
	w.sweep(pending)
	w.sweep(pending)
	assert.Equal(t, []string{path}, submitted)
	assert.NotContains(t, pending, path)
}

func TestSweepDropsVanishedFiles(t *testing.T) {
	var submitted []string
	w := New(t.TempDir(), func(p string) { submitted = append(submitted, p) })

	pending := map[string]*candidate{"/gone/file.mkv": {size: 1}}
	w.sweep(pending)
	assert.Empty(t, submitted)
	assert.Empty(t, pending)
}
