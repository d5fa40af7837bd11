// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanSiblings(t *testing.T) {
	got := CleanSiblings("/d/show/ep1.mkv")
	assert.ElementsMatch(t, []string{
		"/d/show/ep1.mkv",
		"/d/show/ep1_clean.mkv",
		"/d/show/ep1_clean_meta.mkv",
	}, got)

	// A path already carrying the scrub suffix also yields the original.
	got = CleanSiblings("/d/show/ep1_clean.mkv")
	assert.Contains(t, got, "/d/show/ep1.mkv")
	assert.Contains(t, got, "/d/show/ep1_clean.mkv")

	assert.Nil(t, CleanSiblings(""))
}

func TestRemoveAllSiblings(t *testing.T) {
	dir := t.TempDir()
	orig := filepath.Join(dir, "ep1.mkv")
	clean := filepath.Join(dir, "ep1_clean.mkv")
	unrelated := filepath.Join(dir, "ep2.mkv")
	for _, p := range []string{orig, clean, unrelated} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	removed := RemoveAllSiblings(orig)
	assert.ElementsMatch(t, []string{"ep1.mkv", "ep1_clean.mkv"}, removed)

	_, err := os.Stat(unrelated)
	assert.NoError(t, err, "unrelated files stay")
}

func TestPruneEmptyParents(t *testing.T) {
	root := t.TempDir()
	scanRoot := filepath.Join(root, "downloads")
	leaf := filepath.Join(scanRoot, "remote-a", "season1")
	require.NoError(t, os.MkdirAll(leaf, 0o755))

	PruneEmptyParents(filepath.Join(leaf, "gone.mkv"), "downloads")

	_, err := os.Stat(leaf)
	assert.True(t, os.IsNotExist(err), "empty leaf removed")
	_, err = os.Stat(filepath.Join(scanRoot, "remote-a"))
	assert.True(t, os.IsNotExist(err), "empty parent removed")
	_, err = os.Stat(scanRoot)
	assert.NoError(t, err, "scan root itself is never removed")
}

func TestPruneEmptyParentsStopsAtNonEmpty(t *testing.T) {
	root := t.TempDir()
	scanRoot := filepath.Join(root, "downloads")
	leaf := filepath.Join(scanRoot, "remote-a", "season1")
	require.NoError(t, os.MkdirAll(leaf, 0o755))
	keeper := filepath.Join(scanRoot, "remote-a", "keep.txt")
	require.NoError(t, os.WriteFile(keeper, []byte("x"), 0o644))

	PruneEmptyParents(filepath.Join(leaf, "gone.mkv"), "downloads")

	_, err := os.Stat(leaf)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(scanRoot, "remote-a"))
	assert.NoError(t, err, "non-empty parent survives")
}
