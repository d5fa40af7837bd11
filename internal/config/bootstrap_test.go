// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBootstrapDefaults(t *testing.T) {
	b, err := LoadBootstrap("")
	require.NoError(t, err)
	assert.Equal(t, ":5000", b.Listen)
	assert.Equal(t, "ffmpeg", b.FFmpegBin)
	assert.Equal(t, "/var/lib/gatekeeper/tasks.db", b.DBPath, "db path derives from data dir")
}

func TestLoadBootstrapFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"listen: \":8080\"\ndata_dir: /srv/gk\nffmpeg_bin: /opt/ffmpeg\nwatch_scan_root: true\n"), 0o644))

	b, err := LoadBootstrap(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", b.Listen)
	assert.Equal(t, "/srv/gk", b.DataDir)
	assert.Equal(t, "/opt/ffmpeg", b.FFmpegBin)
	assert.True(t, b.WatchScanRoot)
	assert.Equal(t, "/srv/gk/tasks.db", b.DBPath)
}

func TestLoadBootstrapEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":8080\"\n"), 0o644))
	t.Setenv("GK_LISTEN", ":9999")
	t.Setenv("GK_DB_PATH", "/tmp/override.db")

	b, err := LoadBootstrap(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", b.Listen)
	assert.Equal(t, "/tmp/override.db", b.DBPath)
}

func TestLoadBootstrapMissingFileIsFine(t *testing.T) {
	_, err := LoadBootstrap(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestLoadBootstrapMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o644))
	_, err := LoadBootstrap(path)
	assert.Error(t, err)
}
