// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemotePrefix(t *testing.T) {
	// The folder under the scan root names the remote.
	assert.Equal(t, "movies", RemotePrefix("/downloads/movies/a.mkv", "downloads", "s25"))
	// Files directly in the root fall back to the default remote.
	assert.Equal(t, "s25", RemotePrefix("/downloads/a.mkv", "downloads", "s25"))
	assert.Equal(t, "s25", RemotePrefix("a.mkv", "downloads", "s25"))
}

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "0s", formatETA(0))
	assert.Equal(t, "45s", formatETA(45))
	assert.Equal(t, "60s", formatETA(60))
	assert.Equal(t, "1m 1s", formatETA(61))
	assert.Equal(t, "12m 30s", formatETA(750))
	assert.Equal(t, "1h 0m 5s", formatETA(3605))
	assert.Equal(t, "2h 5m 0s", formatETA(7500))
}

func TestRcloneStatsParsing(t *testing.T) {
	line := `{"level":"info","msg":"","stats":{"speed":5242880,"eta":90,` +
		`"transferring":[{"name":"a.mkv","bytes":1048576,"size":4194304}]},"time":"2026-01-01T00:00:00Z"}`

	var rec rcloneStats
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	require.Len(t, rec.Stats.Transferring, 1)
	assert.EqualValues(t, 1048576, rec.Stats.Transferring[0].Bytes)
	assert.EqualValues(t, 4194304, rec.Stats.Transferring[0].Size)
	assert.EqualValues(t, 5242880, rec.Stats.Speed)
	assert.EqualValues(t, 90, rec.Stats.ETA)

	// Non-stats log lines decode to a zero record instead of failing.
	var empty rcloneStats
	require.NoError(t, json.Unmarshal([]byte(`{"level":"info","msg":"starting"}`), &empty))
	assert.Empty(t, empty.Stats.Transferring)
}
