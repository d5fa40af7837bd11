// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLayering(t *testing.T) {
	persisted := map[string]string{
		"check_audio":        "false",
		"audio_len_tail":     "450",
		"api_key":            "sk-persisted",
		"concurrency_detect": "4",
	}
	overrides := map[string]any{
		"check_audio":    true,        // task override wins
		"audio_len_tail": float64(90), // JSON numbers arrive as float64
		"_passed":        []any{"片尾"}, // reserved keys never touch settings
	}

	s := Resolve(persisted, overrides)

	assert.True(t, s.CheckAudio)
	assert.Equal(t, 90, s.AudioLenTail)
	assert.Equal(t, "sk-persisted", s.APIKey)
	assert.Equal(t, 4, s.ConcurrencyDetect)
	// Untouched keys keep their defaults.
	assert.True(t, s.CheckSubtitles)
	assert.Equal(t, 600, s.AudioThresholdMulti)
}

func TestResolveNilLayers(t *testing.T) {
	got := Resolve(nil, nil)
	want := DefaultSettings()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("defaults drifted (-want +got):\n%s", diff)
	}
}

func TestApplyCoercion(t *testing.T) {
	s := DefaultSettings()

	s.Apply("enable_local_model", "true")
	assert.True(t, s.EnableLocalModel)
	s.Apply("enable_local_model", "True")
	assert.True(t, s.EnableLocalModel)
	s.Apply("enable_local_model", "no")
	assert.False(t, s.EnableLocalModel)

	s.Apply("audio_threshold_long", "7200")
	assert.Equal(t, 7200, s.AudioThresholdLong)
	s.Apply("audio_threshold_long", "not a number")
	assert.Equal(t, 7200, s.AudioThresholdLong, "unparsable ints keep the prior value")

	s.Apply("rclone_remote", "gdrive")
	assert.Equal(t, "gdrive", s.RcloneRemote)

	s.Apply("no_such_key", "whatever") // silently ignored
}

func TestKeyClassifiers(t *testing.T) {
	for _, k := range BoolKeys {
		assert.True(t, IsBoolKey(k), k)
		assert.False(t, IsIntKey(k), k)
	}
	for _, k := range IntKeys {
		assert.True(t, IsIntKey(k), k)
		assert.False(t, IsBoolKey(k), k)
	}
	assert.False(t, IsBoolKey("api_url"))
	assert.False(t, IsIntKey("api_url"))
}

func TestMapRoundTrip(t *testing.T) {
	s := DefaultSettings()
	s.APIKey = "sk-test"
	s.ConcurrencyUpload = 3

	m := s.Map()
	require.Equal(t, "sk-test", m["api_key"])
	require.Equal(t, 3, m["concurrency_upload"])

	// Re-applying the map must reproduce the same settings.
	rebuilt := DefaultSettings()
	for k, v := range m {
		rebuilt.Apply(k, v)
	}
	if diff := cmp.Diff(s, rebuilt); diff != "" {
		t.Fatalf("map round trip lost data (-want +got):\n%s", diff)
	}
}
