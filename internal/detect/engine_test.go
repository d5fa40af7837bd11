// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package detect

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/clearfeed/gatekeeper/internal/config"
	"github.com/clearfeed/gatekeeper/internal/media"
	"github.com/clearfeed/gatekeeper/internal/transcribe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *media.Runner, *[]string) {
	t.Helper()
	runner := media.NewRunner()
	var logs []string
	tk := &media.Toolkit{
		// "false" exits non-zero, so every probe degrades to its zero value
		// instead of blocking on a real tool.
		FFmpeg:  "false",
		FFprobe: "false",
		Runner:  runner,
		Log:     func(msg string) { logs = append(logs, msg) },
	}
	return &Engine{
		Toolkit:     tk,
		Transcriber: &transcribe.Transcriber{},
		TempDir:     t.TempDir(),
	}, runner, &logs
}

func writeFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))
	return path
}

func baseOptions() Options {
	s := config.DefaultSettings()
	s.SanitizeMetadata = false
	s.CheckSubtitles = false
	s.CheckAudio = false
	return Options{TaskID: 1, Settings: s, Attempt: 1, RetryLimit: 3}
}

func TestProcessDirectUploadShortCircuits(t *testing.T) {
	e, _, _ := newTestEngine(t)
	opt := baseOptions()
	opt.DirectUpload = true

	// Direct upload never touches the filesystem, so a bogus path is fine.
	res, err := e.Process(context.Background(), "/nonexistent/a.mkv", opt)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, res.Status)
}

func TestProcessMissingFile(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.Process(context.Background(), "/nonexistent/a.mkv", baseOptions())
	assert.Error(t, err)
}

func TestProcessNonVideoPassesThrough(t *testing.T) {
	e, _, logs := newTestEngine(t)
	path := writeFile(t, "notes.txt")

	res, err := e.Process(context.Background(), path, baseOptions())
	require.NoError(t, err)
	assert.Equal(t, StatusReady, res.Status)
	assert.Empty(t, res.NewPath)
	require.NotEmpty(t, *logs)
	assert.Contains(t, (*logs)[0], "非视频文件")
}

func TestProcessAllChecksDisabled(t *testing.T) {
	e, _, logs := newTestEngine(t)
	path := writeFile(t, "movie.mkv")

	var lastProgress int
	e.Progress = func(pct int) { lastProgress = pct }

	res, err := e.Process(context.Background(), path, baseOptions())
	require.NoError(t, err)
	assert.Equal(t, StatusReady, res.Status)
	assert.Equal(t, 100, lastProgress)
	assert.Contains(t, *logs, "✅ 全流程通过")
}

func TestProcessAudioCheckSkipsUnprobeableDuration(t *testing.T) {
	e, _, _ := newTestEngine(t)
	path := writeFile(t, "movie.mkv")

	opt := baseOptions()
	opt.Settings.CheckAudio = true

	// The probe tool fails, duration reads as zero, so the audio scan is
	// skipped and the file passes.
	res, err := e.Process(context.Background(), path, opt)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, res.Status)
}

func TestAudioScanSkipsCheckpointedSegments(t *testing.T) {
	e, _, logs := newTestEngine(t)

	// Real probe output so the audio plan is built; the mux tool stays
	// "false", so any extraction attempt would fail the run.
	probe := filepath.Join(t.TempDir(), "ffprobe")
	require.NoError(t, os.WriteFile(probe, []byte("#!/bin/sh\necho 400\n"), 0o755))
	e.Toolkit.FFprobe = probe

	path := writeFile(t, "movie.mkv")
	opt := baseOptions()
	opt.Settings.CheckAudio = true
	opt.Passed = []string{SegmentTail}

	// 400s plans only the tail window, and the tail is checkpointed, so
	// the scan must finish clean without ever extracting audio.
	res, err := e.Process(context.Background(), path, opt)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, res.Status)
	assert.Contains(t, *logs, "⏭️ [断点] 跳过: "+SegmentTail)
}

func TestProcessStoppedRunner(t *testing.T) {
	e, runner, _ := newTestEngine(t)
	runner.Stop()

	res, err := e.Process(context.Background(), "/any/a.mkv", baseOptions())
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
}
