// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Toolkit binds the external tool binaries to one task's runner. The Log
// callback feeds the task's user-visible event stream; it may be nil.
type Toolkit struct {
	FFmpeg  string
	FFprobe string
	Rclone  string

	Runner *Runner
	Logger zerolog.Logger
	Log    func(msg string)
}

func (t *Toolkit) logf(format string, args ...any) {
	if t.Log == nil {
		return
	}
	if len(args) == 0 {
		t.Log(format)
		return
	}
	t.Log(fmt.Sprintf(format, args...))
}

// AudioStream is one audio track as reported by the probe tool.
type AudioStream struct {
	Index string
	Codec string
}

// ProbeDuration reads the container format duration. Zero means unknown;
// callers treat that as "not a video".
func (t *Toolkit) ProbeDuration(ctx context.Context, path string) float64 {
	out, err := t.Runner.Run(ctx, 30*time.Second, t.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ProbeAudioStreams lists the audio tracks in container order.
func (t *Toolkit) ProbeAudioStreams(ctx context.Context, path string) []AudioStream {
	out, err := t.Runner.Run(ctx, 10*time.Second, t.FFprobe,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index,codec_name",
		"-of", "csv=p=0",
		path)
	if err != nil {
		return nil
	}
	var streams []AudioStream
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(line, ",")
		if len(parts) >= 2 {
			streams = append(streams, AudioStream{
				Index: strings.TrimSpace(parts[0]),
				Codec: strings.ToLower(strings.TrimSpace(parts[1])),
			})
		}
	}
	return streams
}

// SmartAudioMap picks the stream selector that feeds the transcriber: skip
// a leading FLAC track when an alternative exists (the transcode path
// rejects the FLAC profile seen in the wild), otherwise the first track.
func (t *Toolkit) SmartAudioMap(ctx context.Context, path string) string {
	streams := t.ProbeAudioStreams(ctx, path)
	if len(streams) > 1 && strings.Contains(streams[0].Codec, "flac") {
		second := streams[1].Index
		t.logf("⚠️ 首选音轨为 FLAC，自动切换至 Stream #%s", second)
		return "0:" + second
	}
	return "0:a:0"
}

// ProbeSubtitleIndices lists the container stream ids of subtitle tracks.
func (t *Toolkit) ProbeSubtitleIndices(ctx context.Context, path string) []string {
	out, err := t.Runner.Run(ctx, 15*time.Second, t.FFprobe,
		"-v", "error",
		"-select_streams", "s",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		path)
	if err != nil {
		return nil
	}
	var idxs []string
	for _, line := range strings.Split(out, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			idxs = append(idxs, s)
		}
	}
	return idxs
}

// ProbeFormatTags dumps all format-level tags as one text blob for
// keyword inspection.
func (t *Toolkit) ProbeFormatTags(ctx context.Context, path string) string {
	out, err := t.Runner.Run(ctx, 30*time.Second, t.FFprobe,
		"-v", "error",
		"-show_entries", "format_tags",
		"-of", "csv=p=0",
		path)
	if err != nil {
		return ""
	}
	return out
}
