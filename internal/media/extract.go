// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"fmt"
	"time"
)

// ExtractSubtitleWebVTT converts one subtitle track to WebVTT text on
// stdout. An empty result means the extract failed or the track is empty;
// both are non-fatal for the caller.
func (t *Toolkit) ExtractSubtitleWebVTT(ctx context.Context, path, streamID string) string {
	out, err := t.Runner.Run(ctx, 90*time.Second, t.FFmpeg,
		"-v", "error",
		"-i", path,
		"-map", "0:"+streamID,
		"-f", "webvtt",
		"-")
	if err != nil {
		return ""
	}
	return out
}

// ExtractAudioSegment decodes [start, start+duration) of the selected audio
// stream to 16 kHz mono signed-16-bit PCM at outWav.
func (t *Toolkit) ExtractAudioSegment(ctx context.Context, path string, start, duration float64, outWav, audioMap string) error {
	_, err := t.Runner.Run(ctx, 120*time.Second, t.FFmpeg,
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", duration),
		"-i", path,
		"-map", audioMap,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y", outWav)
	if err != nil {
		return fmt.Errorf("media: extract audio segment: %w", err)
	}
	return nil
}
