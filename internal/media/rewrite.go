// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"fmt"
	"os"
	"time"
)

// minValidSize guards against ffmpeg writing a header-only stub on failure.
const minValidSize = 1024

// RemuxSpec describes one copy-remux: which streams to keep and whether to
// drop all format tags and per-stream titles.
type RemuxSpec struct {
	Maps          []string // e.g. "0:v:0", "0:a?", "0:7"
	StripMetadata bool
}

// Remux copies the selected streams of src into out without re-encoding.
// The output is verified (exists, >=1 KiB, probe duration > 0); a failed or
// invalid rewrite removes the output and returns an error, leaving src
// untouched.
func (t *Toolkit) Remux(ctx context.Context, src, out string, spec RemuxSpec) error {
	args := []string{"-err_detect", "ignore_err", "-i", src}
	for _, m := range spec.Maps {
		args = append(args, "-map", m)
	}
	args = append(args, "-c", "copy", "-dn", "-ignore_unknown")
	if spec.StripMetadata {
		args = append(args, "-strict", "-2", "-map_metadata", "-1")
	}
	args = append(args, "-y", out)

	_, err := t.Runner.Run(ctx, 300*time.Second, t.FFmpeg, args...)
	if err != nil {
		_ = os.Remove(out)
		return fmt.Errorf("media: remux %s: %w", src, err)
	}
	if !t.VerifyIntegrity(ctx, out) {
		_ = os.Remove(out)
		return fmt.Errorf("media: remux %s: output failed integrity check", src)
	}
	return nil
}

// ReplaceSource swaps the verified rewrite over the original in place.
// Same-directory rename, so the swap is atomic on POSIX filesystems.
func (t *Toolkit) ReplaceSource(out, src string) error {
	if err := os.Rename(out, src); err != nil {
		_ = os.Remove(out)
		return fmt.Errorf("media: replace %s: %w", src, err)
	}
	return nil
}

// VerifyIntegrity reports whether path looks like a playable container:
// present, at least minValidSize bytes, and a positive probe duration.
func (t *Toolkit) VerifyIntegrity(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() < minValidSize {
		return false
	}
	return t.ProbeDuration(ctx, path) > 0
}
