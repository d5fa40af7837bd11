// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/clearfeed/gatekeeper/internal/metrics"
	"github.com/clearfeed/gatekeeper/internal/procgroup"
)

// UploadProgress is one progress tick parsed from the upload tool's
// JSON log stream.
type UploadProgress struct {
	Percent int
	Speed   string // human-readable, e.g. "12.4 MB/s"
	ETA     string // human-readable, e.g. "3m 12s"
}

// RemotePrefix derives the upload destination from the file's folder: the
// directory directly under the scan root names the remote; files sitting in
// the root itself go to the configured default.
func RemotePrefix(localPath, rootName, defaultRemote string) string {
	folder := filepath.Base(filepath.Dir(localPath))
	if folder == rootName || folder == "" || folder == "." || folder == string(filepath.Separator) {
		return defaultRemote
	}
	return folder
}

// rcloneStats is the subset of rclone's --use-json-log stats records the
// progress stream cares about.
type rcloneStats struct {
	Stats struct {
		Speed        float64 `json:"speed"`
		ETA          float64 `json:"eta"`
		Transferring []struct {
			Bytes int64 `json:"bytes"`
			Size  int64 `json:"size"`
		} `json:"transferring"`
	} `json:"stats"`
}

// Upload moves localPath to "<remotePrefix>:<filename>" with the upload
// tool in move mode: success removes the local file. onProgress receives
// live ticks; it may be nil. A Stop during the transfer returns ErrStopped;
// a cancelled context kills the transfer and returns the context error.
func (t *Toolkit) Upload(ctx context.Context, localPath, remotePrefix string, onProgress func(UploadProgress)) error {
	if t.Runner.Stopped() {
		return ErrStopped
	}

	remote := fmt.Sprintf("%s:%s", remotePrefix, filepath.Base(localPath))
	t.logf("☁️ 上传: %s", remote)

	cmd := exec.Command(t.Rclone, // #nosec G204 -- fixed arg set
		"moveto", localPath, remote,
		"--use-json-log",
		"--stats", "1s",
		"-v",
		"--ignore-size",
		"--no-traverse",
		"--drive-chunk-size", "64M")
	procgroup.Set(cmd)

	// Progress rides on stderr as newline-delimited JSON.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("media: upload pipe: %w", err)
	}
	cmd.Stdout = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("media: upload start: %w", err)
	}
	t.Runner.setCurrent(cmd)
	defer t.Runner.setCurrent(nil)

	// A cancelled context (daemon shutdown) kills the transfer tree just
	// like an operator Stop does.
	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = procgroup.Kill(cmd)
		case <-waitDone:
		}
	}()

	var lastBytes int64
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if t.Runner.Stopped() {
			_ = procgroup.Kill(cmd)
			break
		}
		var rec rcloneStats
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if len(rec.Stats.Transferring) == 0 {
			continue
		}
		tr := rec.Stats.Transferring[0]
		size := tr.Size
		if size <= 0 {
			size = 1
		}
		if tr.Bytes > lastBytes {
			metrics.UploadBytes.Add(float64(tr.Bytes - lastBytes))
			lastBytes = tr.Bytes
		}
		if onProgress != nil {
			onProgress(UploadProgress{
				Percent: int(float64(tr.Bytes) / float64(size) * 100),
				Speed:   fmt.Sprintf("%.1f MB/s", rec.Stats.Speed/1048576),
				ETA:     formatETA(int(rec.Stats.ETA)),
			})
		}
	}

	err = cmd.Wait()
	close(waitDone)
	if t.Runner.Stopped() {
		return ErrStopped
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("media: upload failed: %w", err)
	}
	return nil
}

func formatETA(seconds int) string {
	if seconds <= 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}
