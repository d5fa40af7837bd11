// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config holds the two configuration layers: the immutable
// bootstrap read at process start (file + environment) and the mutable
// runtime settings resolved per task from the store.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bootstrap is everything the daemon needs before the store is open.
// Values resolve file < environment.
type Bootstrap struct {
	Listen   string `yaml:"listen"`
	DataDir  string `yaml:"data_dir"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	FFmpegBin  string `yaml:"ffmpeg_bin"`
	FFprobeBin string `yaml:"ffprobe_bin"`
	RcloneBin  string `yaml:"rclone_bin"`

	// Local speech-to-text engine: a whisper.cpp style CLI plus model file.
	LocalSTTBin   string `yaml:"local_stt_bin"`
	LocalSTTModel string `yaml:"local_stt_model"`

	TempDir string `yaml:"temp_dir"`

	// WatchScanRoot enables the fsnotify submitter on the scan path.
	WatchScanRoot bool `yaml:"watch_scan_root"`
}

// DefaultBootstrap returns the baked-in defaults.
func DefaultBootstrap() Bootstrap {
	return Bootstrap{
		Listen:        ":5000",
		DataDir:       "/var/lib/gatekeeper",
		LogLevel:      "info",
		FFmpegBin:     "ffmpeg",
		FFprobeBin:    "ffprobe",
		RcloneBin:     "rclone",
		LocalSTTBin:   "whisper-cli",
		LocalSTTModel: "",
		TempDir:       os.TempDir(),
	}
}

// LoadBootstrap reads the optional YAML file and applies GK_* environment
// overrides. A missing file is not an error; a malformed one is.
func LoadBootstrap(path string) (Bootstrap, error) {
	b := DefaultBootstrap()

	if path != "" {
		raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			if !os.IsNotExist(err) {
				return b, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &b); err != nil {
			return b, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&b)

	if b.DBPath == "" {
		b.DBPath = b.DataDir + "/tasks.db"
	}
	return b, nil
}

func applyEnv(b *Bootstrap) {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("GK_LISTEN", &b.Listen)
	envStr("GK_DATA_DIR", &b.DataDir)
	envStr("GK_DB_PATH", &b.DBPath)
	envStr("GK_LOG_LEVEL", &b.LogLevel)
	envStr("GK_FFMPEG_BIN", &b.FFmpegBin)
	envStr("GK_FFPROBE_BIN", &b.FFprobeBin)
	envStr("GK_RCLONE_BIN", &b.RcloneBin)
	envStr("GK_LOCAL_STT_BIN", &b.LocalSTTBin)
	envStr("GK_LOCAL_STT_MODEL", &b.LocalSTTModel)
	envStr("GK_TEMP_DIR", &b.TempDir)
	if v := os.Getenv("GK_WATCH_SCAN_ROOT"); v != "" {
		b.WatchScanRoot = v == "true" || v == "1"
	}
}
