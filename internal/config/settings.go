// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Settings is the effective runtime configuration for one task, resolved
// as defaults <- persisted config rows <- per-task overrides.
type Settings struct {
	CheckAudio          bool
	CheckSubtitles      bool
	SanitizeMetadata    bool
	EnableLocalModel    bool
	DetailedMode        bool
	NotifyUploadSuccess bool
	NotifyErrors        bool

	AudioThresholdMulti int // seconds; above this, mid+head segments join tail
	AudioThresholdLong  int // seconds; above this, the tail window doubles
	AudioLenHead        int
	AudioLenMid         int
	AudioLenTail        int
	AudioLenTailLong    int
	ConcurrencyDetect   int
	ConcurrencyUpload   int

	APIURL   string // cloud transcription endpoint
	APIKey   string
	APIModel string

	ScanPath     string
	RcloneRemote string
	APIToken     string // shared secret for /api/trigger

	TGBotToken    string
	TGChatID      string
	DownloadProxy string
}

// DefaultSettings mirrors the seed values of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		CheckAudio:          true,
		CheckSubtitles:      true,
		SanitizeMetadata:    true,
		EnableLocalModel:    false,
		DetailedMode:        false,
		NotifyUploadSuccess: false,
		NotifyErrors:        true,

		AudioThresholdMulti: 600,
		AudioThresholdLong:  3600,
		AudioLenHead:        240,
		AudioLenMid:         240,
		AudioLenTail:        300,
		AudioLenTailLong:    600,
		ConcurrencyDetect:   2,
		ConcurrencyUpload:   9,

		APIURL:       "https://api.siliconflow.cn/v1/audio/transcriptions",
		APIModel:     "FunAudioLLM/SenseVoiceSmall",
		ScanPath:     "/root/downloads",
		RcloneRemote: "s25",
	}
}

// BoolKeys and IntKeys drive the per-key coercion; everything else is a string.
var (
	BoolKeys = []string{
		"check_audio", "check_subtitles", "sanitize_metadata", "enable_local_model",
		"detailed_mode", "notify_upload_success", "notify_errors",
	}
	IntKeys = []string{
		"audio_threshold_multi", "audio_threshold_long",
		"audio_len_head", "audio_len_mid", "audio_len_tail", "audio_len_tail_long",
		"concurrency_detect", "concurrency_upload",
	}
)

// IsBoolKey reports whether key coerces from "true"/"false" text.
func IsBoolKey(key string) bool {
	for _, k := range BoolKeys {
		if k == key {
			return true
		}
	}
	return false
}

// IsIntKey reports whether key coerces from decimal text.
func IsIntKey(key string) bool {
	for _, k := range IntKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Apply coerces one key/value pair onto the settings. Unknown keys and
// unparsable integers are ignored, matching the forgiving store semantics.
func (s *Settings) Apply(key string, value any) {
	switch key {
	case "check_audio":
		s.CheckAudio = truthy(value)
	case "check_subtitles":
		s.CheckSubtitles = truthy(value)
	case "sanitize_metadata":
		s.SanitizeMetadata = truthy(value)
	case "enable_local_model":
		s.EnableLocalModel = truthy(value)
	case "detailed_mode":
		s.DetailedMode = truthy(value)
	case "notify_upload_success":
		s.NotifyUploadSuccess = truthy(value)
	case "notify_errors":
		s.NotifyErrors = truthy(value)

	case "audio_threshold_multi":
		applyInt(&s.AudioThresholdMulti, value)
	case "audio_threshold_long":
		applyInt(&s.AudioThresholdLong, value)
	case "audio_len_head":
		applyInt(&s.AudioLenHead, value)
	case "audio_len_mid":
		applyInt(&s.AudioLenMid, value)
	case "audio_len_tail":
		applyInt(&s.AudioLenTail, value)
	case "audio_len_tail_long":
		applyInt(&s.AudioLenTailLong, value)
	case "concurrency_detect":
		applyInt(&s.ConcurrencyDetect, value)
	case "concurrency_upload":
		applyInt(&s.ConcurrencyUpload, value)

	case "api_url":
		s.APIURL = text(value)
	case "api_key":
		s.APIKey = text(value)
	case "api_model":
		s.APIModel = text(value)
	case "scan_path":
		s.ScanPath = text(value)
	case "rclone_remote":
		s.RcloneRemote = text(value)
	case "api_token":
		s.APIToken = text(value)
	case "tg_bot_token":
		s.TGBotToken = text(value)
	case "tg_chat_id":
		s.TGChatID = text(value)
	case "download_proxy":
		s.DownloadProxy = text(value)
	}
}

// Resolve layers persisted rows and then per-task overrides over defaults.
func Resolve(persisted map[string]string, overrides map[string]any) Settings {
	s := DefaultSettings()
	for k, v := range persisted {
		s.Apply(k, v)
	}
	for k, v := range overrides {
		if v == nil || strings.HasPrefix(k, "_") {
			continue
		}
		s.Apply(k, v)
	}
	return s
}

// Map renders the settings back into the key/value form used by the
// settings API and the store.
func (s Settings) Map() map[string]any {
	return map[string]any{
		"check_audio":           s.CheckAudio,
		"check_subtitles":       s.CheckSubtitles,
		"sanitize_metadata":     s.SanitizeMetadata,
		"enable_local_model":    s.EnableLocalModel,
		"detailed_mode":         s.DetailedMode,
		"notify_upload_success": s.NotifyUploadSuccess,
		"notify_errors":         s.NotifyErrors,

		"audio_threshold_multi": s.AudioThresholdMulti,
		"audio_threshold_long":  s.AudioThresholdLong,
		"audio_len_head":        s.AudioLenHead,
		"audio_len_mid":         s.AudioLenMid,
		"audio_len_tail":        s.AudioLenTail,
		"audio_len_tail_long":   s.AudioLenTailLong,
		"concurrency_detect":    s.ConcurrencyDetect,
		"concurrency_upload":    s.ConcurrencyUpload,

		"api_url":        s.APIURL,
		"api_key":        s.APIKey,
		"api_model":      s.APIModel,
		"scan_path":      s.ScanPath,
		"rclone_remote":  s.RcloneRemote,
		"api_token":      s.APIToken,
		"tg_bot_token":   s.TGBotToken,
		"tg_chat_id":     s.TGChatID,
		"download_proxy": s.DownloadProxy,
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	default:
		return strings.EqualFold(strings.TrimSpace(text(v)), "true")
	}
}

func applyInt(dst *int, v any) {
	switch t := v.(type) {
	case int:
		*dst = t
	case float64:
		*dst = int(t)
	default:
		if n, err := strconv.Atoi(strings.TrimSpace(text(v))); err == nil {
			*dst = n
		}
	}
}

func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
