// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "encoding/json"

// Overrides is the per-task settings shadow, persisted as a JSON blob.
// Two keys are reserved: "_passed" holds the audio segments already
// verified clean (the cross-restart checkpoint), and "direct_upload"
// short-circuits detection entirely.
type Overrides map[string]any

const (
	overridePassed       = "_passed"
	overrideDirectUpload = "direct_upload"
)

// ParseOverrides decodes the stored blob. An empty blob yields an empty,
// non-nil map so callers can mutate freely.
func ParseOverrides(raw string) Overrides {
	ov := Overrides{}
	if raw == "" {
		return ov
	}
	// A corrupt blob degrades to "no overrides" rather than failing the task.
	_ = json.Unmarshal([]byte(raw), &ov)
	return ov
}

// Encode serialises the overrides back to the storage blob. An empty map
// encodes to "" so untouched tasks keep a NULL-ish column.
func (o Overrides) Encode() string {
	if len(o) == 0 {
		return ""
	}
	b, err := json.Marshal(o)
	if err != nil {
		return ""
	}
	return string(b)
}

// Passed returns the checkpointed segment names.
func (o Overrides) Passed() []string {
	raw, ok := o[overridePassed]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// AddPassed records one more clean segment, deduplicating.
func (o Overrides) AddPassed(segment string) {
	passed := o.Passed()
	for _, s := range passed {
		if s == segment {
			return
		}
	}
	o[overridePassed] = append(passed, segment)
}

// ClearPassed drops the checkpoint list; manual retries rescan everything.
func (o Overrides) ClearPassed() {
	delete(o, overridePassed)
}

// DirectUpload reports whether detection is bypassed for this task.
func (o Overrides) DirectUpload() bool {
	switch v := o[overrideDirectUpload].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// SetDirectUpload marks the task for the detection bypass.
func (o Overrides) SetDirectUpload() {
	o[overrideDirectUpload] = true
}
