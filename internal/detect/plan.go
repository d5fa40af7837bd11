// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package detect

import "github.com/clearfeed/gatekeeper/internal/config"

// Segment names are operator-facing and persist inside the `_passed`
// checkpoint list, so they stay in the operators' language.
const (
	SegmentHead = "片头"
	SegmentMid  = "中间"
	SegmentTail = "片尾"
)

// Segment is one audio window sampled from the file.
type Segment struct {
	Name     string
	Start    float64
	Duration float64
}

// PlanSegments builds the sampling plan for a file of the given duration.
// The tail window is always sampled (ads cluster at the end) and doubles
// for long features; mid and head join only past the multi threshold.
// Execution order tail -> mid -> head so violations short-circuit early.
func PlanSegments(duration float64, s config.Settings) []Segment {
	tailLen := float64(s.AudioLenTail)
	if duration >= float64(s.AudioThresholdLong) {
		tailLen = float64(s.AudioLenTailLong)
	}

	plan := []Segment{{
		Name:     SegmentTail,
		Start:    max(0, duration-tailLen),
		Duration: tailLen,
	}}

	if duration > float64(s.AudioThresholdMulti) {
		midLen := float64(s.AudioLenMid)
		plan = append(plan,
			Segment{
				Name:     SegmentMid,
				Start:    max(0, duration/2-midLen/2),
				Duration: midLen,
			},
			Segment{
				Name:     SegmentHead,
				Start:    0,
				Duration: float64(s.AudioLenHead),
			},
		)
	}
	return plan
}
