// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package detect

import (
	"path/filepath"
	"strings"
)

// videoExtensions is the recognized container set; anything else passes
// straight to the upload stage without inspection.
var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {},
	".webm": {}, ".m4v": {}, ".ts": {}, ".mts": {}, ".m2ts": {}, ".vob": {},
	".mpg": {}, ".mpeg": {}, ".3gp": {}, ".rmvb": {}, ".dat": {}, ".asf": {},
	".divx": {},
}

// IsVideo reports whether the path carries a recognized video extension.
func IsVideo(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// matchKeywords tests case-sensitive substring membership of each keyword
// and returns the operator-facing hit reason.
func matchKeywords(text string, keywords []string) (bool, string) {
	if text == "" || len(keywords) == 0 {
		return false, ""
	}
	var hits []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			hits = append(hits, kw)
		}
	}
	if len(hits) == 0 {
		return false, ""
	}
	return true, "命中: " + strings.Join(hits, ", ")
}

// matchKeywordsFold is the case-insensitive variant used for metadata tags.
func matchKeywordsFold(text string, keywords []string) (bool, []string) {
	if text == "" || len(keywords) == 0 {
		return false, nil
	}
	lower := strings.ToLower(text)
	var hits []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			hits = append(hits, kw)
		}
	}
	return len(hits) > 0, hits
}
