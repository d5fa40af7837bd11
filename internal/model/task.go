// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model defines the persisted records shared by the store, the
// workers and the API surface.
package model

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending       Status = "pending"
	StatusProcessing    Status = "processing"
	StatusPendingUpload Status = "pending_upload"
	StatusUploading     Status = "uploading"
	StatusUploaded      Status = "uploaded"
	StatusDirty         Status = "dirty"
	StatusError         Status = "error"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusUploaded, StatusDirty, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Stage names which half of the pipeline a task currently belongs to.
type Stage string

const (
	StageDetect Stage = "detect"
	StageUpload Stage = "upload"
)

// RetryLimit is the number of internal re-enqueues a detect task gets
// before the next failure becomes terminal.
const RetryLimit = 3

// Task is the unit of work. IDs live in a 1..9999 ring; see store.NextID.
type Task struct {
	ID          int
	Filename    string
	Filepath    string
	Status      Status
	Stage       Stage
	Progress    int
	Log         string
	RetryCount  int
	Overrides   Overrides
	UploadSpeed string
	UploadETA   string
	CreatedAt   time.Time
	FinishedAt  *time.Time
}

// Keyword is one blacklist entry. Type is one of audio/subtitle/meta.
type Keyword struct {
	ID      int64
	Type    string
	Content string
	Enabled bool
}

const (
	KeywordAudio    = "audio"
	KeywordSubtitle = "subtitle"
	KeywordMeta     = "meta"
)

// KeywordSet groups the enabled keyword contents by type for one detect run.
type KeywordSet struct {
	Audio    []string
	Subtitle []string
	Meta     []string
}
