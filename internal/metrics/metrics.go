// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TaskOutcomes counts terminal transitions per stage.
	TaskOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_task_outcomes_total",
		Help: "Terminal task transitions by stage and outcome",
	}, []string{"stage", "outcome"})

	// TaskRetries counts internal re-enqueues of the detect stage.
	TaskRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_task_retries_total",
		Help: "Detect-stage re-enqueues after retryable failures",
	})

	// QueueDepth tracks the number of ids waiting in each queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gatekeeper_queue_depth",
		Help: "Task ids waiting per queue",
	}, []string{"queue"})

	// TranscribeDuration tracks one segment's transcription latency.
	TranscribeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatekeeper_transcribe_duration_seconds",
		Help:    "Duration of one audio segment transcription",
		Buckets: prometheus.ExponentialBuckets(0.5, 2.0, 10), // 0.5s to ~4min
	}, []string{"provider"})

	// TranscribeFailures counts per-provider transcription failures.
	TranscribeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_transcribe_failures_total",
		Help: "Transcription failures by provider",
	}, []string{"provider"})

	// UploadBytes counts bytes reported transferred by the upload tool.
	UploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_upload_bytes_total",
		Help: "Bytes transferred by the upload tool",
	})

	// SubprocessKills counts process-group kills issued on cancellation.
	SubprocessKills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_subprocess_kills_total",
		Help: "Process-group kills issued to external tools",
	})

	// KeywordHits counts content violations by keyword type.
	KeywordHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_keyword_hits_total",
		Help: "Blacklist hits by keyword type",
	}, []string{"type"})
)
