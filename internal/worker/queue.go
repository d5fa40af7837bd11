// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package worker runs the two bounded-concurrency pools that drain the
// detect and upload queues, plus the registry that lets a cancel request
// reach the subprocess a worker currently owns.
package worker

import (
	"context"

	"github.com/clearfeed/gatekeeper/internal/metrics"
)

// queueSize leaves ample headroom over the 9999-slot task id ring.
const queueSize = 16384

// Queue is an in-memory FIFO of task ids. Durability comes from task
// status in the store, not from the queue: a restart rebuilds both queues
// from persisted rows.
type Queue struct {
	name string
	ch   chan int
}

// NewQueue returns a named FIFO.
func NewQueue(name string) *Queue {
	return &Queue{name: name, ch: make(chan int, queueSize)}
}

// Name returns the queue's metric label.
func (q *Queue) Name() string { return q.name }

// Put enqueues one id.
func (q *Queue) Put(id int) {
	q.ch <- id
	metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.ch)))
}

// Take blocks until an id is available or the context ends.
func (q *Queue) Take(ctx context.Context) (int, bool) {
	select {
	case id := <-q.ch:
		metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.ch)))
		return id, true
	case <-ctx.Done():
		return 0, false
	}
}

// Len reports the ids currently waiting.
func (q *Queue) Len() int { return len(q.ch) }
