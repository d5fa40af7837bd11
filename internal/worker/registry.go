// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"sync"

	"github.com/clearfeed/gatekeeper/internal/media"
)

// Registry maps a running task id to the runner owning its subprocess
// tree. At most one worker holds a given id at a time; entries are
// transient handles for cancellation, not ownership.
type Registry struct {
	mu sync.Mutex
	m  map[int]*media.Runner
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[int]*media.Runner)}
}

// Add publishes the runner for a task about to start work.
func (r *Registry) Add(id int, runner *media.Runner) {
	r.mu.Lock()
	r.m[id] = runner
	r.mu.Unlock()
}

// Remove drops the entry. Guaranteed-release step on every worker exit path.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	delete(r.m, id)
	r.mu.Unlock()
}

// Stop cancels the running task if present and reports whether it was.
func (r *Registry) Stop(id int) bool {
	r.mu.Lock()
	runner, ok := r.m[id]
	r.mu.Unlock()
	if ok {
		runner.Stop()
	}
	return ok
}

// Running reports whether the task currently holds a worker.
func (r *Registry) Running(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.m[id]
	return ok
}
