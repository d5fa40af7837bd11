// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"context"
	"sync"

	"github.com/clearfeed/gatekeeper/internal/config"
	"github.com/clearfeed/gatekeeper/internal/log"
	"github.com/clearfeed/gatekeeper/internal/notify"
	"github.com/clearfeed/gatekeeper/internal/store"
	"github.com/google/uuid"
)

// Deps wires the collaborators every worker needs.
type Deps struct {
	Store    *store.Store
	Registry *Registry
	DetectQ  *Queue
	UploadQ  *Queue
	Notifier *notify.Notifier
	Boot     config.Bootstrap
}

// Pools owns the detect and upload worker goroutines.
type Pools struct {
	deps   Deps
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StartPools launches nDetect detect workers and nUpload upload workers.
// Both counts are clamped to a minimum of one.
func StartPools(deps Deps, nDetect, nUpload int) *Pools {
	if nDetect < 1 {
		nDetect = 1
	}
	if nUpload < 1 {
		nUpload = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pools{deps: deps, cancel: cancel}

	for i := 0; i < nDetect; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w := &detectWorker{deps: deps, owner: uuid.NewString()[:8]}
			w.run(ctx)
		}()
	}
	for i := 0; i < nUpload; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w := &uploadWorker{deps: deps, owner: uuid.NewString()[:8]}
			w.run(ctx)
		}()
	}

	logger := log.WithComponent("worker")
	logger.Info().
		Int("detect", nDetect).
		Int("upload", nUpload).
		Msg("worker pools started")
	return p
}

// Stop cancels the queue waits and joins all workers. In-flight stage work
// finishes its current terminal write before the goroutine exits.
func (p *Pools) Stop() {
	p.cancel()
	p.wg.Wait()
}
