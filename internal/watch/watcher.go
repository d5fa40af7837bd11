// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watch submits files that appear under the scan root without an
// external trigger. Files are submitted only once their size has settled,
// so half-written downloads never enter the pipeline.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clearfeed/gatekeeper/internal/detect"
	"github.com/clearfeed/gatekeeper/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// settleCycles is how many consecutive polls a file's size must hold
// before it counts as fully written.
const settleCycles = 2

// pollInterval paces the settle checks.
const pollInterval = 3 * time.Second

type candidate struct {
	size   int64
	stable int
}

// Watcher mirrors filesystem activity under Root into Submit calls.
type Watcher struct {
	Root   string
	Submit func(path string)

	logger zerolog.Logger
}

// New returns a watcher for the given root. Submit runs on the watcher
// goroutine and must not block.
func New(root string, submit func(path string)) *Watcher {
	return &Watcher{
		Root:   root,
		Submit: submit,
		logger: log.WithComponent("watch"),
	}
}

// Run watches until ctx is cancelled. The root must exist at call time;
// subdirectories created later are picked up automatically.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.Root); err != nil {
		return err
	}
	w.logger.Info().Str("root", w.Root).Msg("scan root watcher started")

	pending := map[string]*candidate{}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, ev, pending)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")

		case <-ticker.C:
			w.sweep(pending)
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event, pending map[string]*candidate) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			delete(pending, ev.Name)
		}
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			if err := w.addTree(fsw, ev.Name); err != nil {
				w.logger.Warn().Err(err).Str("dir", ev.Name).Msg("cannot watch new directory")
			}
		}
		return
	}
	if !w.eligible(ev.Name) {
		return
	}
	// Any write resets the settle count.
	pending[ev.Name] = &candidate{size: info.Size()}
}

// sweep promotes candidates whose size held for settleCycles polls.
func (w *Watcher) sweep(pending map[string]*candidate) {
	for path, c := range pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(pending, path)
			continue
		}
		if info.Size() != c.size {
			c.size = info.Size()
			c.stable = 0
			continue
		}
		c.stable++
		if c.stable < settleCycles {
			continue
		}
		delete(pending, path)
		w.logger.Info().Str("path", path).Int64("size", info.Size()).Msg("file settled, submitting")
		w.Submit(path)
	}
}

// eligible filters out non-video files, hidden files, and the pipeline's
// own scrub outputs (those are renamed into place, not new arrivals).
func (w *Watcher) eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.Contains(base, "_clean") {
		return false
	}
	return detect.IsVideo(path)
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				w.logger.Warn().Err(err).Str("dir", path).Msg("cannot watch directory")
			}
		}
		return nil
	})
}
