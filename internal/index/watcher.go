// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcher keeps the index in sync with the transcript directory.
type watcher interface {
	Watch() error
	Close() error
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// fsnotifyWatcher reacts to filesystem events on the transcript directory.
// Events are debounced per file: the store writes atomically via rename, so
// a settled file is always complete.
type fsnotifyWatcher struct {
	idx      *TranscriptIndex
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func newFsnotifyWatcher(idx *TranscriptIndex, debounce time.Duration) (*fsnotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &fsnotifyWatcher{
		idx:      idx,
		watcher:  w,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (fw *fsnotifyWatcher) Watch() error {
	if err := fw.watcher.Add(fw.idx.store.BaseDir); err != nil {
		return err
	}
	go fw.processEvents()
	go fw.processPending()
	return nil
}

func (fw *fsnotifyWatcher) processEvents() {
	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !isTranscriptFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fw.mu.Lock()
				fw.pending[event.Name] = time.Now()
				fw.mu.Unlock()
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				fw.idx.Remove(transcriptIDFromPath(event.Name))
			}

		case _, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (fw *fsnotifyWatcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			fw.mu.Lock()
			var toProcess []string
			for path, changeTime := range fw.pending {
				if now.Sub(changeTime) >= fw.debounce {
					toProcess = append(toProcess, path)
					delete(fw.pending, path)
				}
			}
			fw.mu.Unlock()

			for _, path := range toProcess {
				fw.reindex(path)
			}
		}
	}
}

func (fw *fsnotifyWatcher) reindex(path string) {
	id := transcriptIDFromPath(path)
	conv, err := fw.idx.store.Load(id)
	if err != nil {
		// Deleted between event and debounce, or unreadable.
		fw.idx.Remove(id)
		return
	}
	fw.idx.Update(conv)
}

func (fw *fsnotifyWatcher) Close() error {
	fw.cancel()
	return fw.watcher.Close()
}

// =============================================================================
// POLLING WATCHER (FALLBACK)
// =============================================================================

// pollingWatcher rescans the transcript directory on an interval. Used when
// fsnotify is unavailable (some network filesystems).
type pollingWatcher struct {
	idx      *TranscriptIndex
	interval time.Duration

	mu    sync.Mutex
	files map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func newPollingWatcher(idx *TranscriptIndex, interval time.Duration) *pollingWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &pollingWatcher{
		idx:      idx,
		interval: interval,
		files:    make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (pw *pollingWatcher) Watch() error {
	if err := pw.scan(); err != nil {
		return err
	}
	go pw.poll()
	return nil
}

func (pw *pollingWatcher) scan() error {
	entries, err := os.ReadDir(pw.idx.store.BaseDir)
	if err != nil {
		return err
	}

	newFiles := make(map[string]time.Time)
	for _, entry := range entries {
		if entry.IsDir() || !isTranscriptFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		newFiles[filepath.Join(pw.idx.store.BaseDir, entry.Name())] = info.ModTime()
	}

	pw.mu.Lock()
	pw.files = newFiles
	pw.mu.Unlock()
	return nil
}

func (pw *pollingWatcher) poll() {
	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.ctx.Done():
			return
		case <-ticker.C:
			pw.checkChanges()
		}
	}
}

func (pw *pollingWatcher) checkChanges() {
	pw.mu.Lock()
	oldFiles := make(map[string]time.Time, len(pw.files))
	for k, v := range pw.files {
		oldFiles[k] = v
	}
	pw.mu.Unlock()

	if err := pw.scan(); err != nil {
		return
	}

	pw.mu.Lock()
	currentFiles := pw.files
	pw.mu.Unlock()

	for path, modTime := range currentFiles {
		if oldTime, exists := oldFiles[path]; !exists || !oldTime.Equal(modTime) {
			id := transcriptIDFromPath(path)
			if conv, err := pw.idx.store.Load(id); err == nil {
				pw.idx.Update(conv)
			}
		}
	}
	for path := range oldFiles {
		if _, exists := currentFiles[path]; !exists {
			pw.idx.Remove(transcriptIDFromPath(path))
		}
	}
}

func (pw *pollingWatcher) Close() error {
	pw.cancel()
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isTranscriptFile(path string) bool {
	return strings.HasSuffix(path, ".json") && !strings.HasPrefix(filepath.Base(path), ".")
}

func transcriptIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".json")
}

// startWatcher starts the fsnotify watcher, falling back to polling.
func (idx *TranscriptIndex) startWatcher() error {
	fw, err := newFsnotifyWatcher(idx, idx.config.WatchDebounce)
	if err == nil {
		if err := fw.Watch(); err == nil {
			idx.watcher = fw
			return nil
		}
		fw.Close()
	}

	pw := newPollingWatcher(idx, 5*time.Second)
	if err := pw.Watch(); err != nil {
		return err
	}
	idx.watcher = pw
	return nil
}
