// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides full-text search over saved chats.
package index

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// STORE WATCHER
// =============================================================================

// storeWatcher keeps the index in sync with the history store's directory
// using fsnotify, with debouncing so rapid rewrites index once.
type storeWatcher struct {
	idx      *ChatIndex
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time // Chat name -> last change time
	removed map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func newStoreWatcher(idx *ChatIndex, debounce time.Duration) (*storeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &storeWatcher{
		idx:      idx,
		watcher:  watcher,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		removed:  make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching the store directory.
func (sw *storeWatcher) Watch() error {
	if err := sw.watcher.Add(sw.idx.store.BaseDir); err != nil {
		return err
	}

	go sw.processEvents()
	go sw.processPending()

	return nil
}

func (sw *storeWatcher) processEvents() {
	defer func() {
		if r := recover(); r != nil {
			_ = r
		}
	}()

	for {
		select {
		case <-sw.ctx.Done():
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}

			name := chatNameFromPath(event.Name)
			if name == "" {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				sw.mu.Lock()
				sw.pending[name] = time.Now()
				delete(sw.removed, name)
				sw.mu.Unlock()
			}

			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				sw.mu.Lock()
				delete(sw.pending, name)
				sw.removed[name] = struct{}{}
				sw.mu.Unlock()
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			_ = err
		}
	}
}

func (sw *storeWatcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sw.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			sw.mu.Lock()
			var toIndex []string
			for name, changeTime := range sw.pending {
				if now.Sub(changeTime) >= sw.debounce {
					toIndex = append(toIndex, name)
					delete(sw.pending, name)
				}
			}
			var toRemove []string
			for name := range sw.removed {
				toRemove = append(toRemove, name)
				delete(sw.removed, name)
			}
			sw.mu.Unlock()

			for _, name := range toIndex {
				sw.idx.AddChat(name)
			}
			for _, name := range toRemove {
				sw.idx.RemoveChat(name)
			}
		}
	}
}

// Close stops watching and releases resources.
func (sw *storeWatcher) Close() error {
	sw.cancel()
	if sw.watcher != nil {
		return sw.watcher.Close()
	}
	return nil
}

// chatNameFromPath maps a store file path to a chat name, or "" for files
// the index does not track (the index database itself, temp files).
func chatNameFromPath(path string) string {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".json") {
		return ""
	}
	if strings.HasPrefix(base, ".tmp-") {
		return ""
	}
	return strings.TrimSuffix(base, ".json")
}
