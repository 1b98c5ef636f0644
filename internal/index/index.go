// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides full-text search over saved chats.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/llmui/internal/history"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotIndexed = errors.New("chats not indexed")
	ErrIndexing   = errors.New("indexing in progress")
)

// =============================================================================
// CHAT INDEX
// =============================================================================

// ChatIndex maintains a SQLite full-text index over a history store's
// saved chats.
type ChatIndex struct {
	db      *sql.DB
	store   *history.Store
	watcher *storeWatcher
	mu      sync.RWMutex

	// Indexing state
	indexing    bool
	indexingMu  sync.Mutex
	lastRebuild time.Time

	config *Config
}

// Config holds index configuration.
type Config struct {
	// DatabasePath is where to store the SQLite database
	DatabasePath string

	// EnableWatch reindexes chats as their files change on disk
	EnableWatch bool

	// WatchDebounce is the debounce duration for file change events
	WatchDebounce time.Duration
}

// DefaultConfig returns default configuration for a store.
func DefaultConfig(store *history.Store) *Config {
	return &Config{
		DatabasePath:  filepath.Join(store.BaseDir, "index.db"),
		EnableWatch:   true,
		WatchDebounce: 500 * time.Millisecond,
	}
}

// New creates a chat index over the given store.
func New(store *history.Store, config *Config) (*ChatIndex, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if config == nil {
		config = DefaultConfig(store)
	}

	if err := os.MkdirAll(filepath.Dir(config.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &ChatIndex{
		db:     db,
		store:  store,
		config: config,
	}

	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return idx, nil
}

func (idx *ChatIndex) initSchema() error {
	if _, err := idx.db.Exec(Schema); err != nil {
		return err
	}
	_, err := idx.db.Exec(InitMetadata)
	return err
}

// Close closes the index and releases resources.
func (idx *ChatIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.watcher != nil {
		idx.watcher.Close()
		idx.watcher = nil
	}

	if idx.db != nil {
		return idx.db.Close()
	}
	return nil
}

// =============================================================================
// INDEXING
// =============================================================================

// Rebuild drops and re-indexes every chat in the store.
func (idx *ChatIndex) Rebuild(ctx context.Context) error {
	idx.indexingMu.Lock()
	if idx.indexing {
		idx.indexingMu.Unlock()
		return ErrIndexing
	}
	idx.indexing = true
	idx.indexingMu.Unlock()

	defer func() {
		idx.indexingMu.Lock()
		idx.indexing = false
		idx.indexingMu.Unlock()
	}()

	metas, err := idx.store.List()
	if err != nil {
		return fmt.Errorf("failed to list chats: %w", err)
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chats"); err != nil {
		return err
	}

	for _, meta := range metas {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := idx.indexChatTx(tx, meta.Name); err != nil {
			// Skip chats that fail to load, keep indexing the rest
			continue
		}
	}

	if _, err := tx.Exec(
		"UPDATE metadata SET value = ? WHERE key = 'last_rebuild'",
		time.Now().Unix(),
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	idx.mu.Lock()
	idx.lastRebuild = time.Now()
	idx.mu.Unlock()

	return nil
}

// AddChat indexes or re-indexes a single chat by name.
func (idx *ChatIndex) AddChat(name string) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := idx.indexChatTx(tx, name); err != nil {
		return err
	}

	return tx.Commit()
}

// RemoveChat removes a chat from the index.
func (idx *ChatIndex) RemoveChat(name string) error {
	// Cascade delete removes the chat's messages and FTS rows
	_, err := idx.db.Exec("DELETE FROM chats WHERE name = ?", name)
	return err
}

// indexChatTx loads a chat from the store and writes it into the index.
func (idx *ChatIndex) indexChatTx(tx *sql.Tx, name string) error {
	conv, err := idx.store.Load(name)
	if err != nil {
		return err
	}

	// Replace any existing entry
	if _, err := tx.Exec("DELETE FROM chats WHERE name = ?", name); err != nil {
		return err
	}

	res, err := tx.Exec(`
		INSERT INTO chats (name, model, summary, created_at, saved_at, message_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, name, conv.Model, conv.Summary(), conv.CreatedAt.Unix(), conv.UpdatedAt.Unix(),
		conv.Len(), time.Now().Unix())
	if err != nil {
		return err
	}

	chatID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, msg := range conv.Messages {
		if _, err := tx.Exec(`
			INSERT INTO messages (chat_id, position, role, content, timestamp)
			VALUES (?, ?, ?, ?, ?)
		`, chatID, i, string(msg.Role), msg.Content, msg.Timestamp.Unix()); err != nil {
			return err
		}
	}

	return nil
}

// =============================================================================
// WATCHING
// =============================================================================

// StartWatching begins reindexing chats as their files change.
func (idx *ChatIndex) StartWatching() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.watcher != nil {
		return nil
	}

	w, err := newStoreWatcher(idx, idx.config.WatchDebounce)
	if err != nil {
		return err
	}
	if err := w.Watch(); err != nil {
		w.Close()
		return err
	}

	idx.watcher = w
	return nil
}

// =============================================================================
// STATS
// =============================================================================

// Stats describes the current index contents.
type Stats struct {
	ChatCount    int
	MessageCount int
	LastRebuild  time.Time
}

// GetStats returns index statistics.
func (idx *ChatIndex) GetStats() (Stats, error) {
	var s Stats

	if err := idx.db.QueryRow("SELECT COUNT(*) FROM chats").Scan(&s.ChatCount); err != nil {
		return s, err
	}
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&s.MessageCount); err != nil {
		return s, err
	}

	var ts int64
	if err := idx.db.QueryRow(
		"SELECT value FROM metadata WHERE key = 'last_rebuild'",
	).Scan(&ts); err == nil && ts > 0 {
		s.LastRebuild = time.Unix(ts, 0)
	}

	return s, nil
}
