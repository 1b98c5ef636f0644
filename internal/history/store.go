// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history provides named chat persistence for llmui.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/llmui/internal/model"
	"github.com/jeranaias/llmui/internal/util"
)

// =============================================================================
// STORED CHAT TYPE
// =============================================================================

// StoredChat is the on-disk envelope for a saved chat. The conversation is
// embedded with its timestamps stamped at save time; the caller's copy is
// never modified.
type StoredChat struct {
	Name    string    `json:"name"`
	SavedAt time.Time `json:"saved_at"`

	Conversation *model.Conversation `json:"conversation"`
}

// ChatMeta contains metadata for listing saved chats.
type ChatMeta struct {
	Name         string    `json:"name"`
	Summary      string    `json:"summary"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	SavedAt      time.Time `json:"saved_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"` // First user message truncated
}

// =============================================================================
// CHAT STORE
// =============================================================================

// Store handles saved chat persistence. Each chat is one JSON file named
// after its sanitized chat name.
type Store struct {
	// BaseDir is the directory for saved chats
	// Default: ~/.llmui/chats/
	BaseDir string

	// MaxChats limits stored chats (0 = unlimited)
	MaxChats int
}

// NewStore creates a chat store in the default location.
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	return NewStoreWithDir(filepath.Join(homeDir, ".llmui", "chats"))
}

// NewStoreWithDir creates a store with a custom directory.
func NewStoreWithDir(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &Store{
		BaseDir:  baseDir,
		MaxChats: 100,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a conversation under the given name, overwriting any chat
// already saved under that name. Returns the sanitized name actually used.
func (s *Store) Save(name string, conv *model.Conversation) (string, error) {
	if conv == nil || conv.IsEmpty() {
		return "", ErrEmptyChat
	}

	name = SanitizeName(name)
	if name == "" {
		// Fall back to the conversation summary when no usable name given
		name = SanitizeName(conv.Summary())
	}
	if name == "" {
		return "", ErrInvalidName
	}

	// Stamp a snapshot so the caller's conversation is left untouched.
	now := time.Now()
	snapshot := *conv
	snapshot.UpdatedAt = now
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = now
	}

	stored := StoredChat{
		Name:         name,
		SavedAt:      now,
		Conversation: &snapshot,
	}

	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return "", err
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(s.filePath(name), data, 0644); err != nil {
		return "", err
	}

	if s.MaxChats > 0 {
		s.enforceLimit()
	}

	return name, nil
}

// enforceLimit removes the oldest saved chats when over the limit.
func (s *Store) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxChats {
		return
	}

	// Sort by save time (oldest first)
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].SavedAt.Before(metas[j].SavedAt)
	})

	excess := len(metas) - s.MaxChats
	for i := 0; i < excess; i++ {
		s.Delete(metas[i].Name)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a saved chat by name.
func (s *Store) Load(name string) (*model.Conversation, error) {
	stored, err := s.loadStored(SanitizeName(name))
	if err != nil {
		return nil, err
	}
	return stored.Conversation, nil
}

// Exists reports whether a chat is saved under the given name.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.filePath(SanitizeName(name)))
	return err == nil
}

func (s *Store) loadStored(name string) (*StoredChat, error) {
	if name == "" {
		return nil, ErrChatNotFound
	}

	data, err := os.ReadFile(s.filePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	var stored StoredChat
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	if stored.Conversation == nil {
		return nil, ErrChatNotFound
	}

	return &stored, nil
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns metadata for all saved chats (most recently saved first).
func (s *Store) List() ([]ChatMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ChatMeta{}, nil
		}
		return nil, err
	}

	var metas []ChatMeta

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")

		stored, err := s.loadStored(name)
		if err != nil {
			continue // Skip corrupted files
		}

		metas = append(metas, metaFor(stored))
	}

	// Sort by save time (most recent first)
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].SavedAt.After(metas[j].SavedAt)
	})

	return metas, nil
}

func metaFor(stored *StoredChat) ChatMeta {
	conv := stored.Conversation

	preview := ""
	if first := conv.FirstUser(); first != nil {
		preview = first.Preview(80)
	}

	return ChatMeta{
		Name:         stored.Name,
		Summary:      conv.Summary(),
		Model:        conv.Model,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		SavedAt:      stored.SavedAt,
		MessageCount: conv.Len(),
		Preview:      preview,
	}
}

// Search finds saved chats whose name, summary, or preview contains the
// query string (case-insensitive).
func (s *Store) Search(query string) ([]ChatMeta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []ChatMeta

	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Name), query) ||
			strings.Contains(strings.ToLower(meta.Summary), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}

	return results, nil
}

// SearchMessages finds saved chats where any message contains the query
// string (case-insensitive). An empty query matches everything.
func (s *Store) SearchMessages(query string) ([]ChatMeta, error) {
	if query == "" {
		return s.List()
	}

	query = strings.ToLower(query)
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	var results []ChatMeta

	for _, meta := range all {
		stored, err := s.loadStored(meta.Name)
		if err != nil {
			continue
		}

		for _, msg := range stored.Conversation.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				results = append(results, meta)
				break
			}
		}
	}

	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a saved chat by name.
func (s *Store) Delete(name string) error {
	name = SanitizeName(name)
	if name == "" {
		return ErrChatNotFound
	}

	if err := os.Remove(s.filePath(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrChatNotFound
		}
		return err
	}

	return nil
}

// Clear removes all saved chats.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a sanitized chat name.
func (s *Store) filePath(name string) string {
	return filepath.Join(s.BaseDir, name+".json")
}

// SanitizeName maps an arbitrary chat name to a safe filename stem. Path
// separators and control characters become hyphens, and the result is
// trimmed to 64 runes. Returns "" when nothing usable remains.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			sb.WriteRune(r)
		case r == ' ' || r == '/' || r == '\\' || r == ':':
			sb.WriteRune('-')
		default:
			if r > 127 {
				sb.WriteRune(r) // Keep non-ASCII letters
			}
			// Drop everything else
		}
	}

	out := strings.Trim(sb.String(), "-.")
	runes := []rune(out)
	if len(runes) > 64 {
		out = string(runes[:64])
	}
	return out
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrChatNotFound is returned when no chat is saved under a name.
// Use errors.Is(err, ErrChatNotFound) to check for this error.
var ErrChatNotFound = &ChatError{Message: "chat not found"}

// ErrInvalidName is returned when a chat name sanitizes to nothing.
var ErrInvalidName = &ChatError{Message: "invalid chat name"}

// ErrEmptyChat is returned when saving a conversation with no messages.
var ErrEmptyChat = &ChatError{Message: "chat has no messages"}

// ChatError represents a chat persistence error.
type ChatError struct {
	Message string
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing chat errors.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
