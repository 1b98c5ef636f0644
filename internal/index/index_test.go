// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides full-text search over saved chats.
package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/llmui/internal/history"
	"github.com/jeranaias/llmui/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestIndex(t *testing.T) (*ChatIndex, *history.Store) {
	t.Helper()

	store, err := history.NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	idx, err := New(store, &Config{
		DatabasePath: filepath.Join(t.TempDir(), "index.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	return idx, store
}

func saveChat(t *testing.T, store *history.Store, name string, contents ...string) {
	t.Helper()
	conv := model.NewConversation("test-model")
	for i, c := range contents {
		if i%2 == 0 {
			conv.AppendUser(c)
		} else {
			conv.AppendAssistant(c)
		}
	}
	if _, err := store.Save(name, conv); err != nil {
		t.Fatalf("Save %q failed: %v", name, err)
	}
}

// =============================================================================
// INDEXING TESTS
// =============================================================================

func TestRebuild(t *testing.T) {
	idx, store := newTestIndex(t)

	saveChat(t, store, "go-help", "How do goroutines work?", "They are lightweight threads.")
	saveChat(t, store, "recipes", "Best pasta sauce?", "Use fresh tomatoes.")

	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	stats, err := idx.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.ChatCount != 2 {
		t.Errorf("ChatCount = %d, want 2", stats.ChatCount)
	}
	if stats.MessageCount != 4 {
		t.Errorf("MessageCount = %d, want 4", stats.MessageCount)
	}
	if stats.LastRebuild.IsZero() {
		t.Error("LastRebuild should be set after rebuild")
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	idx, store := newTestIndex(t)
	saveChat(t, store, "chat", "hello", "hi")

	for i := 0; i < 3; i++ {
		if err := idx.Rebuild(context.Background()); err != nil {
			t.Fatalf("Rebuild %d failed: %v", i, err)
		}
	}

	stats, _ := idx.GetStats()
	if stats.ChatCount != 1 || stats.MessageCount != 2 {
		t.Errorf("Stats = %+v, repeated rebuilds should not duplicate rows", stats)
	}
}

func TestAddChat_ReplacesExisting(t *testing.T) {
	idx, store := newTestIndex(t)

	saveChat(t, store, "chat", "original question")
	if err := idx.AddChat("chat"); err != nil {
		t.Fatalf("AddChat failed: %v", err)
	}

	saveChat(t, store, "chat", "revised question", "revised answer")
	if err := idx.AddChat("chat"); err != nil {
		t.Fatalf("AddChat (re-index) failed: %v", err)
	}

	stats, _ := idx.GetStats()
	if stats.ChatCount != 1 {
		t.Errorf("ChatCount = %d, want 1", stats.ChatCount)
	}
	if stats.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", stats.MessageCount)
	}
}

func TestRemoveChat(t *testing.T) {
	idx, store := newTestIndex(t)

	saveChat(t, store, "doomed", "question", "answer")
	if err := idx.AddChat("doomed"); err != nil {
		t.Fatalf("AddChat failed: %v", err)
	}

	if err := idx.RemoveChat("doomed"); err != nil {
		t.Fatalf("RemoveChat failed: %v", err)
	}

	stats, _ := idx.GetStats()
	if stats.ChatCount != 0 {
		t.Errorf("ChatCount = %d, want 0", stats.ChatCount)
	}
	// Cascade delete removes messages too
	if stats.MessageCount != 0 {
		t.Errorf("MessageCount = %d, want 0 after cascade delete", stats.MessageCount)
	}
}

// =============================================================================
// SEARCH TESTS
// =============================================================================

func TestSearchMessages(t *testing.T) {
	idx, store := newTestIndex(t)

	saveChat(t, store, "go-help", "How do goroutines work?", "They are lightweight threads.")
	saveChat(t, store, "recipes", "Best pasta sauce?", "Use fresh tomatoes.")
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	hits, err := idx.SearchMessages(context.Background(), "goroutines", 0)
	if err != nil {
		t.Fatalf("SearchMessages failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want 1", len(hits))
	}
	if hits[0].ChatName != "go-help" {
		t.Errorf("ChatName = %q, want 'go-help'", hits[0].ChatName)
	}
	if hits[0].Role != "user" {
		t.Errorf("Role = %q, want 'user'", hits[0].Role)
	}
}

func TestSearchMessages_Stemming(t *testing.T) {
	idx, store := newTestIndex(t)

	saveChat(t, store, "chat", "I am debugging a crash", "Check the stack trace.")
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	// Porter stemmer matches "debug" against "debugging"
	hits, err := idx.SearchMessages(context.Background(), "debug", 0)
	if err != nil {
		t.Fatalf("SearchMessages failed: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("len(hits) = %d, want 1 via stemming", len(hits))
	}
}

func TestSearchMessages_NoMatch(t *testing.T) {
	idx, store := newTestIndex(t)

	saveChat(t, store, "chat", "hello", "hi")
	idx.Rebuild(context.Background())

	hits, err := idx.SearchMessages(context.Background(), "zebra", 0)
	if err != nil {
		t.Fatalf("SearchMessages failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("len(hits) = %d, want 0", len(hits))
	}
}

func TestSearchMessages_HostileQuery(t *testing.T) {
	idx, store := newTestIndex(t)

	saveChat(t, store, "chat", "hello", "hi")
	idx.Rebuild(context.Background())

	// FTS5 operators in user input must not cause query errors
	for _, q := range []string{`"unbalanced`, "AND OR NOT", "a*b(c)", ""} {
		if _, err := idx.SearchMessages(context.Background(), q, 0); err != nil {
			t.Errorf("SearchMessages(%q) failed: %v", q, err)
		}
	}
}

func TestSearchChats(t *testing.T) {
	idx, store := newTestIndex(t)

	saveChat(t, store, "heavy", "error in handler", "Which error?", "a nil pointer error", "Show the error trace.")
	saveChat(t, store, "light", "one error mention", "ok")
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	hits, err := idx.SearchChats(context.Background(), "error", 0)
	if err != nil {
		t.Fatalf("SearchChats failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	// Chat with more matching messages ranks first
	if hits[0].ChatName != "heavy" {
		t.Errorf("hits[0] = %q, want 'heavy'", hits[0].ChatName)
	}
	if hits[0].MatchCount <= hits[1].MatchCount {
		t.Errorf("MatchCounts = %d, %d, want descending", hits[0].MatchCount, hits[1].MatchCount)
	}
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatcher_IndexesNewChat(t *testing.T) {
	idx, store := newTestIndex(t)

	if err := idx.StartWatching(); err != nil {
		t.Fatalf("StartWatching failed: %v", err)
	}

	saveChat(t, store, "fresh", "a question about watchers", "an answer")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		hits, err := idx.SearchMessages(context.Background(), "watchers", 0)
		if err == nil && len(hits) == 1 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("Watcher did not index the new chat in time")
}

// =============================================================================
// QUERY ESCAPING
// =============================================================================

func TestFtsQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello", `"hello"`},
		{"two words", `"two" "words"`},
		{`say "hi"`, `"say" """hi"""`},
		{"", `""`},
	}

	for _, tt := range tests {
		if got := ftsQuery(tt.input); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
