// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides full-text search over saved chats.
package index

import (
	"context"
	"strings"
	"time"
)

// =============================================================================
// SEARCH RESULTS
// =============================================================================

// MessageHit is one message matching a full-text query.
type MessageHit struct {
	ChatName  string    `json:"chat_name"`
	Position  int       `json:"position"`
	Role      string    `json:"role"`
	Snippet   string    `json:"snippet"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatHit is one chat matching a full-text query, with its match count.
type ChatHit struct {
	ChatName   string `json:"chat_name"`
	Model      string `json:"model"`
	Summary    string `json:"summary"`
	MatchCount int    `json:"match_count"`
}

// =============================================================================
// SEARCH OPERATIONS
// =============================================================================

// SearchMessages returns messages whose content matches the query,
// best matches first. Limit 0 means a default of 50.
func (idx *ChatIndex) SearchMessages(ctx context.Context, query string, limit int) ([]MessageHit, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT c.name, m.position, m.role,
		       snippet(messages_fts, 0, '[', ']', '...', 12),
		       m.timestamp
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		JOIN chats c ON c.id = m.chat_id
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []MessageHit
	for rows.Next() {
		var h MessageHit
		var ts int64
		if err := rows.Scan(&h.ChatName, &h.Position, &h.Role, &h.Snippet, &ts); err != nil {
			return nil, err
		}
		h.Timestamp = time.Unix(ts, 0)
		hits = append(hits, h)
	}

	return hits, rows.Err()
}

// SearchChats returns chats containing matching messages, ranked by how
// many messages match.
func (idx *ChatIndex) SearchChats(ctx context.Context, query string, limit int) ([]ChatHit, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT c.name, c.model, c.summary, COUNT(*) AS matches
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		JOIN chats c ON c.id = m.chat_id
		WHERE messages_fts MATCH ?
		GROUP BY c.id
		ORDER BY matches DESC
		LIMIT ?
	`, ftsQuery(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []ChatHit
	for rows.Next() {
		var h ChatHit
		if err := rows.Scan(&h.ChatName, &h.Model, &h.Summary, &h.MatchCount); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}

	return hits, rows.Err()
}

// ftsQuery quotes each term so user input cannot break FTS5 query syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return `""`
	}

	var sb strings.Builder
	for i, term := range terms {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(term, `"`, `""`))
		sb.WriteByte('"')
	}
	return sb.String()
}
