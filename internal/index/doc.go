// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides full-text search over saved chats.
//
// The index is a SQLite database (pure Go driver, no cgo) with an FTS5
// virtual table over message content. It sits beside the saved chat files
// and can rebuild itself from the history store at any time, so losing
// the database never loses data.
//
// An optional watcher keeps the index in sync as chats are saved or
// deleted while the server runs.
package index
