// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// The package is intentionally free of I/O: it defines the Role, Message,
// and Conversation types shared by the web server, the terminal chat, and
// the history store. Messages are immutable once appended; a Conversation
// preserves strict insertion (chronological) order.
package model
