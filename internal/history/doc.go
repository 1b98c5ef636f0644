// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history provides named chat persistence for llmui.
//
// Each saved chat is one pretty-printed JSON file under the store's base
// directory (default ~/.llmui/chats/), keyed by a sanitized chat name.
// Writes are atomic (temp file + fsync + rename) so a crash never leaves
// a half-written chat on disk. Saving under an existing name overwrites
// the previous contents.
//
// Use errors.Is with ErrChatNotFound to distinguish a missing chat from
// an I/O failure.
package history
