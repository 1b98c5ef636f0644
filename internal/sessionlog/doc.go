// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sessionlog provides per-session event logging for llmui.
//
// Each session gets one append-only file under ~/.llmui/logs/, named by
// session ID. Lines are pipe-delimited:
//
//	2025-03-14 10:32:01 | PROMPT | 4c3f... | llama3.2:latest | "How do I..." |  | OK
//
// Every write is fsynced, so a crash loses at most the event in flight.
// Files rotate with a timestamp suffix once they exceed the size limit.
package sessionlog
