// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides chat session tracking for llmui.
//
// A Manager owns the UUID identifying one chat session, tracks activity
// and unsaved changes, and optionally drives idle timeout and auto-save
// callbacks from a background loop.
//
// # Usage
//
// Create a manager and run its check loop:
//
//	mgr := session.NewManager(session.DefaultConfig())
//	mgr.SetAutoSaveCallback(saveChat)
//	go mgr.Run(ctx, time.Second)
//
// Record activity on each user prompt:
//
//	mgr.RecordActivity()
//	mgr.MarkDirty()
package session
