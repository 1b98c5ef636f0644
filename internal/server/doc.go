// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the local HTTP server behind the browser chat UI.
//
// Endpoints:
//   - GET  /                   - embedded web UI
//   - POST /api/chat           - relay a chat to Ollama (JSON or SSE stream)
//   - GET  /api/models         - list installed models
//   - GET  /api/chats          - list saved chats
//   - POST /api/chats          - save a chat under a name
//   - GET  /api/chats/{name}   - load a saved chat
//   - DELETE /api/chats/{name} - delete a saved chat
//   - GET  /api/search         - full-text search over saved chats
//   - GET  /health             - health check including backend status
//   - GET  /api/stats          - request counters
//
// Backend failures map to distinct statuses so the UI can give
// actionable advice: 502 when Ollama is unreachable, 404 when the
// requested model is not installed, 504 on generation timeout.
package server
