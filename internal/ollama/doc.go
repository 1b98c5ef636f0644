// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama inference API.
//
// The client speaks Ollama's native JSON protocol:
//
//   - GET  /         health check
//   - GET  /api/tags installed models
//   - POST /api/show model details
//   - POST /api/chat completions (non-streaming and NDJSON streaming)
//
// Failures map to typed errors so callers can present them distinctly:
// ErrNotRunning when the server is unreachable, ErrModelNotFound when the
// requested model is not installed, ErrTimeout on deadline expiry. Check
// them with errors.Is or the IsNotRunning/IsModelNotFound/IsTimeout
// helpers.
//
// All blocking operations accept a context.Context for cancellation.
package ollama
