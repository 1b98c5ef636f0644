// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the llmui command-line interface.
//
// The package is deliberately framework-free: Parse() maps os.Args onto
// a Command value plus an Args struct, and each command has a
// HandleXCommand(args) entry point that returns an error. main.go owns
// the dispatch and converts returned errors into exit codes with
// GetExitCode.
//
// Commands:
//
//	llmui serve                 Run the local web UI (default)
//	llmui ask "question"        One-shot question to Ollama
//	llmui chat                  Interactive terminal chat
//	llmui sessions [sub]        Manage saved chats (list/show/search/export/delete)
//	llmui models                List installed Ollama models
//	llmui status                Show server and Ollama status
//	llmui config [show|set|path]
//	llmui version, help
//
// Output styling goes through styles.go and degrades to plain text when
// stdout is not a TTY or NO_COLOR is set.
package cli
