// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for llmui.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides (LLMUI_* variables win over the file). The config file lives
// at ~/.llmui/config.toml and is created with 0600 permissions.
//
// A Watcher can reload the file on change so a running server picks up
// edits without a restart.
package config
