// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for llmui.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want '127.0.0.1'", cfg.Server.Host)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("Port = %d, want 8787", cfg.Server.Port)
	}
	if cfg.Ollama.URL != "http://127.0.0.1:11434" {
		t.Errorf("Ollama URL = %q", cfg.Ollama.URL)
	}
	if !cfg.Logging.SessionLogsEnabled {
		t.Error("Session logs should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestConfig_ListenAddr(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr() != "127.0.0.1:8787" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr())
	}
}

func TestConfig_OllamaTimeout(t *testing.T) {
	cfg := Default()
	if cfg.OllamaTimeout() != 60*time.Second {
		t.Errorf("OllamaTimeout = %v, want 60s", cfg.OllamaTimeout())
	}
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9999

[ollama]
model = "qwen2.5:7b"

[ui]
theme = "light"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Ollama.Model != "qwen2.5:7b" {
		t.Errorf("Model = %q, want 'qwen2.5:7b'", cfg.Ollama.Model)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("Theme = %q, want 'light'", cfg.UI.Theme)
	}

	// Unset fields keep defaults
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Ollama.URL != "http://127.0.0.1:11434" {
		t.Errorf("Ollama URL = %q, want default", cfg.Ollama.URL)
	}
}

func TestLoadFromPath_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[[[not toml"), 0600)

	if _, err := LoadFromPath(path); err == nil {
		t.Error("Expected error for malformed TOML")
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Server.Port = 4242
	cfg.Ollama.Model = "mistral:latest"

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Permissions = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Server.Port != 4242 {
		t.Errorf("Port = %d, want 4242", loaded.Server.Port)
	}
	if loaded.Ollama.Model != "mistral:latest" {
		t.Errorf("Model = %q, want 'mistral:latest'", loaded.Ollama.Model)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Server.Port = -1 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimitRPS = -1 }, "server.rate_limit_rps"},
		{"bad ollama url", func(c *Config) { c.Ollama.URL = "not a url" }, "ollama.url"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"negative max chats", func(c *Config) { c.History.MaxChats = -5 }, "history.max_chats"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Error %q should mention %q", err.Error(), tt.field)
			}
		})
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("LLMUI_PORT", "5555")
	t.Setenv("LLMUI_MODEL", "env-model")
	t.Setenv("LLMUI_NO_LOGS", "1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.Port != 5555 {
		t.Errorf("Port = %d, want 5555 from env", cfg.Server.Port)
	}
	if cfg.Ollama.Model != "env-model" {
		t.Errorf("Model = %q, want 'env-model' from env", cfg.Ollama.Model)
	}
	if cfg.Logging.SessionLogsEnabled {
		t.Error("LLMUI_NO_LOGS should disable session logs")
	}
}

func TestApplyEnvOverrides_BadPort(t *testing.T) {
	t.Setenv("LLMUI_PORT", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.Port != 8787 {
		t.Errorf("Port = %d, unparseable env var should be ignored", cfg.Server.Port)
	}
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTo(Default(), path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	// Modify the config
	cfg := Default()
	cfg.Server.Port = 6161
	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	select {
	case got := <-reloaded:
		if got.Server.Port != 6161 {
			t.Errorf("Reloaded Port = %d, want 6161", got.Server.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Watcher did not reload after config change")
	}
}

func TestWatcher_IgnoresInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTo(Default(), path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	calls := make(chan struct{}, 10)
	w, err := NewWatcher(path, func(*Config) { calls <- struct{}{} })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	os.WriteFile(path, []byte("[[[broken"), 0600)

	select {
	case <-calls:
		t.Error("Callback should not fire for invalid config")
	case <-time.After(time.Second):
	}
}
