// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - System status command for the llmui CLI.
//
// Shows whether Ollama is reachable, which models are installed, how
// many chats are saved and where everything lives on disk.
//
// Command: status
// Aliases: s
//
// Examples:
//   llmui status
//   llmui status --json

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/llmui/internal/config"
	"github.com/jeranaias/llmui/internal/ollama"
)

// statusJSON is the --json output shape for status.
type statusJSON struct {
	Version        string `json:"version"`
	OllamaURL      string `json:"ollama_url"`
	OllamaRunning  bool   `json:"ollama_running"`
	OllamaError    string `json:"ollama_error,omitempty"`
	DefaultModel   string `json:"default_model"`
	ModelCount     int    `json:"model_count"`
	ChatCount      int    `json:"chat_count"`
	ListenAddr     string `json:"listen_addr"`
	ConfigPath     string `json:"config_path"`
	HistoryDir     string `json:"history_dir"`
	SessionLogDir  string `json:"session_log_dir"`
	SessionLogging bool   `json:"session_logging"`
}

// HandleStatusCommand handles the "status" command.
func HandleStatusCommand(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		DefaultModel: cfg.Ollama.Model,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := statusJSON{
		Version:        Version,
		OllamaURL:      cfg.Ollama.URL,
		DefaultModel:   cfg.Ollama.Model,
		ListenAddr:     cfg.ListenAddr(),
		SessionLogging: cfg.Logging.SessionLogsEnabled,
	}

	if path, pathErr := config.ConfigPath(); pathErr == nil {
		status.ConfigPath = path
	}
	if dir, dirErr := cfg.HistoryDir(); dirErr == nil {
		status.HistoryDir = dir
	}
	if dir, dirErr := cfg.SessionLogDir(); dirErr == nil {
		status.SessionLogDir = dir
	}

	if err := client.CheckRunning(ctx); err != nil {
		status.OllamaError = err.Error()
	} else {
		status.OllamaRunning = true
		if models, listErr := client.ListModels(ctx); listErr == nil {
			status.ModelCount = len(models)
		}
	}

	if store, storeErr := openStore(cfg); storeErr == nil {
		if metas, listErr := store.List(); listErr == nil {
			status.ChatCount = len(metas)
		}
	}

	if args.JSON {
		return PrintJSON(status)
	}

	fmt.Println(TitleStyle.Render("llmui status"))

	fmt.Println(SectionStyle.Render("Backend"))
	if status.OllamaRunning {
		fmt.Printf("  %s %s %s\n", RenderStatus("ok"), RenderLabel("Ollama:"), ValueStyle.Render(status.OllamaURL))
		fmt.Printf("  %s %d installed\n", RenderLabel("Models:"), status.ModelCount)
	} else {
		fmt.Printf("  %s %s %s\n", RenderStatus("fail"), RenderLabel("Ollama:"), ValueStyle.Render(status.OllamaURL))
		fmt.Printf("  %s\n", DimStyle.Render("  Start it with: ollama serve"))
	}
	fmt.Printf("  %s %s\n", RenderLabel("Default model:"), ValueStyle.Render(orNone(status.DefaultModel)))

	fmt.Println(SectionStyle.Render("Server"))
	fmt.Printf("  %s http://%s\n", RenderLabel("Web UI:"), status.ListenAddr)

	fmt.Println(SectionStyle.Render("Storage"))
	fmt.Printf("  %s %d saved\n", RenderLabel("Chats:"), status.ChatCount)
	fmt.Printf("  %s %s\n", RenderLabel("History dir:"), DimStyle.Render(status.HistoryDir))
	fmt.Printf("  %s %s\n", RenderLabel("Config:"), DimStyle.Render(status.ConfigPath))
	if status.SessionLogging {
		fmt.Printf("  %s %s\n", RenderLabel("Session logs:"), DimStyle.Render(status.SessionLogDir))
	} else {
		fmt.Printf("  %s %s\n", RenderLabel("Session logs:"), DimStyle.Render("disabled"))
	}

	return nil
}

// orNone substitutes "(none)" for empty values in status output.
func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
