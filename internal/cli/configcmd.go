// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// configcmd.go - Configuration command for the llmui CLI.
//
// Command: config [show|set|path]
//
// Examples:
//   llmui config show
//   llmui config path
//   llmui config set ollama.model llama3.2
//   llmui config set server.port 9000
//   llmui config set ui.theme light

package cli

import (
	"fmt"
	"strconv"

	"github.com/jeranaias/llmui/internal/config"
)

// HandleConfigCommand dispatches config subcommands.
func HandleConfigCommand(args Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(args)
	case "path":
		return configPath(args)
	case "set":
		return configSet(args)
	default:
		return NewValidationError("subcommand", args.Subcommand,
			"expected show, set or path")
	}
}

// configShow prints the effective configuration.
func configShow(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	if args.JSON {
		return PrintJSON(cfg)
	}

	fmt.Println(TitleStyle.Render("llmui configuration"))

	fmt.Println(SectionStyle.Render("Server"))
	fmt.Printf("  %s %s\n", RenderLabel("server.host"), ValueStyle.Render(cfg.Server.Host))
	fmt.Printf("  %s %d\n", RenderLabel("server.port"), cfg.Server.Port)
	fmt.Printf("  %s %.1f\n", RenderLabel("server.rate_limit_rps"), cfg.Server.RateLimitRPS)

	fmt.Println(SectionStyle.Render("Ollama"))
	fmt.Printf("  %s %s\n", RenderLabel("ollama.url"), ValueStyle.Render(cfg.Ollama.URL))
	fmt.Printf("  %s %s\n", RenderLabel("ollama.model"), ValueStyle.Render(orNone(cfg.Ollama.Model)))
	fmt.Printf("  %s %ds\n", RenderLabel("ollama.timeout_secs"), cfg.Ollama.TimeoutSecs)

	fmt.Println(SectionStyle.Render("History"))
	fmt.Printf("  %s %s\n", RenderLabel("history.dir"), DimStyle.Render(orNone(cfg.History.Dir)))
	fmt.Printf("  %s %d\n", RenderLabel("history.max_chats"), cfg.History.MaxChats)
	fmt.Printf("  %s %t\n", RenderLabel("history.auto_save"), cfg.History.AutoSave)

	fmt.Println(SectionStyle.Render("Logging"))
	fmt.Printf("  %s %t\n", RenderLabel("logging.session_logs"), cfg.Logging.SessionLogsEnabled)
	fmt.Printf("  %s %s\n", RenderLabel("logging.app_log_file"), DimStyle.Render(orNone(cfg.Logging.AppLogFile)))

	fmt.Println(SectionStyle.Render("UI"))
	fmt.Printf("  %s %s\n", RenderLabel("ui.theme"), ValueStyle.Render(cfg.UI.Theme))
	fmt.Printf("  %s %t\n", RenderLabel("ui.show_tokens"), cfg.UI.ShowTokens)
	fmt.Printf("  %s %t\n", RenderLabel("ui.render_markdown"), cfg.UI.RenderMarkdown)

	return nil
}

// configPath prints the config file location.
func configPath(args Args) error {
	path, err := config.ConfigPath()
	if err != nil {
		return WrapError(err, "failed to resolve config path")
	}

	if args.JSON {
		return PrintJSON(map[string]string{"path": path})
	}
	fmt.Println(path)
	return nil
}

// configSet updates one key and writes the config file.
func configSet(args Args) error {
	if len(args.Raw) < 2 {
		return ErrMissingArgument("key/value", "llmui config set <key> <value>")
	}
	key, value := args.Raw[0], args.Raw[1]

	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	if err := applyConfigKey(cfg, key, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return WrapError(err, "invalid configuration")
	}

	if err := config.Save(cfg); err != nil {
		return WrapError(err, "failed to save configuration")
	}

	if args.JSON {
		return PrintJSON(map[string]string{"key": key, "value": value})
	}
	fmt.Printf("%s %s = %s\n", SuccessStyle.Render("[Set]"), key, value)
	return nil
}

// applyConfigKey sets a single settable config key.
func applyConfigKey(cfg *config.Config, key, value string) error {
	switch key {
	case "server.host":
		cfg.Server.Host = value
	case "server.port":
		port, err := ParseIntWithValidation(value, "port")
		if err != nil {
			return NewValidationError(key, value, err.Error())
		}
		cfg.Server.Port = port
	case "ollama.url":
		cfg.Ollama.URL = value
	case "ollama.model":
		cfg.Ollama.Model = value
	case "ollama.timeout_secs":
		secs, err := ParseIntWithValidation(value, "timeout")
		if err != nil {
			return NewValidationError(key, value, err.Error())
		}
		cfg.Ollama.TimeoutSecs = secs
	case "history.dir":
		cfg.History.Dir = value
	case "history.max_chats":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return NewValidationError(key, value, "must be a non-negative integer")
		}
		cfg.History.MaxChats = n
	case "history.auto_save":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return NewValidationError(key, value, "must be true or false")
		}
		cfg.History.AutoSave = b
	case "logging.session_logs":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return NewValidationError(key, value, "must be true or false")
		}
		cfg.Logging.SessionLogsEnabled = b
	case "ui.theme":
		if value != "dark" && value != "light" && value != "auto" {
			return NewValidationError(key, value, "must be dark, light or auto")
		}
		cfg.UI.Theme = value
	case "ui.show_tokens":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return NewValidationError(key, value, "must be true or false")
		}
		cfg.UI.ShowTokens = b
	case "ui.render_markdown":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return NewValidationError(key, value, "must be true or false")
		}
		cfg.UI.RenderMarkdown = b
	default:
		return NewValidationError("key", key, "unknown config key (see llmui config show)")
	}
	return nil
}
