// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for llmui.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete llmui configuration.
type Config struct {
	// General settings
	Version string `toml:"version"`

	// Server configuration
	Server ServerConfig `toml:"server"`

	// Ollama configuration
	Ollama OllamaConfig `toml:"ollama"`

	// History configuration
	History HistoryConfig `toml:"history"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// ServerConfig contains the local web server configuration.
type ServerConfig struct {
	// Host to bind to. Default: 127.0.0.1 (local only)
	Host string `toml:"host"`
	// Port to listen on. Default: 8787
	Port int `toml:"port"`
	// RateLimitRPS is the per-client request rate limit (0 disables limiting)
	RateLimitRPS float64 `toml:"rate_limit_rps"`
	// RateLimitBurst is the burst allowance for the rate limiter
	RateLimitBurst int `toml:"rate_limit_burst"`
	// ShutdownTimeoutSecs bounds graceful shutdown
	ShutdownTimeoutSecs int `toml:"shutdown_timeout_secs"`
}

// OllamaConfig contains inference server configuration.
type OllamaConfig struct {
	// URL is the base URL of the Ollama server
	URL string `toml:"url"`
	// Model is the default model for new chats
	Model string `toml:"model"`
	// TimeoutSecs bounds non-streaming requests
	TimeoutSecs int `toml:"timeout_secs"`
}

// HistoryConfig contains saved chat configuration.
type HistoryConfig struct {
	// Dir is the directory for saved chats (empty = ~/.llmui/chats)
	Dir string `toml:"dir"`
	// MaxChats limits stored chats (0 = unlimited)
	MaxChats int `toml:"max_chats"`
	// AutoSave enables periodic saving of the active chat
	AutoSave bool `toml:"auto_save"`
	// AutoSaveIntervalSecs is the auto-save interval
	AutoSaveIntervalSecs int `toml:"auto_save_interval_secs"`
}

// LoggingConfig contains session and application log configuration.
type LoggingConfig struct {
	// SessionLogsEnabled controls per-session event logs
	SessionLogsEnabled bool `toml:"session_logs_enabled"`
	// SessionLogDir is the directory for session logs (empty = ~/.llmui/logs)
	SessionLogDir string `toml:"session_log_dir"`
	// AppLogFile is the application log file (empty = ~/.llmui/llmui.log)
	AppLogFile string `toml:"app_log_file"`
	// AppLogMaxSizeMB is the size at which the app log rotates
	AppLogMaxSizeMB int `toml:"app_log_max_size_mb"`
	// AppLogMaxBackups is how many rotated app logs to keep
	AppLogMaxBackups int `toml:"app_log_max_backups"`
	// AppLogMaxAgeDays is how long rotated app logs are kept
	AppLogMaxAgeDays int `toml:"app_log_max_age_days"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowTokens displays token counts in the UI
	ShowTokens bool `toml:"show_tokens"`
	// RenderMarkdown enables markdown rendering of replies
	RenderMarkdown bool `toml:"render_markdown"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			Host:                "127.0.0.1",
			Port:                8787,
			RateLimitRPS:        10,
			RateLimitBurst:      20,
			ShutdownTimeoutSecs: 10,
		},

		Ollama: OllamaConfig{
			URL:         "http://127.0.0.1:11434",
			Model:       "llama3.2:latest",
			TimeoutSecs: 60,
		},

		History: HistoryConfig{
			Dir:                  "",
			MaxChats:             100,
			AutoSave:             true,
			AutoSaveIntervalSecs: 30,
		},

		Logging: LoggingConfig{
			SessionLogsEnabled: true,
			SessionLogDir:      "",
			AppLogFile:         "",
			AppLogMaxSizeMB:    10,
			AppLogMaxBackups:   3,
			AppLogMaxAgeDays:   28,
		},

		UI: UIConfig{
			Theme:          "dark",
			ShowTokens:     true,
			RenderMarkdown: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the llmui configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".llmui"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// HistoryDir resolves the saved chat directory.
func (c *Config) HistoryDir() (string, error) {
	if c.History.Dir != "" {
		return c.History.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chats"), nil
}

// SessionLogDir resolves the session log directory.
func (c *Config) SessionLogDir() (string, error) {
	if c.Logging.SessionLogDir != "" {
		return c.Logging.SessionLogDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// AppLogFile resolves the application log file path.
func (c *Config) AppLogFile() (string, error) {
	if c.Logging.AppLogFile != "" {
		return c.Logging.AppLogFile, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "llmui.log"), nil
}

// ListenAddr returns the host:port pair for the web server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// OllamaTimeout returns the Ollama request timeout as a duration.
func (c *Config) OllamaTimeout() time.Duration {
	return time.Duration(c.Ollama.TimeoutSecs) * time.Second
}

// ShutdownTimeout returns the graceful shutdown bound as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSecs) * time.Second
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file, falling back to
// defaults when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(path); statErr != nil {
		// No config file: defaults plus env overrides
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = defaults.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.ShutdownTimeoutSecs == 0 {
		cfg.Server.ShutdownTimeoutSecs = defaults.Server.ShutdownTimeoutSecs
	}

	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = defaults.Ollama.URL
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = defaults.Ollama.Model
	}
	if cfg.Ollama.TimeoutSecs == 0 {
		cfg.Ollama.TimeoutSecs = defaults.Ollama.TimeoutSecs
	}

	if cfg.History.AutoSaveIntervalSecs == 0 {
		cfg.History.AutoSaveIntervalSecs = defaults.History.AutoSaveIntervalSecs
	}

	if cfg.Logging.AppLogMaxSizeMB == 0 {
		cfg.Logging.AppLogMaxSizeMB = defaults.Logging.AppLogMaxSizeMB
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo saves the configuration to a TOML file with 0600 permissions.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# llmui configuration file")
	fmt.Fprintln(file, "# Generated by llmui - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("invalid port %d, must be 1-65535", c.Server.Port),
		})
	}

	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit_rps",
			Message: "rate limit cannot be negative",
		})
	}

	if c.Ollama.URL != "" {
		u, err := url.Parse(c.Ollama.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "ollama.url",
				Message: fmt.Sprintf("invalid URL %q", c.Ollama.URL),
			})
		}
	}

	if c.Ollama.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "ollama.timeout_secs",
			Message: "timeout cannot be negative",
		})
	}

	if c.History.MaxChats < 0 {
		errs = append(errs, ValidationError{
			Field:   "history.max_chats",
			Message: "max_chats cannot be negative",
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported variables:
//
//	LLMUI_HOST        server bind host
//	LLMUI_PORT        server port
//	LLMUI_OLLAMA_URL  Ollama base URL
//	LLMUI_MODEL       default model
//	LLMUI_THEME       UI theme
//	LLMUI_NO_LOGS     disable session logs (1/true)
func (c *Config) ApplyEnvOverrides() {
	if host := os.Getenv("LLMUI_HOST"); host != "" {
		c.Server.Host = host
	}

	if port := os.Getenv("LLMUI_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if u := os.Getenv("LLMUI_OLLAMA_URL"); u != "" {
		c.Ollama.URL = u
	}

	if model := os.Getenv("LLMUI_MODEL"); model != "" {
		c.Ollama.Model = model
	}

	if theme := os.Getenv("LLMUI_THEME"); theme != "" {
		c.UI.Theme = theme
	}

	if noLogs := os.Getenv("LLMUI_NO_LOGS"); noLogs == "1" || strings.EqualFold(noLogs, "true") {
		c.Logging.SessionLogsEnabled = false
	}
}
