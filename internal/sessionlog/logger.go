// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sessionlog provides per-session event logging for llmui.
package sessionlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// MaxDetailLength is the maximum length of the detail field before truncation.
const MaxDetailLength = 200

// DefaultMaxFileSize is the default max file size before rotation (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// =============================================================================
// EVENT
// =============================================================================

// Event represents a single session log entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	SessionID string    `json:"session_id"`
	Model     string    `json:"model,omitempty"`
	Detail    string    `json:"detail,omitempty"` // Truncated prompt/reply text
	Tokens    int       `json:"tokens,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// ToLogLine formats the event as a single pipe-delimited line.
func (e *Event) ToLogLine() string {
	timestamp := e.Timestamp.Format("2006-01-02 15:04:05")

	detail := ""
	if e.Detail != "" {
		detail = fmt.Sprintf("%q", e.Detail)
	}

	tokens := ""
	if e.Tokens > 0 {
		tokens = fmt.Sprintf("%d", e.Tokens)
	}

	status := "OK"
	if !e.Success {
		if e.Error != "" {
			status = "ERROR: " + e.Error
		} else {
			status = "FAILURE"
		}
	}

	return fmt.Sprintf("%s | %s | %s | %s | %s | %s | %s",
		timestamp,
		e.EventType,
		e.SessionID,
		e.Model,
		detail,
		tokens,
		status,
	)
}

// =============================================================================
// SESSION LOGGER
// =============================================================================

// Logger writes session events to one append-only file per session. Writes
// are synced to disk so the log survives a crash mid-session.
type Logger struct {
	sessionID string
	path      string
	file      *os.File
	mu        sync.Mutex
	enabled   bool
	maxSize   int64 // Max file size before rotation
}

// New creates a session logger in the default directory (~/.llmui/logs/).
func New(sessionID string) (*Logger, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return NewWithDir(sessionID, filepath.Join(home, ".llmui", "logs"))
}

// NewWithDir creates a session logger in a custom directory. The log file is
// named after the session ID.
func NewWithDir(sessionID, dir string) (*Logger, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID required")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session log directory: %w", err)
	}

	path := filepath.Join(dir, sessionID+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log file: %w", err)
	}

	return &Logger{
		sessionID: sessionID,
		path:      path,
		file:      file,
		enabled:   true,
		maxSize:   DefaultMaxFileSize,
	}, nil
}

// =============================================================================
// LOGGING METHODS
// =============================================================================

// Log writes an event to the session log file.
func (l *Logger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || l.file == nil {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}

	if err := l.checkRotationLocked(); err != nil {
		return fmt.Errorf("session log rotation failed: %w", err)
	}

	if _, err := fmt.Fprintln(l.file, event.ToLogLine()); err != nil {
		return fmt.Errorf("failed to write session log: %w", err)
	}

	// Sync to disk to ensure durability
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync session log: %w", err)
	}

	return nil
}

// LogSessionStart records the start of a session.
func (l *Logger) LogSessionStart(model string) error {
	return l.Log(Event{
		EventType: "SESSION_START",
		Model:     model,
		Success:   true,
	})
}

// LogSessionEnd records the end of a session.
func (l *Logger) LogSessionEnd() error {
	return l.Log(Event{
		EventType: "SESSION_END",
		Success:   true,
	})
}

// LogPrompt records a user prompt being sent to the model.
func (l *Logger) LogPrompt(model, prompt string) error {
	return l.Log(Event{
		EventType: "PROMPT",
		Model:     model,
		Detail:    truncateDetail(prompt, MaxDetailLength),
		Success:   true,
	})
}

// LogReply records a completed model reply.
func (l *Logger) LogReply(model, reply string, tokens int) error {
	return l.Log(Event{
		EventType: "REPLY",
		Model:     model,
		Detail:    truncateDetail(reply, MaxDetailLength),
		Tokens:    tokens,
		Success:   true,
	})
}

// LogError records a failed exchange.
func (l *Logger) LogError(model string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return l.Log(Event{
		EventType: "ERROR",
		Model:     model,
		Success:   false,
		Error:     msg,
	})
}

// LogChatSaved records a chat being saved to history.
func (l *Logger) LogChatSaved(name string) error {
	return l.Log(Event{
		EventType: "CHAT_SAVED",
		Detail:    name,
		Success:   true,
	})
}

// LogChatLoaded records a chat being loaded from history.
func (l *Logger) LogChatLoaded(name string) error {
	return l.Log(Event{
		EventType: "CHAT_LOADED",
		Detail:    name,
		Success:   true,
	})
}

// =============================================================================
// FILE ROTATION
// =============================================================================

// Rotate rotates the log file, keeping the old file with a timestamp suffix.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rotateLocked()
}

func (l *Logger) rotateLocked() error {
	if l.file == nil {
		return nil
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close session log for rotation: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	ext := filepath.Ext(l.path)
	base := strings.TrimSuffix(l.path, ext)
	rotatedPath := fmt.Sprintf("%s_%s%s", base, timestamp, ext)

	if err := os.Rename(l.path, rotatedPath); err != nil {
		// Try to reopen original file if rename fails
		l.file, _ = os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		return fmt.Errorf("failed to rotate session log: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create new session log after rotation: %w", err)
	}
	l.file = file

	return nil
}

// checkRotationLocked rotates when the file exceeds the size limit.
func (l *Logger) checkRotationLocked() error {
	if l.maxSize <= 0 {
		return nil
	}

	info, err := l.file.Stat()
	if err != nil {
		return nil // Ignore stat errors
	}

	if info.Size() >= l.maxSize {
		return l.rotateLocked()
	}

	return nil
}

// SetMaxSize sets the maximum file size before rotation.
func (l *Logger) SetMaxSize(size int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxSize = size
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// SetEnabled enables or disables logging.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Path returns the session log file path.
func (l *Logger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// SessionID returns the session this logger belongs to.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// =============================================================================
// CLEANUP
// =============================================================================

// Sync flushes the session log to disk.
func (l *Logger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	return l.file.Sync()
}

// Close closes the session log file. The logger is unusable afterwards.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	err := l.file.Close()
	l.file = nil
	return err
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// truncateDetail collapses whitespace and truncates to maxLen runes.
func truncateDetail(s string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(s), " ")

	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}

	if maxLen > 3 {
		return string(runes[:maxLen-3]) + "..."
	}
	return string(runes[:maxLen])
}
