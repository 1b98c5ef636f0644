// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sessionlog provides per-session event logging for llmui.
package sessionlog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// LOGGER TESTS
// =============================================================================

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	logger, err := NewWithDir("test-session", t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestNewWithDir(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewWithDir("abc123", dir)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	want := filepath.Join(dir, "abc123.log")
	if logger.Path() != want {
		t.Errorf("Path = %q, want %q", logger.Path(), want)
	}
	if logger.SessionID() != "abc123" {
		t.Errorf("SessionID = %q, want 'abc123'", logger.SessionID())
	}
}

func TestNewWithDir_EmptySessionID(t *testing.T) {
	if _, err := NewWithDir("", t.TempDir()); err == nil {
		t.Error("Expected error for empty session ID")
	}
}

func TestLogger_OneLinePerEvent(t *testing.T) {
	logger := newTestLogger(t)

	events := []error{
		logger.LogSessionStart("llama3.2:latest"),
		logger.LogPrompt("llama3.2:latest", "Hello"),
		logger.LogReply("llama3.2:latest", "Hi there!", 3),
		logger.LogSessionEnd(),
	}
	for i, err := range events {
		if err != nil {
			t.Fatalf("Event %d failed: %v", i, err)
		}
	}

	lines := readLines(t, logger.Path())
	if len(lines) != 4 {
		t.Fatalf("len(lines) = %d, want 4", len(lines))
	}

	for _, want := range []string{"SESSION_START", "PROMPT", "REPLY", "SESSION_END"} {
		found := false
		for _, line := range lines {
			if strings.Contains(line, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("No line contains %q", want)
		}
	}
}

func TestLogger_LineFormat(t *testing.T) {
	logger := newTestLogger(t)

	if err := logger.LogPrompt("test-model", "What is Go?"); err != nil {
		t.Fatalf("LogPrompt failed: %v", err)
	}

	lines := readLines(t, logger.Path())
	fields := strings.Split(lines[0], " | ")
	if len(fields) != 7 {
		t.Fatalf("Field count = %d, want 7: %q", len(fields), lines[0])
	}
	if fields[1] != "PROMPT" {
		t.Errorf("Event field = %q, want 'PROMPT'", fields[1])
	}
	if fields[2] != "test-session" {
		t.Errorf("Session field = %q, want 'test-session'", fields[2])
	}
	if fields[4] != `"What is Go?"` {
		t.Errorf("Detail field = %q", fields[4])
	}
	if fields[6] != "OK" {
		t.Errorf("Status field = %q, want 'OK'", fields[6])
	}
}

func TestLogger_LogError(t *testing.T) {
	logger := newTestLogger(t)

	if err := logger.LogError("m", errors.New("connection refused")); err != nil {
		t.Fatalf("LogError failed: %v", err)
	}

	lines := readLines(t, logger.Path())
	if !strings.Contains(lines[0], "ERROR: connection refused") {
		t.Errorf("Line missing error status: %q", lines[0])
	}
}

func TestLogger_TruncatesLongPrompts(t *testing.T) {
	logger := newTestLogger(t)

	long := strings.Repeat("word ", 100)
	if err := logger.LogPrompt("m", long); err != nil {
		t.Fatalf("LogPrompt failed: %v", err)
	}

	lines := readLines(t, logger.Path())
	if !strings.Contains(lines[0], "...") {
		t.Error("Long prompt should be truncated with ellipsis")
	}
	if len(lines[0]) > 300 {
		t.Errorf("Line length = %d, should be bounded", len(lines[0]))
	}
}

func TestLogger_CollapsesNewlines(t *testing.T) {
	logger := newTestLogger(t)

	if err := logger.LogPrompt("m", "multi\nline\nprompt"); err != nil {
		t.Fatalf("LogPrompt failed: %v", err)
	}

	lines := readLines(t, logger.Path())
	if len(lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1 (newlines collapsed)", len(lines))
	}
	if !strings.Contains(lines[0], "multi line prompt") {
		t.Errorf("Line = %q, want collapsed prompt", lines[0])
	}
}

func TestLogger_Disabled(t *testing.T) {
	logger := newTestLogger(t)
	logger.SetEnabled(false)

	if err := logger.LogPrompt("m", "ignored"); err != nil {
		t.Fatalf("LogPrompt failed: %v", err)
	}

	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("Disabled logger wrote %d bytes", len(data))
	}
}

func TestLogger_Rotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewWithDir("rot", dir)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.SetMaxSize(1) // Rotate after every write

	logger.LogPrompt("m", "first")
	logger.LogPrompt("m", "second")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("len(entries) = %d, want rotated file plus current", len(entries))
	}
}

func TestLogger_CloseIdempotent(t *testing.T) {
	logger := newTestLogger(t)

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}

	// Logging after close is a no-op
	if err := logger.Log(Event{EventType: "X", Success: true}); err != nil {
		t.Errorf("Log after close returned %v, want nil", err)
	}
}

// =============================================================================
// EVENT FORMATTING
// =============================================================================

func TestEvent_ToLogLine(t *testing.T) {
	e := Event{
		Timestamp: time.Date(2025, 3, 14, 10, 32, 1, 0, time.UTC),
		EventType: "REPLY",
		SessionID: "s1",
		Model:     "llama3.2:latest",
		Detail:    "Hi",
		Tokens:    5,
		Success:   true,
	}

	line := e.ToLogLine()
	want := `2025-03-14 10:32:01 | REPLY | s1 | llama3.2:latest | "Hi" | 5 | OK`
	if line != want {
		t.Errorf("ToLogLine() = %q, want %q", line, want)
	}
}

func TestEvent_ToLogLine_Failure(t *testing.T) {
	e := Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		SessionID: "s1",
	}

	if !strings.HasSuffix(e.ToLogLine(), "FAILURE") {
		t.Errorf("Line should end in FAILURE: %q", e.ToLogLine())
	}
}
