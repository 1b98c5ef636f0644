// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama inference API.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE HELPERS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if msg.Role != "user" {
		t.Errorf("Role = %q, want 'user'", msg.Role)
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", msg.Content)
	}
}

func TestNewAssistantMessage(t *testing.T) {
	msg := NewAssistantMessage("Response")

	if msg.Role != "assistant" {
		t.Errorf("Role = %q, want 'assistant'", msg.Role)
	}
}

func TestNewSystemMessage(t *testing.T) {
	msg := NewSystemMessage("You are a helpful assistant")

	if msg.Role != "system" {
		t.Errorf("Role = %q, want 'system'", msg.Role)
	}
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

func TestNewClientWithConfig_Defaults(t *testing.T) {
	client := NewClientWithConfig(&ClientConfig{})

	if client.BaseURL() != "http://127.0.0.1:11434" {
		t.Errorf("BaseURL = %q, want default", client.BaseURL())
	}
	if client.DefaultModel() != "llama3.2:latest" {
		t.Errorf("DefaultModel = %q, want default", client.DefaultModel())
	}
}

func TestNewClientWithConfig_Nil(t *testing.T) {
	client := NewClientWithConfig(nil)
	if client == nil {
		t.Fatal("NewClientWithConfig(nil) returned nil")
	}
}

// =============================================================================
// FAKE SERVER HELPERS
// =============================================================================

// newTestClient returns a client pointed at the given fake server.
func newTestClient(srv *httptest.Server) *Client {
	return NewClientWithConfig(&ClientConfig{
		BaseURL:      srv.URL,
		Timeout:      2 * time.Second,
		DefaultModel: "test-model",
	})
}

// unreachableClient returns a client pointed at a closed server.
func unreachableClient(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return NewClientWithConfig(&ClientConfig{BaseURL: url, Timeout: time.Second})
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

func TestCheckRunning_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := newTestClient(srv).CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning failed: %v", err)
	}
}

func TestCheckRunning_NotRunning(t *testing.T) {
	err := unreachableClient(t).CheckRunning(context.Background())

	if !IsNotRunning(err) {
		t.Errorf("Expected not-running error, got %v", err)
	}
	if !errors.Is(err, ErrNotRunning) {
		t.Error("errors.Is(err, ErrNotRunning) should be true")
	}
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(ListModelsResponse{
			Models: []ModelInfo{
				{Name: "llama3.2:latest", Size: 2 * 1024 * 1024 * 1024},
				{Name: "qwen2.5:7b"},
			},
		})
	}))
	defer srv.Close()

	models, err := newTestClient(srv).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}
	if models[0].Name != "llama3.2:latest" {
		t.Errorf("models[0].Name = %q", models[0].Name)
	}
}

func TestShowModel_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ShowModel(context.Background(), "nope:latest")
	if !IsModelNotFound(err) {
		t.Errorf("Expected model-not-found error, got %v", err)
	}
}

func TestModelExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ShowModelRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Name != "present:latest" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(ShowModelResponse{})
	}))
	defer srv.Close()

	client := newTestClient(srv)
	if !client.ModelExists(context.Background(), "present:latest") {
		t.Error("ModelExists should be true for an installed model")
	}
	if client.ModelExists(context.Background(), "absent:latest") {
		t.Error("ModelExists should be false for a missing model")
	}
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		if req.Stream {
			t.Error("Chat should send stream=false")
		}
		if len(req.Messages) != 2 {
			t.Errorf("len(messages) = %d, want 2", len(req.Messages))
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Model:     req.Model,
			Message:   NewAssistantMessage("hi there"),
			Done:      true,
			EvalCount: 3,
		})
	}))
	defer srv.Close()

	resp, err := newTestClient(srv).Chat(context.Background(), "test-model", []Message{
		NewSystemMessage("be brief"),
		NewUserMessage("hello"),
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Message.Content != "hi there" {
		t.Errorf("Content = %q, want 'hi there'", resp.Message.Content)
	}
}

func TestChat_DefaultModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "test-model" {
			t.Errorf("Model = %q, want default 'test-model'", req.Model)
		}
		json.NewEncoder(w).Encode(ChatResponse{Done: true})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).Chat(context.Background(), "", []Message{NewUserMessage("hi")}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
}

func TestChat_NotRunning(t *testing.T) {
	_, err := unreachableClient(t).Chat(context.Background(), "m", []Message{NewUserMessage("hi")})
	if !IsNotRunning(err) {
		t.Errorf("Expected not-running error, got %v", err)
	}
}

func TestChat_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Chat(context.Background(), "missing", []Message{NewUserMessage("hi")})
	if !IsModelNotFound(err) {
		t.Errorf("Expected model-not-found error, got %v", err)
	}
}

func TestChat_APIErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(APIError{Error: "out of memory"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Chat(context.Background(), "m", []Message{NewUserMessage("hi")})
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("Expected server error message, got %v", err)
	}
}

// =============================================================================
// STREAMING
// =============================================================================

func TestChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("ChatStream should send stream=true")
		}
		lines := []string{
			`{"model":"test-model","message":{"role":"assistant","content":"Hel"},"done":false}`,
			`{"model":"test-model","message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"model":"test-model","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","eval_count":2}`,
		}
		for _, l := range lines {
			w.Write([]byte(l + "\n"))
		}
	}))
	defer srv.Close()

	var content strings.Builder
	var final StreamChunk
	err := newTestClient(srv).ChatStream(context.Background(), "test-model",
		[]Message{NewUserMessage("hi")}, func(chunk StreamChunk) {
			content.WriteString(chunk.Content)
			if chunk.Done {
				final = chunk
			}
		})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if content.String() != "Hello" {
		t.Errorf("Streamed content = %q, want 'Hello'", content.String())
	}
	if final.CompletionTokens != 2 {
		t.Errorf("CompletionTokens = %d, want 2", final.CompletionTokens)
	}
	if final.DoneReason != "stop" {
		t.Errorf("DoneReason = %q, want 'stop'", final.DoneReason)
	}
}

func TestChatStreamChan_Error(t *testing.T) {
	client := unreachableClient(t)

	var last StreamChunk
	for chunk := range client.ChatStreamChan(context.Background(), "m", []Message{NewUserMessage("hi")}) {
		last = chunk
	}

	if last.Error == nil {
		t.Fatal("Expected error chunk from unreachable server")
	}
	if !last.Done {
		t.Error("Error chunk should have Done set")
	}
}

// =============================================================================
// STREAM READER
// =============================================================================

func TestStreamReader_SkipsMalformedLines(t *testing.T) {
	input := "not json\n" +
		`{"message":{"content":"ok"},"done":false}` + "\n" +
		`{"message":{"content":""},"done":true}` + "\n"

	var chunks []StreamChunk
	err := NewStreamReader(strings.NewReader(input)).Process(context.Background(), func(c StreamChunk) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	var content strings.Builder
	for _, c := range chunks {
		content.WriteString(c.Content)
	}
	if content.String() != "ok" {
		t.Errorf("Content = %q, want 'ok'", content.String())
	}
}

func TestStreamReader_ErrorLine(t *testing.T) {
	input := `{"error":"model requires more memory"}` + "\n"

	var final StreamChunk
	err := NewStreamReader(strings.NewReader(input)).Process(context.Background(), func(c StreamChunk) {
		final = c
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if final.Error == nil {
		t.Fatal("Expected error chunk")
	}
	if !strings.Contains(final.Error.Error(), "more memory") {
		t.Errorf("Error = %v", final.Error)
	}
}

func TestStreamReader_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewStreamReader(strings.NewReader("{}\n")).Process(ctx, func(StreamChunk) {})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// =============================================================================
// MODEL INFO
// =============================================================================

func TestModelInfo_FormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2 KB"},
		{5 * 1024 * 1024, "5 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
	}

	for _, tt := range tests {
		m := ModelInfo{Size: tt.size}
		if got := m.FormatSize(); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
