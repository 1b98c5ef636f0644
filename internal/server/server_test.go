// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/llmui/internal/config"
	"github.com/jeranaias/llmui/internal/history"
	"github.com/jeranaias/llmui/internal/ollama"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeOllama serves a minimal Ollama API for handler tests.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	})
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"models":[{"name":"test-model","size":2048,"modified_at":"2025-01-01T00:00:00Z"}]}`)
	})
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req ollama.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if req.Model == "missing-model" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"model 'missing-model' not found"}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if req.Stream {
			fmt.Fprintln(w, `{"model":"test-model","message":{"role":"assistant","content":"Hel"},"done":false}`)
			fmt.Fprintln(w, `{"model":"test-model","message":{"role":"assistant","content":"lo"},"done":false}`)
			fmt.Fprintln(w, `{"model":"test-model","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":5,"eval_count":2,"eval_duration":1000000000}`)
			return
		}

		fmt.Fprint(w, `{"model":"test-model","message":{"role":"assistant","content":"Hello there"},"done":true,"done_reason":"stop","prompt_eval_count":5,"eval_count":3,"eval_duration":1000000000}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestServer builds a Server wired to the given backend URL with a
// temp-dir history store.
func newTestServer(t *testing.T, backendURL string) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Ollama.URL = backendURL
	cfg.Ollama.Model = "test-model"
	cfg.Ollama.TimeoutSecs = 5

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      backendURL,
		DefaultModel: "test-model",
		Timeout:      5 * time.Second,
	})

	store, err := history.NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewStoreWithDir() error = %v", err)
	}

	return New(cfg, client, store)
}

// downBackendURL returns a URL pointing at a closed server, so every
// request fails with a connection error.
func downBackendURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func (s *Server) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// =============================================================================
// SERVER STATS TESTS
// =============================================================================

func TestNewServerStats(t *testing.T) {
	stats := NewServerStats()

	if stats == nil {
		t.Fatal("NewServerStats() returned nil")
	}
	if stats.TotalRequests != 0 {
		t.Errorf("TotalRequests = %d, want 0", stats.TotalRequests)
	}
	if stats.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
}

func TestServerStats_Record(t *testing.T) {
	stats := NewServerStats()

	stats.RecordChat(false, 100)
	stats.RecordChat(true, 200)
	stats.RecordError()

	snap := stats.Snapshot()
	if snap.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", snap.TotalRequests)
	}
	if snap.ChatRequests != 2 {
		t.Errorf("ChatRequests = %d, want 2", snap.ChatRequests)
	}
	if snap.StreamRequests != 1 {
		t.Errorf("StreamRequests = %d, want 1", snap.StreamRequests)
	}
	if snap.ChatErrors != 1 {
		t.Errorf("ChatErrors = %d, want 1", snap.ChatErrors)
	}
	if snap.TotalTokens != 300 {
		t.Errorf("TotalTokens = %d, want 300", snap.TotalTokens)
	}
}

func TestServerStats_Uptime(t *testing.T) {
	stats := NewServerStats()
	time.Sleep(10 * time.Millisecond)

	if uptime := stats.Uptime(); uptime < 10*time.Millisecond {
		t.Errorf("Uptime = %v, expected >= 10ms", uptime)
	}
}

// =============================================================================
// VALIDATE MESSAGES TESTS
// =============================================================================

func TestValidateMessages(t *testing.T) {
	tests := []struct {
		name     string
		messages []ChatMessage
		wantErr  bool
	}{
		{
			name:     "empty",
			messages: []ChatMessage{},
			wantErr:  false,
		},
		{
			name: "valid conversation",
			messages: []ChatMessage{
				{Role: "system", Content: "Be helpful"},
				{Role: "user", Content: "Hello"},
				{Role: "assistant", Content: "Hi!"},
			},
			wantErr: false,
		},
		{
			name: "invalid role",
			messages: []ChatMessage{
				{Role: "hacker", Content: "Hello"},
			},
			wantErr: true,
		},
		{
			name: "empty role",
			messages: []ChatMessage{
				{Role: "", Content: "Hello"},
			},
			wantErr: true,
		},
		{
			name: "content too long",
			messages: []ChatMessage{
				{Role: "user", Content: strings.Repeat("a", MaxPromptLength+1)},
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateMessages(tc.messages)
			if (err != nil) != tc.wantErr {
				t.Errorf("validateMessages() error = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

// =============================================================================
// CHAT HANDLER TESTS
// =============================================================================

func TestHandleChat_OK(t *testing.T) {
	backend := fakeOllama(t)
	s := newTestServer(t, backend.URL)

	body := `{"messages": [{"role": "user", "content": "Hi"}]}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	w := s.serve(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var reply ChatReply
	if err := json.NewDecoder(w.Body).Decode(&reply); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if reply.Message.Content != "Hello there" {
		t.Errorf("Message.Content = %q, want %q", reply.Message.Content, "Hello there")
	}
	if reply.Message.Role != "assistant" {
		t.Errorf("Message.Role = %q, want assistant", reply.Message.Role)
	}
	if reply.Usage.TotalTokens != 8 {
		t.Errorf("Usage.TotalTokens = %d, want 8", reply.Usage.TotalTokens)
	}
	if reply.DoneReason != "stop" {
		t.Errorf("DoneReason = %q, want stop", reply.DoneReason)
	}
}

func TestHandleChat_EmptyMessages(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"messages": []}`))
	w := s.serve(req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{invalid json}`))
	w := s.serve(req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleChat_InvalidRole(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	body := `{"messages": [{"role": "hacker", "content": "test"}]}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	w := s.serve(req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleChat_BackendDown(t *testing.T) {
	s := newTestServer(t, downBackendURL(t))

	body := `{"messages": [{"role": "user", "content": "Hi"}]}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	w := s.serve(req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	errBody := decodeError(t, w)
	if errBody.Error.Kind != "backend_unavailable" {
		t.Errorf("Error.Kind = %q, want backend_unavailable", errBody.Error.Kind)
	}
	if !strings.Contains(errBody.Error.Message, "ollama serve") {
		t.Errorf("Error.Message = %q, want remediation hint", errBody.Error.Message)
	}
}

func TestHandleChat_ModelNotFound(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	body := `{"model": "missing-model", "messages": [{"role": "user", "content": "Hi"}]}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	w := s.serve(req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}

	errBody := decodeError(t, w)
	if errBody.Error.Kind != "model_not_found" {
		t.Errorf("Error.Kind = %q, want model_not_found", errBody.Error.Kind)
	}
	if !strings.Contains(errBody.Error.Message, "missing-model") {
		t.Errorf("Error.Message = %q, want model name", errBody.Error.Message)
	}
}

func TestHandleChat_Streaming(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	body := `{"messages": [{"role": "user", "content": "Hi"}], "stream": true}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	w := s.serve(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	var content strings.Builder
	var doneEvent *StreamEvent
	sawDoneMarker := false

	for _, block := range strings.Split(w.Body.String(), "\n\n") {
		if !strings.HasPrefix(block, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(block, "data: ")
		if payload == "[DONE]" {
			sawDoneMarker = true
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			t.Fatalf("failed to decode event %q: %v", payload, err)
		}
		content.WriteString(event.Content)
		if event.Done {
			e := event
			doneEvent = &e
		}
	}

	if content.String() != "Hello" {
		t.Errorf("streamed content = %q, want %q", content.String(), "Hello")
	}
	if doneEvent == nil {
		t.Fatal("no done event received")
	}
	if doneEvent.Usage == nil || doneEvent.Usage.CompletionTokens != 2 {
		t.Errorf("done event usage = %+v, want completion_tokens=2", doneEvent.Usage)
	}
	if !sawDoneMarker {
		t.Error("missing [DONE] marker")
	}
}

func TestHandleChat_StreamingBackendDown(t *testing.T) {
	s := newTestServer(t, downBackendURL(t))

	body := `{"messages": [{"role": "user", "content": "Hi"}], "stream": true}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	w := s.serve(req)

	if !strings.Contains(w.Body.String(), "backend_unavailable") {
		t.Errorf("stream body = %q, want backend_unavailable error event", w.Body.String())
	}
}

// =============================================================================
// MODELS AND HEALTH TESTS
// =============================================================================

func TestHandleModels(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	req := httptest.NewRequest("GET", "/api/models", nil)
	w := s.serve(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ModelsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Models) != 1 {
		t.Fatalf("len(Models) = %d, want 1", len(resp.Models))
	}
	if resp.Models[0].Name != "test-model" {
		t.Errorf("Models[0].Name = %q, want test-model", resp.Models[0].Name)
	}
	if !resp.Models[0].Default {
		t.Error("test-model should be marked as default")
	}
}

func TestHandleModels_BackendDown(t *testing.T) {
	s := newTestServer(t, downBackendURL(t))

	req := httptest.NewRequest("GET", "/api/models", nil)
	w := s.serve(req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	req := httptest.NewRequest("GET", "/health", nil)
	w := s.serve(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if resp.OllamaStatus != "ok" {
		t.Errorf("OllamaStatus = %q, want ok", resp.OllamaStatus)
	}
	if resp.Version != Version {
		t.Errorf("Version = %q, want %q", resp.Version, Version)
	}
}

func TestHandleHealth_Degraded(t *testing.T) {
	s := newTestServer(t, downBackendURL(t))

	req := httptest.NewRequest("GET", "/health", nil)
	w := s.serve(req)

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
	if resp.OllamaStatus != "unavailable" {
		t.Errorf("OllamaStatus = %q, want unavailable", resp.OllamaStatus)
	}
}

// =============================================================================
// HISTORY HANDLER TESTS
// =============================================================================

func saveTestChat(t *testing.T, s *Server, name string) string {
	t.Helper()

	body := fmt.Sprintf(`{"name": %q, "messages": [
		{"role": "user", "content": "How do I sort a slice?"},
		{"role": "assistant", "content": "Use sort.Slice with a less function."}
	]}`, name)

	req := httptest.NewRequest("POST", "/api/chats", strings.NewReader(body))
	w := s.serve(req)

	if w.Code != http.StatusCreated {
		t.Fatalf("save status = %d, want %d, body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp SaveChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.Name
}

func TestHandleSaveAndGetChat(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	saved := saveTestChat(t, s, "go help")
	if saved != "go-help" {
		t.Errorf("saved name = %q, want go-help", saved)
	}

	req := httptest.NewRequest("GET", "/api/chats/go-help", nil)
	w := s.serve(req)

	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ChatDetailResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(resp.Messages))
	}
	if resp.Messages[1].Role != "assistant" {
		t.Errorf("Messages[1].Role = %q, want assistant", resp.Messages[1].Role)
	}
	if resp.Model != "test-model" {
		t.Errorf("Model = %q, want test-model", resp.Model)
	}
}

func TestHandleGetChat_NotFound(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	req := httptest.NewRequest("GET", "/api/chats/no-such-chat", nil)
	w := s.serve(req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}

	errBody := decodeError(t, w)
	if errBody.Error.Kind != "chat_not_found" {
		t.Errorf("Error.Kind = %q, want chat_not_found", errBody.Error.Kind)
	}
}

func TestHandleListChats(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	saveTestChat(t, s, "first")
	saveTestChat(t, s, "second")

	req := httptest.NewRequest("GET", "/api/chats", nil)
	w := s.serve(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ChatListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Chats) != 2 {
		t.Errorf("len(Chats) = %d, want 2", len(resp.Chats))
	}
}

func TestHandleDeleteChat(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	saveTestChat(t, s, "doomed")

	req := httptest.NewRequest("DELETE", "/api/chats/doomed", nil)
	w := s.serve(req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}

	req = httptest.NewRequest("GET", "/api/chats/doomed", nil)
	w = s.serve(req)

	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleDeleteChat_NotFound(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	req := httptest.NewRequest("DELETE", "/api/chats/never-existed", nil)
	w := s.serve(req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleSaveChat_EmptyMessages(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	req := httptest.NewRequest("POST", "/api/chats", strings.NewReader(`{"name": "empty", "messages": []}`))
	w := s.serve(req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// =============================================================================
// EXPORT HANDLER TESTS
// =============================================================================

func TestHandleExportChat_Markdown(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	saveTestChat(t, s, "go-help")

	req := httptest.NewRequest("GET", "/api/chats/go-help/export", nil)
	w := s.serve(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q, want text/markdown", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "go-help.md") {
		t.Errorf("Content-Disposition = %q, want go-help.md filename", cd)
	}
	if !strings.Contains(w.Body.String(), "sort.Slice") {
		t.Error("export body missing message content")
	}
}

func TestHandleExportChat_HTML(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	saveTestChat(t, s, "go-help")

	req := httptest.NewRequest("GET", "/api/chats/go-help/export?format=html", nil)
	w := s.serve(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Error("export body is not an HTML document")
	}
}

func TestHandleExportChat_UnsupportedFormat(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	saveTestChat(t, s, "go-help")

	req := httptest.NewRequest("GET", "/api/chats/go-help/export?format=docx", nil)
	w := s.serve(req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleExportChat_NotFound(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	req := httptest.NewRequest("GET", "/api/chats/no-such-chat/export", nil)
	w := s.serve(req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}

	errBody := decodeError(t, w)
	if errBody.Error.Kind != "chat_not_found" {
		t.Errorf("Error.Kind = %q, want chat_not_found", errBody.Error.Kind)
	}
}

// =============================================================================
// SEARCH HANDLER TESTS
// =============================================================================

func TestHandleSearch_StoreFallback(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	saveTestChat(t, s, "sorting")

	req := httptest.NewRequest("GET", "/api/search?q=slice&scope=messages", nil)
	w := s.serve(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Metas) != 1 {
		t.Fatalf("len(Metas) = %d, want 1", len(resp.Metas))
	}
	if resp.Metas[0].Name != "sorting" {
		t.Errorf("Metas[0].Name = %q, want sorting", resp.Metas[0].Name)
	}
}

func TestHandleSearch_MissingQuery(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	req := httptest.NewRequest("GET", "/api/search", nil)
	w := s.serve(req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleSearch_InvalidScope(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	req := httptest.NewRequest("GET", "/api/search?q=test&scope=everything", nil)
	w := s.serve(req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// =============================================================================
// HANDLER AND MIDDLEWARE CHAIN TESTS
// =============================================================================

// TestHandler_DefaultConfig builds the full middleware chain from an
// unmodified default config and serves a request through it, covering
// the config-to-limiter seam.
func TestHandler_DefaultConfig(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)
	handler := s.Handler()

	req := httptest.NewRequest("GET", "/api/stats", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestHandler_RateLimitEnforced(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)
	s.cfg.Server.RateLimitRPS = 1
	s.cfg.Server.RateLimitBurst = 1
	handler := s.Handler()

	req := httptest.NewRequest("GET", "/api/stats", nil)
	req.RemoteAddr = "203.0.113.9:12345"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

// TestHandler_RateLimitDisabled verifies that a zero rate turns limiting
// off entirely rather than falling back to a default rate.
func TestHandler_RateLimitDisabled(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)
	s.cfg.Server.RateLimitRPS = 0
	handler := s.Handler()

	req := httptest.NewRequest("GET", "/api/stats", nil)
	req.RemoteAddr = "203.0.113.9:12345"

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

// =============================================================================
// WEB UI TESTS
// =============================================================================

func TestWebHandler_ServesIndex(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	req := httptest.NewRequest("GET", "/", nil)
	w := s.serve(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "<title>llmui</title>") {
		t.Error("index page missing title")
	}
}

func TestWebHandler_ServesAssets(t *testing.T) {
	s := newTestServer(t, fakeOllama(t).URL)

	for _, path := range []string{"/app.js", "/style.css"} {
		req := httptest.NewRequest("GET", path, nil)
		w := s.serve(req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}
