// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/llmui/internal/config"
	"github.com/jeranaias/llmui/internal/history"
	"github.com/jeranaias/llmui/internal/index"
	"github.com/jeranaias/llmui/internal/model"
	"github.com/jeranaias/llmui/internal/ollama"
	"github.com/jeranaias/llmui/internal/sessionlog"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxPromptLength is the maximum length for a single message content.
	MaxPromptLength = 100000

	// MaxMessageCount is the maximum number of messages in a chat request.
	MaxMessageCount = 200

	// MaxRequestBodySize limits request bodies to 2MB.
	MaxRequestBodySize = 2 * 1024 * 1024

	// Version is the server version.
	Version = "0.1.0"
)

// validRoles is the set of acceptable message roles in chat requests.
var validRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
}

// validateMessages checks that all message roles are acceptable and that
// no message exceeds the length limit.
func validateMessages(messages []ChatMessage) error {
	for i, msg := range messages {
		if !validRoles[msg.Role] {
			return fmt.Errorf("invalid role %q at message %d: must be one of user, assistant, system", msg.Role, i)
		}
		if len(msg.Content) > MaxPromptLength {
			return fmt.Errorf("message %d exceeds maximum length of %d", i, MaxPromptLength)
		}
	}
	return nil
}

// ============================================================================
// SERVER STATS
// ============================================================================

// ServerStats tracks request counters for the stats endpoint.
type ServerStats struct {
	TotalRequests  int64     `json:"total_requests"`
	ChatRequests   int64     `json:"chat_requests"`
	StreamRequests int64     `json:"stream_requests"`
	ChatErrors     int64     `json:"chat_errors"`
	TotalTokens    int64     `json:"total_tokens"`
	StartTime      time.Time `json:"start_time"`
}

// NewServerStats creates a new ServerStats instance.
func NewServerStats() *ServerStats {
	return &ServerStats{StartTime: time.Now()}
}

// RecordChat records a completed chat request.
func (s *ServerStats) RecordChat(streamed bool, tokens int) {
	atomic.AddInt64(&s.TotalRequests, 1)
	atomic.AddInt64(&s.ChatRequests, 1)
	if streamed {
		atomic.AddInt64(&s.StreamRequests, 1)
	}
	atomic.AddInt64(&s.TotalTokens, int64(tokens))
}

// RecordError records a failed chat request.
func (s *ServerStats) RecordError() {
	atomic.AddInt64(&s.TotalRequests, 1)
	atomic.AddInt64(&s.ChatErrors, 1)
}

// Snapshot returns a copy of the current counters.
func (s *ServerStats) Snapshot() ServerStats {
	return ServerStats{
		TotalRequests:  atomic.LoadInt64(&s.TotalRequests),
		ChatRequests:   atomic.LoadInt64(&s.ChatRequests),
		StreamRequests: atomic.LoadInt64(&s.StreamRequests),
		ChatErrors:     atomic.LoadInt64(&s.ChatErrors),
		TotalTokens:    atomic.LoadInt64(&s.TotalTokens),
		StartTime:      s.StartTime,
	}
}

// Uptime returns the server uptime duration.
func (s *ServerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the HTTP server behind the browser chat UI. It serves the
// embedded web assets, relays chat requests to the local Ollama instance,
// and exposes the chat history store over a JSON API.
type Server struct {
	cfg    *config.Config
	router *http.ServeMux
	server *http.Server

	ollama *ollama.Client
	store  *history.Store
	index  *index.ChatIndex
	logger *sessionlog.Logger
	stats  *ServerStats

	mu sync.RWMutex
}

// New creates a new Server from the given configuration. The history
// store is required; the index and session logger are optional.
func New(cfg *config.Config, client *ollama.Client, store *history.Store) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if client == nil {
		client = ollama.NewClient()
	}

	s := &Server{
		cfg:    cfg,
		router: http.NewServeMux(),
		ollama: client,
		store:  store,
		stats:  NewServerStats(),
	}

	s.setupRoutes()
	return s
}

// WithIndex attaches a chat search index. Search requests fall back to
// a linear scan of the store when no index is attached.
func (s *Server) WithIndex(idx *index.ChatIndex) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = idx
	return s
}

// WithSessionLogger attaches a session logger. All prompts, replies,
// and errors flowing through the chat endpoint are recorded.
func (s *Server) WithSessionLogger(logger *sessionlog.Logger) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.ListenAddr()
}

// Handler returns the fully assembled HTTP handler, including the
// middleware chain. Exposed for tests. A rate limit of 0 disables
// limiting.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default()),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		limiter := NewRateLimiter(s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst)
		middlewares = append(middlewares, RateLimitMiddleware(limiter))
	}
	return Chain(middlewares...)(s.router)
}

// ============================================================================
// ROUTES
// ============================================================================

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Web UI
	s.router.Handle("GET /", WebHandler())

	// Chat
	s.router.HandleFunc("POST /api/chat", s.handleChat)
	s.router.HandleFunc("GET /api/models", s.handleModels)

	// History
	s.router.HandleFunc("GET /api/chats", s.handleListChats)
	s.router.HandleFunc("POST /api/chats", s.handleSaveChat)
	s.router.HandleFunc("GET /api/chats/{name}", s.handleGetChat)
	s.router.HandleFunc("GET /api/chats/{name}/export", s.handleExportChat)
	s.router.HandleFunc("DELETE /api/chats/{name}", s.handleDeleteChat)
	s.router.HandleFunc("GET /api/search", s.handleSearch)

	// Health and stats
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /api/stats", s.handleStats)
}

// ============================================================================
// CHAT TYPES
// ============================================================================

// ChatMessage is a single message in a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// Usage contains token usage information for a completed reply.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatReply is the non-streaming response body for POST /api/chat.
type ChatReply struct {
	Message      ChatMessage `json:"message"`
	Model        string      `json:"model"`
	DoneReason   string      `json:"done_reason,omitempty"`
	Usage        Usage       `json:"usage"`
	DurationMs   int64       `json:"duration_ms"`
	TokensPerSec float64     `json:"tokens_per_sec,omitempty"`
}

// StreamEvent is a single SSE event in a streaming chat response.
type StreamEvent struct {
	Content    string `json:"content,omitempty"`
	Done       bool   `json:"done,omitempty"`
	DoneReason string `json:"done_reason,omitempty"`
	Usage      *Usage `json:"usage,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ============================================================================
// CHAT HANDLER
// ============================================================================

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request_too_large",
				fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return
		}
		log.Printf("CHAT_BAD_REQUEST | error=%v", err)
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request format")
		return
	}

	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "request must contain at least one message")
		return
	}
	if len(req.Messages) > MaxMessageCount {
		s.writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("too many messages: maximum is %d", MaxMessageCount))
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		log.Printf("CHAT_VALIDATION | error=%v", err)
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	modelName := req.Model
	if modelName == "" {
		modelName = s.cfg.Ollama.Model
	}

	s.logPrompt(modelName, req.Messages)

	if req.Stream {
		s.handleStreamingChat(w, r, req, modelName)
	} else {
		s.handleBlockingChat(w, r, req, modelName)
	}
}

// handleBlockingChat relays a chat request and returns the full reply.
func (s *Server) handleBlockingChat(w http.ResponseWriter, r *http.Request, req ChatRequest, modelName string) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.OllamaTimeout())
	defer cancel()

	resp, err := s.ollama.Chat(ctx, modelName, toOllamaMessages(req.Messages))
	if err != nil {
		s.writeChatError(w, modelName, err)
		return
	}

	tokens := resp.PromptEvalCount + resp.EvalCount
	s.stats.RecordChat(false, tokens)
	s.logReply(modelName, resp.Message.Content, resp.EvalCount)

	log.Printf("CHAT_COMPLETE | model=%s tokens=%d latency=%dms",
		modelName, tokens, time.Since(start).Milliseconds())

	s.writeJSON(w, http.StatusOK, ChatReply{
		Message: ChatMessage{
			Role:    "assistant",
			Content: resp.Message.Content,
		},
		Model:      resp.Model,
		DoneReason: resp.DoneReason,
		Usage: Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      tokens,
		},
		DurationMs:   time.Since(start).Milliseconds(),
		TokensPerSec: resp.TokensPerSecond(),
	})
}

// handleStreamingChat relays a chat request over SSE, forwarding tokens
// as they arrive from the model.
func (s *Server) handleStreamingChat(w http.ResponseWriter, r *http.Request, req ChatRequest, modelName string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var reply strings.Builder
	var usage Usage
	var doneReason string
	var streamErr error

	err := s.ollama.ChatStream(r.Context(), modelName, toOllamaMessages(req.Messages), func(chunk ollama.StreamChunk) {
		if chunk.Error != nil {
			streamErr = chunk.Error
			return
		}

		if chunk.Content != "" {
			reply.WriteString(chunk.Content)
			s.sendEvent(w, flusher, StreamEvent{Content: chunk.Content})
		}

		if chunk.Done {
			doneReason = chunk.DoneReason
			usage = Usage{
				PromptTokens:     chunk.PromptTokens,
				CompletionTokens: chunk.CompletionTokens,
				TotalTokens:      chunk.PromptTokens + chunk.CompletionTokens,
			}
		}
	})

	if streamErr == nil && err != nil {
		streamErr = err
	}

	if streamErr != nil {
		s.stats.RecordError()
		s.logError(modelName, streamErr)
		log.Printf("STREAM_ERROR | model=%s error=%v", modelName, streamErr)
		s.sendEvent(w, flusher, StreamEvent{
			Done:  true,
			Error: chatErrorKind(streamErr),
		})
		fmt.Fprintf(w, "data: [DONE]\n\n")
		flusher.Flush()
		return
	}

	s.sendEvent(w, flusher, StreamEvent{
		Done:       true,
		DoneReason: doneReason,
		Usage:      &usage,
	})
	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()

	s.stats.RecordChat(true, usage.TotalTokens)
	s.logReply(modelName, reply.String(), usage.CompletionTokens)
}

// sendEvent sends a single SSE event.
func (s *Server) sendEvent(w http.ResponseWriter, flusher http.Flusher, event StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// toOllamaMessages converts API messages to the Ollama wire format.
func toOllamaMessages(messages []ChatMessage) []ollama.Message {
	out := make([]ollama.Message, len(messages))
	for i, msg := range messages {
		out[i] = ollama.Message{Role: msg.Role, Content: msg.Content}
	}
	return out
}

// ============================================================================
// MODELS HANDLER
// ============================================================================

// ModelEntry describes an installed model in the models response.
type ModelEntry struct {
	Name       string    `json:"name"`
	Size       string    `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	Default    bool      `json:"default,omitempty"`
}

// ModelsResponse is the response body for GET /api/models.
type ModelsResponse struct {
	Models []ModelEntry `json:"models"`
}

// handleModels handles GET /api/models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	models, err := s.ollama.ListModels(ctx)
	if err != nil {
		s.writeChatError(w, "", err)
		return
	}

	entries := make([]ModelEntry, 0, len(models))
	for i := range models {
		m := &models[i]
		entries = append(entries, ModelEntry{
			Name:       m.Name,
			Size:       m.FormatSize(),
			ModifiedAt: m.ModifiedAt,
			Default:    m.Name == s.cfg.Ollama.Model,
		})
	}

	s.writeJSON(w, http.StatusOK, ModelsResponse{Models: entries})
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	OllamaStatus string `json:"ollama_status"`
	DefaultModel string `json:"default_model"`
	ChatCount    int    `json:"chat_count"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:       "ok",
		Version:      Version,
		DefaultModel: s.cfg.Ollama.Model,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.ollama.CheckRunning(ctx); err == nil {
		health.OllamaStatus = "ok"
	} else {
		health.OllamaStatus = "unavailable"
		health.Status = "degraded"
	}

	if s.store != nil {
		if metas, err := s.store.List(); err == nil {
			health.ChatCount = len(metas)
		}
	}

	s.writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// STATS HANDLER
// ============================================================================

// StatsResponse is the response body for GET /api/stats.
type StatsResponse struct {
	TotalRequests  int64 `json:"total_requests"`
	ChatRequests   int64 `json:"chat_requests"`
	StreamRequests int64 `json:"stream_requests"`
	ChatErrors     int64 `json:"chat_errors"`
	TotalTokens    int64 `json:"total_tokens"`
	UptimeSeconds  int64 `json:"uptime_seconds"`
	IndexedChats   int   `json:"indexed_chats,omitempty"`
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.Snapshot()

	resp := StatsResponse{
		TotalRequests:  stats.TotalRequests,
		ChatRequests:   stats.ChatRequests,
		StreamRequests: stats.StreamRequests,
		ChatErrors:     stats.ChatErrors,
		TotalTokens:    stats.TotalTokens,
		UptimeSeconds:  int64(s.stats.Uptime().Seconds()),
	}

	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()

	if idx != nil {
		if indexStats, err := idx.GetStats(); err == nil {
			resp.IndexedChats = indexStats.ChatCount
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.ListenAddr(),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	log.Printf("SERVER_START | addr=%s version=%s model=%s", s.cfg.ListenAddr(), Version, s.cfg.Ollama.Model)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")

	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()

	if logger != nil {
		logger.LogSessionEnd()
	}

	return s.server.Shutdown(ctx)
}

// ============================================================================
// ERROR MAPPING
// ============================================================================

// chatErrorKind maps a backend error to a stable machine-readable kind.
func chatErrorKind(err error) string {
	switch {
	case ollama.IsNotRunning(err):
		return "backend_unavailable"
	case ollama.IsModelNotFound(err):
		return "model_not_found"
	case ollama.IsTimeout(err):
		return "timeout"
	default:
		return "backend_error"
	}
}

// writeChatError maps a backend error to an HTTP status and writes the
// error response. Connection failures surface as 502 so the UI can tell
// "Ollama is down" apart from a bad request.
func (s *Server) writeChatError(w http.ResponseWriter, modelName string, err error) {
	s.stats.RecordError()
	s.logError(modelName, err)

	switch {
	case ollama.IsNotRunning(err):
		log.Printf("CHAT_BACKEND_DOWN | error=%v", err)
		s.writeError(w, http.StatusBadGateway, "backend_unavailable",
			"inference server is not running; start it with: ollama serve")
	case ollama.IsModelNotFound(err):
		log.Printf("CHAT_MODEL_NOT_FOUND | model=%s", modelName)
		s.writeError(w, http.StatusNotFound, "model_not_found",
			fmt.Sprintf("model %q is not installed; pull it with: ollama pull %s", modelName, modelName))
	case ollama.IsTimeout(err):
		log.Printf("CHAT_TIMEOUT | model=%s", modelName)
		s.writeError(w, http.StatusGatewayTimeout, "timeout", "request to inference server timed out")
	default:
		log.Printf("CHAT_ERROR | model=%s error=%v", modelName, err)
		s.writeError(w, http.StatusInternalServerError, "backend_error", "chat request failed")
	}
}

// ============================================================================
// SESSION LOG HELPERS
// ============================================================================

func (s *Server) logPrompt(modelName string, messages []ChatMessage) {
	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()

	if logger == nil {
		return
	}

	// Only the newest user message is logged; earlier turns were
	// already recorded when they were sent.
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			logger.LogPrompt(modelName, messages[i].Content)
			return
		}
	}
}

func (s *Server) logReply(modelName, reply string, tokens int) {
	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()

	if logger != nil {
		logger.LogReply(modelName, reply, tokens)
	}
}

func (s *Server) logError(modelName string, err error) {
	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()

	if logger != nil {
		logger.LogError(modelName, err)
	}
}

// ============================================================================
// RESPONSE HELPERS
// ============================================================================

// ErrorBody is the JSON error envelope returned by all API endpoints.
type ErrorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	var body ErrorBody
	body.Error.Kind = kind
	body.Error.Message = message
	s.writeJSON(w, status, body)
}

// conversationFromMessages builds a model.Conversation from API messages.
func conversationFromMessages(modelName string, messages []ChatMessage) *model.Conversation {
	conv := model.NewConversation(modelName)
	for _, msg := range messages {
		conv.Append(model.NewMessage(model.Role(msg.Role), msg.Content))
	}
	return conv
}
