// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/jeranaias/llmui/internal/export"
	"github.com/jeranaias/llmui/internal/history"
	"github.com/jeranaias/llmui/internal/index"
)

// ============================================================================
// HISTORY TYPES
// ============================================================================

// SaveChatRequest is the request body for POST /api/chats.
type SaveChatRequest struct {
	Name     string        `json:"name"`
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
}

// SaveChatResponse is the response body for POST /api/chats.
type SaveChatResponse struct {
	Name string `json:"name"`
}

// ChatListResponse is the response body for GET /api/chats.
type ChatListResponse struct {
	Chats []history.ChatMeta `json:"chats"`
}

// ChatDetailResponse is the response body for GET /api/chats/{name}.
type ChatDetailResponse struct {
	Name     string        `json:"name"`
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// SearchResponse is the response body for GET /api/search.
type SearchResponse struct {
	Query    string             `json:"query"`
	Messages []index.MessageHit `json:"messages,omitempty"`
	Chats    []index.ChatHit    `json:"chats,omitempty"`
	Metas    []history.ChatMeta `json:"metas,omitempty"`
}

// ============================================================================
// HISTORY HANDLERS
// ============================================================================

// handleListChats handles GET /api/chats.
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history_unavailable", "chat history is not configured")
		return
	}

	metas, err := s.store.List()
	if err != nil {
		log.Printf("HISTORY_LIST_ERROR | error=%v", err)
		s.writeError(w, http.StatusInternalServerError, "history_error", "failed to list chats")
		return
	}

	s.writeJSON(w, http.StatusOK, ChatListResponse{Chats: metas})
}

// handleSaveChat handles POST /api/chats.
func (s *Server) handleSaveChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history_unavailable", "chat history is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req SaveChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request format")
		return
	}

	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "chat must contain at least one message")
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	modelName := req.Model
	if modelName == "" {
		modelName = s.cfg.Ollama.Model
	}

	conv := conversationFromMessages(modelName, req.Messages)
	saved, err := s.store.Save(req.Name, conv)
	if err != nil {
		if errors.Is(err, history.ErrInvalidName) {
			s.writeError(w, http.StatusBadRequest, "invalid_name", "chat name contains no usable characters")
			return
		}
		log.Printf("HISTORY_SAVE_ERROR | name=%s error=%v", req.Name, err)
		s.writeError(w, http.StatusInternalServerError, "history_error", "failed to save chat")
		return
	}

	s.mu.RLock()
	idx := s.index
	logger := s.logger
	s.mu.RUnlock()

	if idx != nil {
		if err := idx.AddChat(saved); err != nil {
			log.Printf("INDEX_ADD_ERROR | name=%s error=%v", saved, err)
		}
	}
	if logger != nil {
		logger.LogChatSaved(saved)
	}

	s.writeJSON(w, http.StatusCreated, SaveChatResponse{Name: saved})
}

// handleGetChat handles GET /api/chats/{name}.
func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history_unavailable", "chat history is not configured")
		return
	}

	name := r.PathValue("name")
	conv, err := s.store.Load(name)
	if err != nil {
		if errors.Is(err, history.ErrChatNotFound) {
			s.writeError(w, http.StatusNotFound, "chat_not_found", fmt.Sprintf("no saved chat named %q", name))
			return
		}
		log.Printf("HISTORY_LOAD_ERROR | name=%s error=%v", name, err)
		s.writeError(w, http.StatusInternalServerError, "history_error", "failed to load chat")
		return
	}

	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()

	if logger != nil {
		logger.LogChatLoaded(name)
	}

	messages := make([]ChatMessage, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		messages = append(messages, ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	s.writeJSON(w, http.StatusOK, ChatDetailResponse{
		Name:     name,
		Model:    conv.Model,
		Messages: messages,
	})
}

// handleDeleteChat handles DELETE /api/chats/{name}.
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history_unavailable", "chat history is not configured")
		return
	}

	name := r.PathValue("name")
	if err := s.store.Delete(name); err != nil {
		if errors.Is(err, history.ErrChatNotFound) {
			s.writeError(w, http.StatusNotFound, "chat_not_found", fmt.Sprintf("no saved chat named %q", name))
			return
		}
		log.Printf("HISTORY_DELETE_ERROR | name=%s error=%v", name, err)
		s.writeError(w, http.StatusInternalServerError, "history_error", "failed to delete chat")
		return
	}

	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()

	if idx != nil {
		if err := idx.RemoveChat(name); err != nil {
			log.Printf("INDEX_REMOVE_ERROR | name=%s error=%v", name, err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleExportChat handles GET /api/chats/{name}/export?format=md|html|json.
// The rendered document is returned inline with a download filename.
func (s *Server) handleExportChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history_unavailable", "chat history is not configured")
		return
	}

	name := r.PathValue("name")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "md"
	}

	exporter, err := export.ForFormat(format, &export.Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             s.cfg.UI.Theme,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("unsupported export format %q", format))
		return
	}

	conv, err := s.store.Load(name)
	if err != nil {
		if errors.Is(err, history.ErrChatNotFound) {
			s.writeError(w, http.StatusNotFound, "chat_not_found", fmt.Sprintf("no saved chat named %q", name))
			return
		}
		log.Printf("HISTORY_LOAD_ERROR | name=%s error=%v", name, err)
		s.writeError(w, http.StatusInternalServerError, "history_error", "failed to load chat")
		return
	}

	data, err := exporter.Export(conv)
	if err != nil {
		log.Printf("EXPORT_ERROR | name=%s format=%s error=%v", name, format, err)
		s.writeError(w, http.StatusInternalServerError, "export_error", "failed to export chat")
		return
	}

	filename := history.SanitizeName(name) + exporter.FileExtension()
	w.Header().Set("Content-Type", exporter.MimeType()+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ============================================================================
// SEARCH HANDLER
// ============================================================================

// handleSearch handles GET /api/search?q=...&scope=messages|chats&limit=N.
// Searches use the full-text index when one is attached and fall back to
// a linear scan of the store otherwise.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history_unavailable", "chat history is not configured")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "missing query parameter q")
		return
	}

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "messages"
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()

	resp := SearchResponse{Query: query}

	if idx != nil {
		switch scope {
		case "messages":
			hits, err := idx.SearchMessages(r.Context(), query, limit)
			if err != nil {
				log.Printf("SEARCH_ERROR | scope=messages error=%v", err)
				s.writeError(w, http.StatusInternalServerError, "search_error", "search failed")
				return
			}
			resp.Messages = hits
		case "chats":
			hits, err := idx.SearchChats(r.Context(), query, limit)
			if err != nil {
				log.Printf("SEARCH_ERROR | scope=chats error=%v", err)
				s.writeError(w, http.StatusInternalServerError, "search_error", "search failed")
				return
			}
			resp.Chats = hits
		default:
			s.writeError(w, http.StatusBadRequest, "invalid_request", "scope must be messages or chats")
			return
		}

		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	// No index: scan the store directly.
	var metas []history.ChatMeta
	var err error
	switch scope {
	case "messages":
		metas, err = s.store.SearchMessages(query)
	case "chats":
		metas, err = s.store.Search(query)
	default:
		s.writeError(w, http.StatusBadRequest, "invalid_request", "scope must be messages or chats")
		return
	}
	if err != nil {
		log.Printf("SEARCH_ERROR | scope=%s error=%v", scope, err)
		s.writeError(w, http.StatusInternalServerError, "search_error", "search failed")
		return
	}

	resp.Metas = metas
	s.writeJSON(w, http.StatusOK, resp)
}
