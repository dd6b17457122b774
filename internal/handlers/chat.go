// Package handlers exposes the HTTP surface: completion submission,
// conversation management, settings, system prompts, and the model table.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"convoserve/internal/app"
	"convoserve/internal/apperr"
	"convoserve/internal/auth"
	"convoserve/internal/config"
	"convoserve/internal/logger"
	"convoserve/internal/orchestrator"
	"convoserve/internal/store"
	"convoserve/pkg/validation"

	"github.com/sirupsen/logrus"
)

// Request/Response types

type ChatRequest struct {
	ConversationID string   `json:"conversation_id,omitempty"`
	Message        string   `json:"message"`
	Model          *string  `json:"model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      *int     `json:"max_tokens,omitempty"`
}

type MessageData struct {
	ID               string   `json:"id"`
	Role             string   `json:"role"`
	Content          string   `json:"content"`
	Model            string   `json:"model,omitempty"`
	PromptTokens     *int     `json:"prompt_tokens,omitempty"`
	CompletionTokens *int     `json:"completion_tokens,omitempty"`
	TotalTokens      *int     `json:"total_tokens,omitempty"`
	ProcessingTimeMS *int     `json:"processing_time_ms,omitempty"`
	SystemPromptID   *string  `json:"system_prompt_id,omitempty"`
	CreatedAt        string   `json:"created_at"`
}

type UsageData struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	ConversationID string      `json:"conversation_id"`
	Message        MessageData `json:"message"`
	Usage          UsageData   `json:"usage"`
}

type ConversationInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ConversationsResponse struct {
	Conversations []ConversationInfo `json:"conversations"`
}

type MessagesResponse struct {
	Messages []MessageData `json:"messages"`
}

type SettingsData struct {
	ModelID        string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	SystemPromptID *string `json:"system_prompt_id,omitempty"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ModelsResponse struct {
	Models []config.Model `json:"models"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ChatHandlers routes HTTP requests into the orchestrator and store.
type ChatHandlers struct {
	config       *app.Config
	validator    *validation.ChatRequestValidator
	orchestrator *orchestrator.Orchestrator
}

// NewChatHandlers creates the HTTP handler set.
func NewChatHandlers(cfg *app.Config, orch *orchestrator.Orchestrator) *ChatHandlers {
	return &ChatHandlers{
		config:       cfg,
		validator:    validation.NewChatRequestValidator(),
		orchestrator: orch,
	}
}

// sendError maps an error chain to an HTTP status and a structured body.
func sendError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	kind := apperr.KindOf(err)

	if status >= 500 {
		logger.Log.WithError(err).Error("Request failed")
	} else {
		logger.Log.WithError(err).Debug("Request rejected")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   kind.String(),
		Code:    status,
		Message: err.Error(),
	})
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// ChatHandler handles POST /api/chat: submit one completion request.
func (h *ChatHandlers) ChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, apperr.Wrap(apperr.Input, err, "invalid request body"))
		return
	}

	if err := h.validator.ValidateChatRequest(req.Message, req.Temperature, req.MaxTokens); err != nil {
		sendError(w, apperr.Wrap(apperr.Input, err, "invalid chat request"))
		return
	}
	if req.Model != nil && !h.config.ModelsConfig().IsValidModel(*req.Model) {
		sendError(w, apperr.E(apperr.NotFound, "model %q is not available", *req.Model))
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conv, err := h.createConversation(r, userID, req)
		if err != nil {
			sendError(w, err)
			return
		}
		conversationID = conv.ID
	}

	resp, err := h.orchestrator.Complete(r.Context(), orchestrator.CompletionRequest{
		ConversationID: conversationID,
		UserID:         userID,
		Message:        req.Message,
		Model:          req.Model,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
	})
	if err != nil {
		sendError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, ChatResponse{
		ConversationID: resp.ConversationID,
		Message:        toMessageData(resp.Message),
		Usage: UsageData{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	})
}

// createConversation starts a new conversation titled from the first
// message, with settings seeded from configured defaults plus any
// per-request overrides.
func (h *ChatHandlers) createConversation(r *http.Request, userID string, req ChatRequest) (*store.Conversation, error) {
	title := req.Message
	if runes := []rune(title); len(runes) > 100 {
		title = string(runes[:100])
	}

	llmCfg := h.config.AppConfig.LLM
	settings := store.ConversationSettings{
		ModelID:     llmCfg.DefaultModel,
		Temperature: llmCfg.DefaultTemperature,
		MaxTokens:   llmCfg.DefaultMaxTokens,
	}
	if req.Model != nil {
		settings.ModelID = *req.Model
	}
	if req.Temperature != nil {
		settings.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		settings.MaxTokens = *req.MaxTokens
	}

	return h.config.Store.CreateConversation(r.Context(), userID, title, settings)
}

// GetConversationsHandler handles GET /api/conversations.
func (h *ChatHandlers) GetConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	conversations, err := h.config.Store.ListConversations(r.Context(), userID)
	if err != nil {
		sendError(w, err)
		return
	}

	resp := ConversationsResponse{Conversations: []ConversationInfo{}}
	for _, conv := range conversations {
		resp.Conversations = append(resp.Conversations, ConversationInfo{
			ID:        conv.ID,
			Title:     conv.Title,
			CreatedAt: conv.CreatedAt.Format(time.RFC3339),
			UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
		})
	}

	sendJSON(w, http.StatusOK, resp)
}

// GetConversationMessagesHandler handles GET /api/conversations/{id}/messages.
func (h *ChatHandlers) GetConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	conv, err := h.ownedConversation(r)
	if err != nil {
		sendError(w, err)
		return
	}

	messages, err := h.config.Store.ListMessages(r.Context(), conv.ID)
	if err != nil {
		sendError(w, err)
		return
	}

	resp := MessagesResponse{Messages: []MessageData{}}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, toMessageData(msg))
	}

	sendJSON(w, http.StatusOK, resp)
}

// DeleteConversationHandler handles DELETE /api/conversations/{id}.
func (h *ChatHandlers) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	conv, err := h.ownedConversation(r)
	if err != nil {
		sendError(w, err)
		return
	}

	if err := h.config.Store.DeleteConversation(r.Context(), conv.ID); err != nil {
		sendError(w, err)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"user_id":         conv.UserID,
	}).Info("Conversation deleted")

	sendJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Conversation deleted"})
}

// GetSettingsHandler handles GET /api/conversations/{id}/settings.
func (h *ChatHandlers) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	conv, err := h.ownedConversation(r)
	if err != nil {
		sendError(w, err)
		return
	}

	settings, err := h.config.Store.GetSettings(r.Context(), conv.ID)
	if err != nil {
		sendError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, SettingsData{
		ModelID:        settings.ModelID,
		Temperature:    settings.Temperature,
		MaxTokens:      settings.MaxTokens,
		SystemPromptID: settings.SystemPromptID,
	})
}

// UpdateSettingsHandler handles PUT /api/conversations/{id}/settings.
// Changes take effect on the next completion request; past messages are
// never rewritten.
func (h *ChatHandlers) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	conv, err := h.ownedConversation(r)
	if err != nil {
		sendError(w, err)
		return
	}

	var req SettingsData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, apperr.Wrap(apperr.Input, err, "invalid request body"))
		return
	}

	if err := h.validator.ValidateSettingsUpdate(req.ModelID, req.Temperature, req.MaxTokens); err != nil {
		sendError(w, apperr.Wrap(apperr.Input, err, "invalid settings"))
		return
	}
	if !h.config.ModelsConfig().IsValidModel(req.ModelID) {
		sendError(w, apperr.E(apperr.NotFound, "model %q is not available", req.ModelID))
		return
	}
	if req.SystemPromptID != nil {
		if _, err := h.config.Store.GetSystemPrompt(r.Context(), *req.SystemPromptID); err != nil {
			sendError(w, err)
			return
		}
	}

	err = h.config.Store.UpdateSettings(r.Context(), store.ConversationSettings{
		ConversationID: conv.ID,
		ModelID:        req.ModelID,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		SystemPromptID: req.SystemPromptID,
	})
	if err != nil {
		sendError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, req)
}

// GetUsageHandler handles GET /api/conversations/{id}/usage: lifetime
// usage totals derived from the conversation's assistant messages.
func (h *ChatHandlers) GetUsageHandler(w http.ResponseWriter, r *http.Request) {
	conv, err := h.ownedConversation(r)
	if err != nil {
		sendError(w, err)
		return
	}

	usage, err := h.config.Store.ConversationUsage(r.Context(), conv.ID)
	if err != nil {
		sendError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, UsageData{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	})
}

// GetModelsHandler handles GET /api/models.
func (h *ChatHandlers) GetModelsHandler(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, ModelsResponse{Models: h.config.ModelsConfig().GetAvailableModels()})
}

// ownedConversation loads the {id} path conversation and checks it belongs
// to the authenticated user.
func (h *ChatHandlers) ownedConversation(r *http.Request) (*store.Conversation, error) {
	id := r.PathValue("id")
	if id == "" {
		return nil, apperr.E(apperr.Input, "conversation id is required")
	}

	conv, err := h.config.Store.GetConversation(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if conv.UserID != auth.UserID(r.Context()) {
		return nil, apperr.E(apperr.Authorization, "conversation %s does not belong to the requesting user", id)
	}
	return conv, nil
}

func toMessageData(msg store.Message) MessageData {
	return MessageData{
		ID:               msg.ID,
		Role:             msg.Role,
		Content:          msg.Content,
		Model:            msg.Model,
		PromptTokens:     msg.PromptTokens,
		CompletionTokens: msg.CompletionTokens,
		TotalTokens:      msg.TotalTokens,
		ProcessingTimeMS: msg.LatencyMS,
		SystemPromptID:   msg.SystemPromptID,
		CreatedAt:        msg.CreatedAt.Format(time.RFC3339),
	}
}
