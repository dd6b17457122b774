package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"convoserve/internal/apperr"
)

type SystemPromptData struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	BuiltIn   bool   `json:"built_in"`
	CreatedAt string `json:"created_at"`
}

type SystemPromptsResponse struct {
	Prompts []SystemPromptData `json:"prompts"`
}

type CreateSystemPromptRequest struct {
	Text string `json:"text"`
}

// ListSystemPromptsHandler handles GET /api/system-prompts.
func (h *ChatHandlers) ListSystemPromptsHandler(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.config.Store.ListSystemPrompts(r.Context())
	if err != nil {
		sendError(w, err)
		return
	}

	resp := SystemPromptsResponse{Prompts: []SystemPromptData{}}
	for _, p := range prompts {
		resp.Prompts = append(resp.Prompts, SystemPromptData{
			ID:        p.ID,
			Text:      p.Text,
			BuiltIn:   p.BuiltIn,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		})
	}

	sendJSON(w, http.StatusOK, resp)
}

// CreateSystemPromptHandler handles POST /api/system-prompts. Prompts are
// immutable rows; editing means creating a new one and pointing the
// conversation settings at it.
func (h *ChatHandlers) CreateSystemPromptHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSystemPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, apperr.Wrap(apperr.Input, err, "invalid request body"))
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		sendError(w, apperr.E(apperr.Input, "prompt text cannot be empty"))
		return
	}

	prompt, err := h.config.Store.CreateSystemPrompt(r.Context(), req.Text, false)
	if err != nil {
		sendError(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, SystemPromptData{
		ID:        prompt.ID,
		Text:      prompt.Text,
		BuiltIn:   prompt.BuiltIn,
		CreatedAt: prompt.CreatedAt.Format(time.RFC3339),
	})
}
