package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"convoserve/internal/apperr"
	"convoserve/internal/logger"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultAnthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersion        = "2023-06-01"
	anthropicDefaultMaxToks = 1024
)

// AnthropicProvider adapts the Anthropic messages API (Claude family).
// Anthropic takes the system prompt as a dedicated request field rather
// than a "system" role message; the adapter splits it off the prompt.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewAnthropicProvider creates an Anthropic adapter with a client-side
// rate cap.
func NewAnthropicProvider(apiKey string, rps float64) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:  apiKey,
		baseURL: defaultAnthropicURL,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate performs one non-streaming completion against Anthropic.
func (p *AnthropicProvider) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	if p.apiKey == "" {
		return nil, apperr.E(apperr.ProviderUnavailable, "ANTHROPIC_API_KEY not configured")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, classifyTransportError(p.Name(), err)
	}

	system, conversation := splitSystemPrompt(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxToks
	}

	body := anthropicRequest{
		Model:       req.Model,
		System:      system,
		Messages:    conversation,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	logger.Log.WithFields(logrus.Fields{
		"provider":      p.Name(),
		"model":         req.Model,
		"message_count": len(conversation),
	}).Info("Calling Anthropic API")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(p.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(p.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatusError(p.Name(), resp.StatusCode, string(respBody))
	}

	var msgResp anthropicResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, err, "decoding anthropic response")
	}

	var content string
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	if content == "" {
		return nil, apperr.E(apperr.ProviderUnavailable, "anthropic returned no text content")
	}

	result := &GenerationResult{
		Content: content,
		Model:   req.Model,
		Usage: Usage{
			PromptTokens:     msgResp.Usage.InputTokens,
			CompletionTokens: msgResp.Usage.OutputTokens,
			TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		},
	}

	logger.Log.WithFields(logrus.Fields{
		"provider":     p.Name(),
		"total_tokens": result.Usage.TotalTokens,
	}).Debug("Anthropic completion finished")

	return result, nil
}

// splitSystemPrompt separates a leading system message from the rest of the
// prompt for vendors that take it as a dedicated field.
func splitSystemPrompt(messages []Message) (string, []Message) {
	if len(messages) > 0 && messages[0].Role == RoleSystem {
		return messages[0].Content, messages[1:]
	}
	return "", messages
}
