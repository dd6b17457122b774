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

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider adapts the OpenAI chat completions API (gpt-4o family).
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOpenAIProvider creates an OpenAI adapter with a client-side rate cap.
func NewOpenAIProvider(apiKey string, rps float64) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: defaultOpenAIURL,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
	Model string `json:"model"`
}

// Generate performs one non-streaming completion against OpenAI.
func (p *OpenAIProvider) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	if p.apiKey == "" {
		return nil, apperr.E(apperr.ProviderUnavailable, "OPENAI_API_KEY not configured")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, classifyTransportError(p.Name(), err)
	}

	body := openAIRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
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
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	logger.Log.WithFields(logrus.Fields{
		"provider":      p.Name(),
		"model":         req.Model,
		"message_count": len(req.Messages),
	}).Info("Calling OpenAI API")

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

	var chatResp openAIResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, err, "decoding openai response")
	}

	if len(chatResp.Choices) == 0 {
		return nil, apperr.E(apperr.ProviderUnavailable, "openai returned no choices")
	}
	if chatResp.Choices[0].FinishReason == "content_filter" {
		return nil, apperr.E(apperr.ProviderContent, "openai content filter blocked the response")
	}

	result := &GenerationResult{
		Content: chatResp.Choices[0].Message.Content,
		Model:   req.Model,
	}
	if chatResp.Usage != nil {
		result.Usage = *chatResp.Usage
	}

	logger.Log.WithFields(logrus.Fields{
		"provider":     p.Name(),
		"total_tokens": result.Usage.TotalTokens,
	}).Debug("OpenAI completion finished")

	return result, nil
}
