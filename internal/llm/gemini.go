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

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider adapts the Google generateContent API. Gemini uses
// "model" instead of "assistant" for reply roles and carries the system
// prompt as a separate systemInstruction field; both translations are
// absorbed here.
type GeminiProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewGeminiProvider creates a Gemini adapter with a client-side rate cap.
func NewGeminiProvider(apiKey string, rps float64) *GeminiProvider {
	return &GeminiProvider{
		apiKey:  apiKey,
		baseURL: defaultGeminiBaseURL,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Generate performs one non-streaming completion against Gemini.
func (p *GeminiProvider) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	if p.apiKey == "" {
		return nil, apperr.E(apperr.ProviderUnavailable, "GEMINI_API_KEY not configured")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, classifyTransportError(p.Name(), err)
	}

	system, conversation := splitSystemPrompt(req.Messages)

	var body geminiRequest
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, msg := range conversation {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}
	body.GenerationConfig.Temperature = req.Temperature
	body.GenerationConfig.MaxOutputTokens = req.MaxTokens

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, req.Model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logger.Log.WithFields(logrus.Fields{
		"provider":      p.Name(),
		"model":         req.Model,
		"message_count": len(conversation),
	}).Info("Calling Gemini API")

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

	var genResp geminiResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, err, "decoding gemini response")
	}

	if genResp.PromptFeedback.BlockReason != "" {
		return nil, apperr.E(apperr.ProviderContent, "gemini blocked the prompt: %s", genResp.PromptFeedback.BlockReason)
	}
	if len(genResp.Candidates) == 0 {
		return nil, apperr.E(apperr.ProviderUnavailable, "gemini returned no candidates")
	}
	if genResp.Candidates[0].FinishReason == "SAFETY" {
		return nil, apperr.E(apperr.ProviderContent, "gemini safety filter blocked the response")
	}

	var content string
	for _, part := range genResp.Candidates[0].Content.Parts {
		content += part.Text
	}

	result := &GenerationResult{
		Content: content,
		Model:   req.Model,
		Usage: Usage{
			PromptTokens:     genResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: genResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      genResp.UsageMetadata.TotalTokenCount,
		},
	}

	logger.Log.WithFields(logrus.Fields{
		"provider":     p.Name(),
		"total_tokens": result.Usage.TotalTokens,
	}).Debug("Gemini completion finished")

	return result, nil
}
