package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"convoserve/internal/apperr"
	"convoserve/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() *GenerationRequest {
	return &GenerationRequest{
		Model: "gpt-4o",
		Messages: []Message{
			{Role: RoleSystem, Content: "You are helpful."},
			{Role: RoleUser, Content: "Hello!"},
		},
		Temperature: 0.7,
		MaxTokens:   100,
	}
}

func TestOpenAIProvider_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Hi there!"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", 100)
	p.baseURL = server.URL

	result, err := p.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", result.Content)
	assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16}, result.Usage)
}

func TestOpenAIProvider_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limit exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", 100)
	p.baseURL = server.URL

	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.ProviderRateLimit, apperr.KindOf(err))
}

func TestOpenAIProvider_ContentFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": ""}, "finish_reason": "content_filter"},
			},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", 100)
	p.baseURL = server.URL

	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.ProviderContent, apperr.KindOf(err))
}

func TestOpenAIProvider_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewOpenAIProvider("bad-key", 100)
	p.baseURL = server.URL

	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(err))
}

func TestOpenAIProvider_MissingKey(t *testing.T) {
	p := NewOpenAIProvider("", 100)
	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(err))
}

func TestOpenAIProvider_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", 100)
	p.baseURL = server.URL

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Generate(ctx, testRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(err))
}

func TestAnthropicProvider_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// System prompt moves to the dedicated field, not the messages.
		assert.Equal(t, "You are helpful.", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, RoleUser, req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]string{{"type": "text", "text": "Hello from Claude"}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 20, "output_tokens": 5},
		})
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", 100)
	p.baseURL = server.URL

	req := testRequest()
	req.Model = "claude-3-5-sonnet-20241022"

	result, err := p.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Hello from Claude", result.Content)
	assert.Equal(t, Usage{PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25}, result.Usage)
}

func TestAnthropicProvider_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"type": "rate_limit_error"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", 100)
	p.baseURL = server.URL

	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.ProviderRateLimit, apperr.KindOf(err))
}

func TestGeminiProvider_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "You are helpful.", req.SystemInstruction.Parts[0].Text)
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "user", req.Contents[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"content":      map[string]any{"role": "model", "parts": []map[string]string{{"text": "Hello from Gemini"}}},
					"finishReason": "STOP",
				},
			},
			"usageMetadata": map[string]int{"promptTokenCount": 15, "candidatesTokenCount": 6, "totalTokenCount": 21},
		})
	}))
	defer server.Close()

	p := NewGeminiProvider("test-key", 100)
	p.baseURL = server.URL

	req := testRequest()
	req.Model = "gemini-pro"

	result, err := p.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Hello from Gemini", result.Content)
	assert.Equal(t, Usage{PromptTokens: 15, CompletionTokens: 6, TotalTokens: 21}, result.Usage)
}

func TestGeminiProvider_SafetyBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"candidates":     []map[string]any{},
			"promptFeedback": map[string]string{"blockReason": "SAFETY"},
		})
	}))
	defer server.Close()

	p := NewGeminiProvider("test-key", 100)
	p.baseURL = server.URL

	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.ProviderContent, apperr.KindOf(err))
}

func TestLocalProvider_NotImplemented(t *testing.T) {
	p := NewLocalProvider()
	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.NotImplemented, apperr.KindOf(err))
}

func TestRegistry_ForModel(t *testing.T) {
	cfg := config.LLMConfig{OpenAIAPIKey: "k", ProviderRPS: 10}
	r := NewRegistry(cfg)

	p, err := r.ForModel(config.Model{ID: "gpt-4o", Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = r.ForModel(config.Model{ID: "local", Provider: "local"})
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name())

	_, err = r.ForModel(config.Model{ID: "m", Provider: "cohere"})
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
