// Package llm defines the provider abstraction for LLM backends and the
// adapters for each supported vendor. Vendor request/response shapes are
// fully absorbed inside each adapter; callers only ever see the common
// GenerationRequest/GenerationResult types and classified errors.
package llm

import (
	"context"
)

// Role identifies the sender of a message in a prompt.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in the prompt sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage holds token accounting returned by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationRequest carries everything a provider needs to produce a reply.
type GenerationRequest struct {
	// Model is the vendor-side model identifier.
	Model string

	// Messages is the assembled prompt in chronological order. The system
	// prompt, if any, is the first entry.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the number of completion tokens.
	MaxTokens int
}

// GenerationResult is the normalized response shape shared by all adapters.
type GenerationResult struct {
	Content string
	Model   string
	Usage   Usage
}

// Provider is the interface each vendor adapter implements. Implementations
// must be safe for concurrent use and must honor context cancellation.
//
// Failures are classified via apperr kinds: ProviderUnavailable for
// network/auth/timeout failures, ProviderRateLimit for retryable 429s,
// ProviderContent for safety rejections, NotImplemented for defined but
// unbuilt variants.
type Provider interface {
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)
	Name() string
}
