package llm

import (
	"context"

	"convoserve/internal/apperr"
)

// LocalProvider is a defined but unimplemented variant for on-device
// inference. It fails with a distinct NotImplemented kind so callers can
// offer a fallback model instead of reporting an outage.
type LocalProvider struct{}

// NewLocalProvider creates the placeholder local adapter.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	return nil, apperr.E(apperr.NotImplemented, "local model inference is not implemented")
}
