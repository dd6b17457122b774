// Package orchestrator coordinates one completion request end to end:
// validate, load conversation state, assemble the context window, call the
// selected provider with bounded retry, and commit the resulting turn
// atomically.
package orchestrator

import (
	"context"
	"time"

	"convoserve/internal/apperr"
	"convoserve/internal/config"
	"convoserve/internal/llm"
	"convoserve/internal/logger"
	"convoserve/internal/prompt"
	"convoserve/internal/store"

	"github.com/sirupsen/logrus"
)

// Request states, for log correlation. Failure can exit from any state.
const (
	stateReceived     = "received"
	stateValidated    = "validated"
	stateContextBuilt = "context_built"
	stateGenerating   = "generating"
	statePersisted    = "persisted"
	stateResponded    = "responded"
)

// CompletionRequest is one submit-completion call. Override fields apply to
// this request only; persisted settings are untouched.
type CompletionRequest struct {
	ConversationID string
	UserID         string
	Message        string

	Model       *string
	Temperature *float64
	MaxTokens   *int
}

// CompletionResponse is the normalized success result.
type CompletionResponse struct {
	ConversationID string
	Message        store.Message
	Usage          llm.Usage
}

// Options are the tunables of the completion pipeline.
type Options struct {
	// RetryAttempts bounds total provider calls per request when the
	// provider is rate limiting. Minimum 1.
	RetryAttempts int

	// RetryBackoff is the delay before the second attempt; it doubles per
	// subsequent attempt.
	RetryBackoff time.Duration

	// ProviderTimeout bounds a single provider call.
	ProviderTimeout time.Duration
}

// Orchestrator drives completion requests through the pipeline. Safe for
// concurrent use; requests against the same conversation are serialized by
// a keyed lock.
type Orchestrator struct {
	store    store.Store
	models   *config.ModelsConfig
	registry *llm.Registry
	builder  *prompt.Builder
	opts     Options
	locks    *conversationLocks

	// sleep is swapped out by tests to avoid real backoff delays.
	sleep func(time.Duration)

	// now/since are swapped out by tests for deterministic latency values.
	now func() time.Time
}

// New creates an Orchestrator.
func New(st store.Store, models *config.ModelsConfig, registry *llm.Registry, builder *prompt.Builder, opts Options) *Orchestrator {
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 30 * time.Second
	}
	return &Orchestrator{
		store:    st,
		models:   models,
		registry: registry,
		builder:  builder,
		opts:     opts,
		locks:    newConversationLocks(),
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Complete runs one completion request through the state machine. On any
// failure before the persist step no conversation state is mutated; the
// persist step itself is a single atomic turn write.
func (o *Orchestrator) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"conversation_id": req.ConversationID,
		"user_id":         req.UserID,
	})
	log.WithField("state", stateReceived).Debug("Completion request received")

	if err := o.validateRequest(req); err != nil {
		return nil, err
	}

	// Serialize per conversation: a concurrent request would otherwise feed
	// the context builder an interleaved history.
	if !o.locks.TryAcquire(req.ConversationID) {
		return nil, apperr.E(apperr.ConversationBusy, "conversation %s already has a completion in flight", req.ConversationID)
	}
	defer o.locks.Release(req.ConversationID)

	conv, err := o.store.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != req.UserID {
		return nil, apperr.E(apperr.Authorization, "conversation %s does not belong to the requesting user", req.ConversationID)
	}

	// Settings are read once here; edits made while this request is in
	// flight take effect on the next request.
	settings, err := o.store.GetSettings(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	applyOverrides(settings, req)

	model, ok := o.models.GetModel(settings.ModelID)
	if !ok {
		return nil, apperr.E(apperr.NotFound, "model %q is not in the models table", settings.ModelID)
	}
	log = log.WithField("model", model.ID)
	log.WithField("state", stateValidated).Debug("Completion request validated")

	systemPrompt := ""
	if settings.SystemPromptID != nil {
		sp, err := o.store.GetSystemPrompt(ctx, *settings.SystemPromptID)
		if err != nil {
			return nil, err
		}
		systemPrompt = sp.Text
	}

	history, err := o.store.ListMessages(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	promptMessages, promptTokens, err := o.builder.Build(history, systemPrompt, model, settings.MaxTokens, req.Message)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"state":            stateContextBuilt,
		"prompt_messages":  len(promptMessages),
		"estimated_tokens": promptTokens,
	}).Debug("Context window built")

	provider, err := o.registry.ForModel(model)
	if err != nil {
		return nil, err
	}

	genReq := &llm.GenerationRequest{
		Model:       model.ID,
		Messages:    promptMessages,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	}

	log.WithField("state", stateGenerating).Debug("Calling provider")
	started := o.now()
	result, err := o.generateWithRetry(ctx, provider, genReq, log)
	if err != nil {
		return nil, err
	}
	latencyMS := int(o.now().Sub(started).Milliseconds())

	usage := result.Usage
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	userMsg := store.NewMessage{
		Role:    llm.RoleUser,
		Content: req.Message,
	}
	assistantMsg := store.NewMessage{
		Role:             llm.RoleAssistant,
		Content:          result.Content,
		Model:            model.ID,
		PromptTokens:     &usage.PromptTokens,
		CompletionTokens: &usage.CompletionTokens,
		TotalTokens:      &usage.TotalTokens,
		LatencyMS:        &latencyMS,
		SystemPromptID:   settings.SystemPromptID,
	}

	_, persisted, err := o.store.AppendTurn(ctx, req.ConversationID, userMsg, assistantMsg)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"state":        statePersisted,
		"total_tokens": usage.TotalTokens,
		"latency_ms":   latencyMS,
	}).Info("Turn persisted")

	log.WithField("state", stateResponded).Debug("Completion request finished")
	return &CompletionResponse{
		ConversationID: req.ConversationID,
		Message:        *persisted,
		Usage:          usage,
	}, nil
}

func (o *Orchestrator) validateRequest(req CompletionRequest) error {
	if req.ConversationID == "" {
		return apperr.E(apperr.Input, "conversation id is required")
	}
	if req.UserID == "" {
		return apperr.E(apperr.Input, "user id is required")
	}
	if req.Message == "" {
		return apperr.E(apperr.Input, "message cannot be empty")
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return apperr.E(apperr.Input, "temperature must be between 0 and 2, got %.2f", *req.Temperature)
	}
	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return apperr.E(apperr.Input, "max tokens must be positive, got %d", *req.MaxTokens)
	}
	return nil
}

// applyOverrides merges per-request overrides into the settings snapshot.
// In-memory only: the persisted settings row is not changed.
func applyOverrides(settings *store.ConversationSettings, req CompletionRequest) {
	if req.Model != nil {
		settings.ModelID = *req.Model
	}
	if req.Temperature != nil {
		settings.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		settings.MaxTokens = *req.MaxTokens
	}
}

// generateWithRetry calls the provider with a bounded-attempt loop. Only
// rate-limit failures are retried, with exponential backoff; exhausting the
// budget surfaces UpstreamUnavailable. Every other failure aborts at once.
func (o *Orchestrator) generateWithRetry(ctx context.Context, provider llm.Provider, req *llm.GenerationRequest, log *logrus.Entry) (*llm.GenerationResult, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.RetryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
		result, err := provider.Generate(callCtx, req)
		cancel()

		if err == nil {
			return result, nil
		}
		if apperr.KindOf(err) != apperr.ProviderRateLimit {
			return nil, err
		}

		lastErr = err
		if attempt < o.opts.RetryAttempts {
			delay := o.opts.RetryBackoff << (attempt - 1)
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
			}).Warn("Provider rate limited, backing off")
			o.sleep(delay)
		}
	}
	return nil, apperr.Wrap(apperr.UpstreamUnavailable, lastErr,
		"provider still rate limited after %d attempts", o.opts.RetryAttempts)
}
