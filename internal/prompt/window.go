// Package prompt assembles the context window sent to a provider: system
// prompt and new user message first, then as much recent history as fits
// the model's token budget.
package prompt

import (
	"convoserve/internal/apperr"
	"convoserve/internal/config"
	"convoserve/internal/llm"
	"convoserve/internal/logger"
	"convoserve/internal/store"
	"convoserve/internal/token"

	"github.com/sirupsen/logrus"
)

// Builder trims conversation history to a model's context window using a
// token estimator. Deterministic: the same inputs always produce the same
// prompt.
type Builder struct {
	estimator token.Estimator
}

// NewBuilder creates a Builder on top of the given estimator.
func NewBuilder(estimator token.Estimator) *Builder {
	return &Builder{estimator: estimator}
}

// Build produces the ordered prompt for one completion request and the
// estimated prompt token count.
//
// The budget is the model's context window minus the reserved output
// tokens. The system prompt (if any) and the new user message are
// non-negotiable and priced first; if they alone exceed the budget the
// request fails with ContextOverflow rather than silently truncating user
// input. History is then walked from most recent backward, including whole
// messages while budget remains; the walk stops at the first message that
// would overflow. The returned prompt never exceeds the budget.
func (b *Builder) Build(history []store.Message, systemPrompt string, model config.Model, reserveTokens int, userMessage string) ([]llm.Message, int, error) {
	budget := model.ContextWindow - reserveTokens
	if budget <= 0 {
		return nil, 0, apperr.E(apperr.ContextOverflow,
			"reserved output tokens (%d) leave no room in model %s context window (%d)",
			reserveTokens, model.ID, model.ContextWindow)
	}

	userMsg := llm.Message{Role: llm.RoleUser, Content: userMessage}

	mandatory := []llm.Message{userMsg}
	if systemPrompt != "" {
		mandatory = []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}, userMsg}
	}

	used, err := b.estimator.EstimateMessages(mandatory)
	if err != nil {
		return nil, 0, err
	}
	if used > budget {
		return nil, 0, apperr.E(apperr.ContextOverflow,
			"system prompt and message require %d tokens but only %d fit model %s; shorten the input",
			used, budget, model.ID)
	}

	// Walk history newest to oldest, collecting whole messages that fit.
	var included []llm.Message
	for i := len(history) - 1; i >= 0; i-- {
		msg := llm.Message{Role: history[i].Role, Content: history[i].Content}
		cost, err := b.estimator.EstimateMessage(msg)
		if err != nil {
			return nil, 0, err
		}
		if used+cost > budget {
			break
		}
		used += cost
		included = append(included, msg)
	}

	// Reassemble in chronological order: system prompt, trimmed history,
	// new user message.
	prompt := make([]llm.Message, 0, len(included)+2)
	if systemPrompt != "" {
		prompt = append(prompt, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	for i := len(included) - 1; i >= 0; i-- {
		prompt = append(prompt, included[i])
	}
	prompt = append(prompt, userMsg)

	logger.Log.WithFields(logrus.Fields{
		"model":            model.ID,
		"history_total":    len(history),
		"history_included": len(included),
		"estimated_tokens": used,
		"budget":           budget,
	}).Debug("Assembled context window")

	return prompt, used, nil
}
