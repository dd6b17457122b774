// Package token implements token accounting for prompt assembly. Counts
// are deterministic approximations: the same text always yields the same
// count, so context-window decisions are reproducible.
package token

import (
	"unicode/utf8"

	"convoserve/internal/apperr"
	"convoserve/internal/llm"
)

// Per-message overhead for role markers and separators, plus a fixed
// framing overhead per conversation. Mirrors the accounting used by
// OpenAI-style chat formats.
const (
	messageOverhead = 4
	framingOverhead = 3
)

// Estimator estimates token counts for text and messages.
type Estimator interface {
	// EstimateText estimates tokens for a single text string.
	EstimateText(text string) (int, error)

	// EstimateMessage estimates tokens for one prompt message including
	// role/separator overhead.
	EstimateMessage(msg llm.Message) (int, error)

	// EstimateMessages estimates total prompt tokens for an ordered
	// message sequence including framing overhead.
	EstimateMessages(messages []llm.Message) (int, error)
}

// SumUsage totals partial usage records.
func SumUsage(parts ...llm.Usage) llm.Usage {
	var total llm.Usage
	for _, p := range parts {
		total.PromptTokens += p.PromptTokens
		total.CompletionTokens += p.CompletionTokens
		total.TotalTokens += p.TotalTokens
	}
	return total
}

// HeuristicEstimator estimates tokens using a characters-per-token ratio.
// A rough approximation, but deterministic and fully offline. Good enough
// for context-window budgeting, not for billing.
type HeuristicEstimator struct {
	CharsPerToken int // defaults to 4 if zero
}

// NewHeuristicEstimator returns an estimator using the default
// 4-chars-per-token ratio.
func NewHeuristicEstimator() *HeuristicEstimator {
	return &HeuristicEstimator{CharsPerToken: 4}
}

func (e *HeuristicEstimator) ratio() int {
	if e.CharsPerToken <= 0 {
		return 4
	}
	return e.CharsPerToken
}

func (e *HeuristicEstimator) EstimateText(text string) (int, error) {
	if !utf8.ValidString(text) {
		return 0, apperr.E(apperr.Input, "text is not valid UTF-8")
	}
	if len(text) == 0 {
		return 0, nil
	}
	return len(text)/e.ratio() + 1, nil
}

func (e *HeuristicEstimator) EstimateMessage(msg llm.Message) (int, error) {
	n, err := e.EstimateText(msg.Content)
	if err != nil {
		return 0, err
	}
	return n + messageOverhead, nil
}

func (e *HeuristicEstimator) EstimateMessages(messages []llm.Message) (int, error) {
	total := framingOverhead
	for _, m := range messages {
		n, err := e.EstimateMessage(m)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
