package token

import (
	"unicode/utf8"

	"convoserve/internal/apperr"
	"convoserve/internal/llm"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenEstimator counts tokens with a real BPE encoding. More accurate
// than the heuristic ratio, at the cost of loading the encoding tables.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the given encoding (e.g. "cl100k_base").
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenEstimator{enc: enc}, nil
}

func (e *TiktokenEstimator) EstimateText(text string) (int, error) {
	if !utf8.ValidString(text) {
		return 0, apperr.E(apperr.Input, "text is not valid UTF-8")
	}
	return len(e.enc.Encode(text, nil, nil)), nil
}

func (e *TiktokenEstimator) EstimateMessage(msg llm.Message) (int, error) {
	n, err := e.EstimateText(msg.Content)
	if err != nil {
		return 0, err
	}
	return n + messageOverhead, nil
}

func (e *TiktokenEstimator) EstimateMessages(messages []llm.Message) (int, error) {
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
