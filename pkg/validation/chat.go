package validation

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// MaxMessageLength bounds a single user message, in bytes.
const MaxMessageLength = 1 << 20

// ChatRequestValidator validates chat-related requests.
type ChatRequestValidator struct{}

// NewChatRequestValidator creates a new ChatRequestValidator.
func NewChatRequestValidator() *ChatRequestValidator {
	return &ChatRequestValidator{}
}

// ValidateMessage validates a chat message.
func (v *ChatRequestValidator) ValidateMessage(message string) error {
	if message == "" {
		return errors.New("message cannot be empty")
	}
	if len(message) > MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d bytes", MaxMessageLength)
	}
	if !utf8.ValidString(message) {
		return errors.New("message is not valid UTF-8")
	}
	return nil
}

// ValidateTemperature validates the temperature parameter.
func (v *ChatRequestValidator) ValidateTemperature(temperature *float64) error {
	if temperature == nil {
		return nil // Temperature is optional
	}
	if *temperature < 0 || *temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %.2f", *temperature)
	}
	return nil
}

// ValidateMaxTokens validates the max output tokens parameter.
func (v *ChatRequestValidator) ValidateMaxTokens(maxTokens *int) error {
	if maxTokens == nil {
		return nil // Max tokens is optional
	}
	if *maxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", *maxTokens)
	}
	return nil
}

// ValidateChatRequest validates a complete chat request.
func (v *ChatRequestValidator) ValidateChatRequest(message string, temperature *float64, maxTokens *int) error {
	if err := v.ValidateMessage(message); err != nil {
		return err
	}
	if err := v.ValidateTemperature(temperature); err != nil {
		return err
	}
	if err := v.ValidateMaxTokens(maxTokens); err != nil {
		return err
	}
	return nil
}

// ValidateSettingsUpdate validates a settings update request.
func (v *ChatRequestValidator) ValidateSettingsUpdate(modelID string, temperature float64, maxTokens int) error {
	if modelID == "" {
		return errors.New("model is required")
	}
	if temperature < 0 || temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %.2f", temperature)
	}
	if maxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", maxTokens)
	}
	return nil
}
