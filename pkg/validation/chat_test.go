package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMessage(t *testing.T) {
	v := NewChatRequestValidator()

	assert.NoError(t, v.ValidateMessage("Hello!"))
	assert.NoError(t, v.ValidateMessage("多言語のメッセージ"))

	assert.Error(t, v.ValidateMessage(""))
	assert.Error(t, v.ValidateMessage(string([]byte{0xff, 0xfe})))
	assert.Error(t, v.ValidateMessage(strings.Repeat("a", MaxMessageLength+1)))
}

func TestValidateTemperature(t *testing.T) {
	v := NewChatRequestValidator()

	assert.NoError(t, v.ValidateTemperature(nil))

	for _, valid := range []float64{0, 0.7, 1.0, 2.0} {
		temp := valid
		assert.NoError(t, v.ValidateTemperature(&temp), "temperature %v", valid)
	}

	for _, invalid := range []float64{-0.1, 2.01, 100} {
		temp := invalid
		assert.Error(t, v.ValidateTemperature(&temp), "temperature %v", invalid)
	}
}

func TestValidateMaxTokens(t *testing.T) {
	v := NewChatRequestValidator()

	assert.NoError(t, v.ValidateMaxTokens(nil))

	valid := 1024
	assert.NoError(t, v.ValidateMaxTokens(&valid))

	for _, invalid := range []int{0, -1, -1000} {
		mt := invalid
		assert.Error(t, v.ValidateMaxTokens(&mt), "max_tokens %d", invalid)
	}
}

func TestValidateChatRequest(t *testing.T) {
	v := NewChatRequestValidator()

	temp := 0.7
	maxTokens := 500
	assert.NoError(t, v.ValidateChatRequest("Hello", &temp, &maxTokens))
	assert.NoError(t, v.ValidateChatRequest("Hello", nil, nil))

	assert.Error(t, v.ValidateChatRequest("", &temp, &maxTokens))

	badTemp := 3.0
	assert.Error(t, v.ValidateChatRequest("Hello", &badTemp, &maxTokens))

	badTokens := -5
	assert.Error(t, v.ValidateChatRequest("Hello", &temp, &badTokens))
}

func TestValidateSettingsUpdate(t *testing.T) {
	v := NewChatRequestValidator()

	assert.NoError(t, v.ValidateSettingsUpdate("gpt-4o", 0.7, 1000))

	assert.Error(t, v.ValidateSettingsUpdate("", 0.7, 1000))
	assert.Error(t, v.ValidateSettingsUpdate("gpt-4o", -1, 1000))
	assert.Error(t, v.ValidateSettingsUpdate("gpt-4o", 0.7, 0))
}
