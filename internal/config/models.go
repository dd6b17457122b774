package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Model describes an available LLM model: identity, owning provider, and
// the context-window limit that bounds prompt assembly.
type Model struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Provider          string `json:"provider"`
	ContextWindow     int    `json:"context_window"`
	MaxOutputTokens   int    `json:"max_output_tokens"`
	SupportsStreaming bool   `json:"supports_streaming"`
}

// ModelsConfig holds the static model table. It is loaded once at process
// start and read-only afterwards.
type ModelsConfig struct {
	models []Model
	byID   map[string]Model
}

// NewModelsConfig loads the model table from a JSON file.
func NewModelsConfig(configPath string) (*ModelsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	return ParseModelsConfig(data)
}

// ParseModelsConfig builds the model table from raw JSON.
func ParseModelsConfig(data []byte) (*ModelsConfig, error) {
	var models []Model
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, err
	}

	byID := make(map[string]Model, len(models))
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("model entry missing id")
		}
		if m.ContextWindow <= 0 {
			return nil, fmt.Errorf("model %s: context_window must be positive", m.ID)
		}
		byID[m.ID] = m
	}

	return &ModelsConfig{models: models, byID: byID}, nil
}

// NewStaticModelsConfig builds a model table directly from descriptors.
// Used by tests and embedded setups that don't read a config file.
func NewStaticModelsConfig(models []Model) *ModelsConfig {
	byID := make(map[string]Model, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	return &ModelsConfig{models: models, byID: byID}
}

// GetAvailableModels returns the list of available models.
func (mc *ModelsConfig) GetAvailableModels() []Model {
	return mc.models
}

// GetModel looks up a model descriptor by ID.
func (mc *ModelsConfig) GetModel(modelID string) (Model, bool) {
	m, ok := mc.byID[modelID]
	return m, ok
}

// IsValidModel checks if a model ID is in the table.
func (mc *ModelsConfig) IsValidModel(modelID string) bool {
	_, ok := mc.byID[modelID]
	return ok
}

// GetDefaultModel returns the first model as the default.
func (mc *ModelsConfig) GetDefaultModel() string {
	if len(mc.models) > 0 {
		return mc.models[0].ID
	}
	return ""
}
