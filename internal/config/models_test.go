package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModelsJSON = `[
  {"id": "gpt-4o", "name": "GPT-4o", "provider": "openai", "context_window": 128000, "max_output_tokens": 16384, "supports_streaming": true},
  {"id": "claude-3-5-sonnet-20241022", "name": "Claude 3.5 Sonnet", "provider": "anthropic", "context_window": 200000, "max_output_tokens": 8192, "supports_streaming": true},
  {"id": "local", "name": "Local model", "provider": "local", "context_window": 8192, "max_output_tokens": 2048, "supports_streaming": false}
]`

func writeTestModelsFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.json")
	require.NoError(t, os.WriteFile(path, []byte(testModelsJSON), 0o644))
	return path
}

func TestNewModelsConfig_LoadsFile(t *testing.T) {
	mc, err := NewModelsConfig(writeTestModelsFile(t))
	require.NoError(t, err)

	models := mc.GetAvailableModels()
	require.Len(t, models, 3)
	assert.Equal(t, "gpt-4o", models[0].ID)
	assert.Equal(t, "openai", models[0].Provider)
	assert.Equal(t, 128000, models[0].ContextWindow)
	assert.True(t, models[0].SupportsStreaming)
}

func TestNewModelsConfig_MissingFile(t *testing.T) {
	_, err := NewModelsConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestParseModelsConfig_RejectsBadEntries(t *testing.T) {
	_, err := ParseModelsConfig([]byte(`[{"name": "anonymous", "provider": "openai", "context_window": 100}]`))
	assert.Error(t, err, "entry without id should be rejected")

	_, err = ParseModelsConfig([]byte(`[{"id": "m", "provider": "openai", "context_window": 0}]`))
	assert.Error(t, err, "non-positive context window should be rejected")

	_, err = ParseModelsConfig([]byte(`not json`))
	assert.Error(t, err)
}

func TestGetModel(t *testing.T) {
	mc, err := NewModelsConfig(writeTestModelsFile(t))
	require.NoError(t, err)

	m, ok := mc.GetModel("claude-3-5-sonnet-20241022")
	require.True(t, ok)
	assert.Equal(t, "anthropic", m.Provider)
	assert.Equal(t, 200000, m.ContextWindow)

	_, ok = mc.GetModel("gpt-3")
	assert.False(t, ok)
}

func TestIsValidModel(t *testing.T) {
	mc, err := NewModelsConfig(writeTestModelsFile(t))
	require.NoError(t, err)

	assert.True(t, mc.IsValidModel("gpt-4o"))
	assert.True(t, mc.IsValidModel("local"))
	assert.False(t, mc.IsValidModel(""))
	assert.False(t, mc.IsValidModel("unknown-model"))
}

func TestGetDefaultModel(t *testing.T) {
	mc, err := NewModelsConfig(writeTestModelsFile(t))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", mc.GetDefaultModel())

	empty := NewStaticModelsConfig(nil)
	assert.Equal(t, "", empty.GetDefaultModel())
}
