package config

import (
	"convoserve/internal/logger"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration.
type AppConfig struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Auth     AuthConfig
	Models   *ModelsConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// LLMConfig holds provider credentials and generation defaults.
type LLMConfig struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	DefaultModel       string
	DefaultTemperature float64
	DefaultMaxTokens   int

	// ProviderTimeout bounds a single generation call; exceeding it is
	// treated as a provider outage, not retried.
	ProviderTimeout time.Duration

	// RetryAttempts bounds how many times a rate-limited call is tried
	// before surfacing an upstream-unavailable failure.
	RetryAttempts int
	RetryBackoff  time.Duration

	// ProviderRPS caps client-side request rate per provider.
	ProviderRPS float64

	// Estimator selects the token counting implementation: "heuristic"
	// (offline, chars-per-token ratio) or "tiktoken" (BPE).
	Estimator string
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret       []byte
	TokenExpiration time.Duration
}

// LoadConfig loads and validates application configuration from environment.
func LoadConfig() (*AppConfig, error) {
	config := &AppConfig{}

	config.Server = ServerConfig{
		Port: getEnvOrDefault("SERVER_PORT", "8080"),
	}

	config.Database = DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "postgres"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:     getEnvOrDefault("DB_NAME", "convoserve"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}

	config.LLM = LLMConfig{
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		DefaultModel:       getEnvOrDefault("LLM_DEFAULT_MODEL", "gpt-4o"),
		DefaultTemperature: getEnvAsFloat("LLM_DEFAULT_TEMPERATURE", 0.7),
		DefaultMaxTokens:   getEnvAsInt("LLM_DEFAULT_MAX_TOKENS", 1024),
		ProviderTimeout:    getEnvAsDuration("LLM_PROVIDER_TIMEOUT", 30*time.Second),
		RetryAttempts:      getEnvAsInt("LLM_RETRY_ATTEMPTS", 3),
		RetryBackoff:       getEnvAsDuration("LLM_RETRY_BACKOFF", 500*time.Millisecond),
		ProviderRPS:        getEnvAsFloat("LLM_PROVIDER_RPS", 10),
		Estimator:          getEnvOrDefault("LLM_TOKEN_ESTIMATOR", "heuristic"),
	}

	if config.LLM.OpenAIAPIKey == "" && config.LLM.AnthropicAPIKey == "" && config.LLM.GeminiAPIKey == "" {
		logger.Log.Warn("No provider API keys configured")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be set")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(jwtSecret))
	}

	config.Auth = AuthConfig{
		JWTSecret:       []byte(jwtSecret),
		TokenExpiration: getEnvAsDuration("JWT_TOKEN_EXPIRATION", 24*time.Hour),
	}

	modelsConfigPath := getEnvOrDefault("MODELS_CONFIG_PATH", filepath.Join("config", "models.json"))
	modelsConfig, err := NewModelsConfig(modelsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load models config: %w", err)
	}
	config.Models = modelsConfig

	if !modelsConfig.IsValidModel(config.LLM.DefaultModel) {
		return nil, fmt.Errorf("default model %q is not in the models table", config.LLM.DefaultModel)
	}

	return config, nil
}

// GetDSN returns the database connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid float value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}
