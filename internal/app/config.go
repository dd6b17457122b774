package app

import (
	"convoserve/internal/config"
	"convoserve/internal/store"
)

// Config holds the application dependencies handed to the HTTP layer.
type Config struct {
	// Store is the persistence interface.
	Store store.Store
	// AppConfig is the centralized application configuration.
	AppConfig *config.AppConfig
}

// NewConfig creates a new application configuration.
func NewConfig(st store.Store, appConfig *config.AppConfig) *Config {
	return &Config{
		Store:     st,
		AppConfig: appConfig,
	}
}

// ModelsConfig returns the static model table.
func (c *Config) ModelsConfig() *config.ModelsConfig {
	return c.AppConfig.Models
}
