package postgres

import (
	"context"
	"database/sql"

	"convoserve/internal/apperr"
	"convoserve/internal/logger"
	"convoserve/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateConversation inserts a conversation and its initial settings row in
// one transaction.
func (p *PostgresStore) CreateConversation(ctx context.Context, userID, title string, settings store.ConversationSettings) (*store.Conversation, error) {
	tx, err := p.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "beginning transaction")
	}
	defer tx.Rollback()

	conv := store.Conversation{
		ID:     uuid.New().String(),
		UserID: userID,
		Title:  title,
	}

	query := `
	INSERT INTO conversations (id, user_id, title)
	VALUES ($1, $2, $3)
	RETURNING created_at, updated_at
	`
	if err := tx.QueryRowContext(ctx, query, conv.ID, userID, title).Scan(&conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "creating conversation")
	}

	settingsQuery := `
	INSERT INTO conversation_settings (conversation_id, model_id, temperature, max_tokens, system_prompt_id)
	VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, settingsQuery, conv.ID, settings.ModelID, settings.Temperature, settings.MaxTokens, settings.SystemPromptID); err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "creating conversation settings")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "committing conversation")
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"user_id":         userID,
		"model":           settings.ModelID,
	}).Info("Created new conversation")

	return &conv, nil
}

// GetConversation retrieves a specific conversation.
func (p *PostgresStore) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	var conv store.Conversation
	query := `
	SELECT id, user_id, title, created_at, updated_at
	FROM conversations
	WHERE id = $1
	`

	err := p.conn.QueryRowContext(ctx, query, id).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.E(apperr.NotFound, "conversation %s not found", id)
		}
		return nil, apperr.Wrap(apperr.Store, err, "retrieving conversation")
	}

	return &conv, nil
}

// ListConversations retrieves all conversations for a user, most recently
// updated first.
func (p *PostgresStore) ListConversations(ctx context.Context, userID string) ([]store.Conversation, error) {
	query := `
	SELECT id, user_id, title, created_at, updated_at
	FROM conversations
	WHERE user_id = $1
	ORDER BY updated_at DESC
	`

	rows, err := p.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "querying conversations")
	}
	defer rows.Close()

	var conversations []store.Conversation
	for rows.Next() {
		var conv store.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Store, err, "scanning conversation")
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "iterating conversations")
	}

	return conversations, nil
}

// DeleteConversation deletes a conversation; messages and settings cascade
// via foreign keys.
func (p *PostgresStore) DeleteConversation(ctx context.Context, id string) error {
	result, err := p.conn.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(apperr.Store, err, "deleting conversation")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Store, err, "checking delete result")
	}
	if affected == 0 {
		return apperr.E(apperr.NotFound, "conversation %s not found", id)
	}

	logger.Log.WithField("conversation_id", id).Info("Deleted conversation")
	return nil
}

// GetSettings retrieves the settings row of a conversation.
func (p *PostgresStore) GetSettings(ctx context.Context, conversationID string) (*store.ConversationSettings, error) {
	var s store.ConversationSettings
	query := `
	SELECT conversation_id, model_id, temperature, max_tokens, system_prompt_id, updated_at
	FROM conversation_settings
	WHERE conversation_id = $1
	`

	err := p.conn.QueryRowContext(ctx, query, conversationID).Scan(&s.ConversationID, &s.ModelID, &s.Temperature, &s.MaxTokens, &s.SystemPromptID, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.E(apperr.NotFound, "settings for conversation %s not found", conversationID)
		}
		return nil, apperr.Wrap(apperr.Store, err, "retrieving settings")
	}

	return &s, nil
}

// UpdateSettings replaces the settings row of a conversation. Takes effect
// on the next completion request only; past messages are never rewritten.
func (p *PostgresStore) UpdateSettings(ctx context.Context, settings store.ConversationSettings) error {
	query := `
	UPDATE conversation_settings
	SET model_id = $2, temperature = $3, max_tokens = $4, system_prompt_id = $5, updated_at = CURRENT_TIMESTAMP
	WHERE conversation_id = $1
	`

	result, err := p.conn.ExecContext(ctx, query, settings.ConversationID, settings.ModelID, settings.Temperature, settings.MaxTokens, settings.SystemPromptID)
	if err != nil {
		return apperr.Wrap(apperr.Store, err, "updating settings")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Store, err, "checking update result")
	}
	if affected == 0 {
		return apperr.E(apperr.NotFound, "settings for conversation %s not found", settings.ConversationID)
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": settings.ConversationID,
		"model":           settings.ModelID,
	}).Debug("Updated conversation settings")
	return nil
}

// CreateSystemPrompt inserts a new immutable prompt row.
func (p *PostgresStore) CreateSystemPrompt(ctx context.Context, text string, builtIn bool) (*store.SystemPrompt, error) {
	prompt := store.SystemPrompt{
		ID:      uuid.New().String(),
		Text:    text,
		BuiltIn: builtIn,
	}

	query := `
	INSERT INTO system_prompts (id, text, built_in)
	VALUES ($1, $2, $3)
	RETURNING created_at
	`
	if err := p.conn.QueryRowContext(ctx, query, prompt.ID, text, builtIn).Scan(&prompt.CreatedAt); err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "creating system prompt")
	}

	return &prompt, nil
}

// GetSystemPrompt retrieves a system prompt by ID.
func (p *PostgresStore) GetSystemPrompt(ctx context.Context, id string) (*store.SystemPrompt, error) {
	var prompt store.SystemPrompt
	query := `SELECT id, text, built_in, created_at FROM system_prompts WHERE id = $1`

	err := p.conn.QueryRowContext(ctx, query, id).Scan(&prompt.ID, &prompt.Text, &prompt.BuiltIn, &prompt.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.E(apperr.NotFound, "system prompt %s not found", id)
		}
		return nil, apperr.Wrap(apperr.Store, err, "retrieving system prompt")
	}

	return &prompt, nil
}

// ListSystemPrompts retrieves all system prompts, built-ins first.
func (p *PostgresStore) ListSystemPrompts(ctx context.Context) ([]store.SystemPrompt, error) {
	query := `SELECT id, text, built_in, created_at FROM system_prompts ORDER BY built_in DESC, created_at ASC`

	rows, err := p.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "querying system prompts")
	}
	defer rows.Close()

	var prompts []store.SystemPrompt
	for rows.Next() {
		var prompt store.SystemPrompt
		if err := rows.Scan(&prompt.ID, &prompt.Text, &prompt.BuiltIn, &prompt.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Store, err, "scanning system prompt")
		}
		prompts = append(prompts, prompt)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "iterating system prompts")
	}

	return prompts, nil
}
