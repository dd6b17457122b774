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

const messageColumns = `id, conversation_id, seq, role, content, COALESCE(model, ''), prompt_tokens, completion_tokens, total_tokens, latency_ms, system_prompt_id, created_at`

// ListMessages retrieves all messages of a conversation in turn order.
func (p *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]store.Message, error) {
	query := `
	SELECT ` + messageColumns + `
	FROM messages
	WHERE conversation_id = $1
	ORDER BY seq ASC
	`

	rows, err := p.conn.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "querying messages")
	}
	defer rows.Close()

	var messages []store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "iterating messages")
	}

	return messages, nil
}

// AppendTurn persists a user message and its assistant reply in one
// transaction. Sequence numbers are assigned inside the transaction with
// the conversation row locked, so concurrent writers cannot interleave a
// turn.
func (p *PostgresStore) AppendTurn(ctx context.Context, conversationID string, user, assistant store.NewMessage) (*store.Message, *store.Message, error) {
	tx, err := p.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Store, err, "beginning transaction")
	}
	defer tx.Rollback()

	// Lock the conversation row for the span of the turn write.
	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, conversationID).Scan(&locked)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, apperr.E(apperr.NotFound, "conversation %s not found", conversationID)
		}
		return nil, nil, apperr.Wrap(apperr.Store, err, "locking conversation")
	}

	var nextSeq int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = $1`, conversationID).Scan(&nextSeq)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Store, err, "computing next sequence")
	}

	userMsg, err := insertMessage(ctx, tx, conversationID, nextSeq, user)
	if err != nil {
		return nil, nil, err
	}

	assistantMsg, err := insertMessage(ctx, tx, conversationID, nextSeq+1, assistant)
	if err != nil {
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`, conversationID); err != nil {
		return nil, nil, apperr.Wrap(apperr.Store, err, "updating conversation timestamp")
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperr.Wrap(apperr.Store, err, "committing turn")
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"user_seq":        userMsg.Seq,
		"assistant_seq":   assistantMsg.Seq,
		"model":           assistantMsg.Model,
	}).Debug("Appended turn to conversation")

	return userMsg, assistantMsg, nil
}

// ConversationUsage sums the usage metadata of all assistant messages.
func (p *PostgresStore) ConversationUsage(ctx context.Context, conversationID string) (store.Usage, error) {
	var usage store.Usage
	query := `
	SELECT COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COALESCE(SUM(total_tokens), 0)
	FROM messages
	WHERE conversation_id = $1 AND role = 'assistant'
	`

	err := p.conn.QueryRowContext(ctx, query, conversationID).Scan(&usage.PromptTokens, &usage.CompletionTokens, &usage.TotalTokens)
	if err != nil {
		return store.Usage{}, apperr.Wrap(apperr.Store, err, "summing conversation usage")
	}

	return usage, nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, conversationID string, seq int, in store.NewMessage) (*store.Message, error) {
	msg := store.Message{
		ID:               uuid.New().String(),
		ConversationID:   conversationID,
		Seq:              seq,
		Role:             in.Role,
		Content:          in.Content,
		Model:            in.Model,
		PromptTokens:     in.PromptTokens,
		CompletionTokens: in.CompletionTokens,
		TotalTokens:      in.TotalTokens,
		LatencyMS:        in.LatencyMS,
		SystemPromptID:   in.SystemPromptID,
	}

	query := `
	INSERT INTO messages (id, conversation_id, seq, role, content, model, prompt_tokens, completion_tokens, total_tokens, latency_ms, system_prompt_id)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11)
	RETURNING created_at
	`

	err := tx.QueryRowContext(ctx, query, msg.ID, conversationID, seq, in.Role, in.Content, in.Model,
		in.PromptTokens, in.CompletionTokens, in.TotalTokens, in.LatencyMS, in.SystemPromptID).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "inserting %s message", in.Role)
	}

	return &msg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var msg store.Message
	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.Seq, &msg.Role, &msg.Content, &msg.Model,
		&msg.PromptTokens, &msg.CompletionTokens, &msg.TotalTokens, &msg.LatencyMS, &msg.SystemPromptID, &msg.CreatedAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.Store, err, "scanning message")
	}
	return &msg, nil
}
