// Package store defines the durable conversation storage boundary. The
// orchestrator only ever talks to this interface; the Postgres
// implementation lives in store/postgres.
package store

import "context"

// Store is the transactional persistence interface for conversations,
// messages, settings, and system prompts.
//
// Error contract: missing rows are reported with apperr.NotFound, all other
// persistence failures with apperr.Store. Implementations must honor
// context cancellation on every call.
type Store interface {
	// Users
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// Conversations. CreateConversation writes the conversation and its
	// initial settings row in one transaction. DeleteConversation cascades
	// to messages and settings.
	CreateConversation(ctx context.Context, userID, title string, settings ConversationSettings) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	// Settings
	GetSettings(ctx context.Context, conversationID string) (*ConversationSettings, error)
	UpdateSettings(ctx context.Context, settings ConversationSettings) error

	// System prompts
	CreateSystemPrompt(ctx context.Context, text string, builtIn bool) (*SystemPrompt, error)
	GetSystemPrompt(ctx context.Context, id string) (*SystemPrompt, error)
	ListSystemPrompts(ctx context.Context) ([]SystemPrompt, error)

	// Messages. AppendTurn persists the user message and the assistant
	// reply as one atomic unit: both rows are committed together with the
	// conversation timestamp update, or none are.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	AppendTurn(ctx context.Context, conversationID string, user, assistant NewMessage) (*Message, *Message, error)

	// ConversationUsage derives lifetime usage totals by summing assistant
	// message metadata. Never stored as a mutable counter.
	ConversationUsage(ctx context.Context, conversationID string) (Usage, error)
}
