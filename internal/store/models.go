package store

import "time"

// User represents an account that owns conversations.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Conversation is a titled, ordered thread of messages owned by one user.
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one entry in a conversation. Immutable once created; Seq is
// the creation sequence within the conversation and is also turn order.
type Message struct {
	ID             string
	ConversationID string
	Seq            int
	Role           string
	Content        string
	CreatedAt      time.Time

	// Generation metadata, set on assistant messages only.
	Model            string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	LatencyMS        *int
	SystemPromptID   *string
}

// NewMessage carries the caller-supplied fields of a message to be
// persisted; IDs, sequence numbers, and timestamps are assigned by the
// store.
type NewMessage struct {
	Role             string
	Content          string
	Model            string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	LatencyMS        *int
	SystemPromptID   *string
}

// ConversationSettings is the one-to-one generation configuration of a
// conversation. Mutable at any time; a completion request reads it once at
// start and never re-reads mid-flight.
type ConversationSettings struct {
	ConversationID string
	ModelID        string
	Temperature    float64
	MaxTokens      int
	SystemPromptID *string
	UpdatedAt      time.Time
}

// SystemPrompt is an immutable prompt text. Edits insert a new row so that
// past messages referencing an old version stay reproducible.
type SystemPrompt struct {
	ID        string
	Text      string
	BuiltIn   bool
	CreatedAt time.Time
}

// Usage totals derived from a conversation's assistant messages.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
