// Package testutil provides hand-rolled mocks for the store and provider
// interfaces. Each mock method delegates to an optional func field so tests
// only wire up what they use.
package testutil

import (
	"context"
	"errors"

	"convoserve/internal/llm"
	"convoserve/internal/store"
)

// MockStore is a mock implementation of store.Store.
type MockStore struct {
	GetUserByUsernameFunc func(ctx context.Context, username string) (*store.User, error)
	CreateUserFunc        func(ctx context.Context, username, email, passwordHash string) (*store.User, error)

	CreateConversationFunc func(ctx context.Context, userID, title string, settings store.ConversationSettings) (*store.Conversation, error)
	GetConversationFunc    func(ctx context.Context, id string) (*store.Conversation, error)
	ListConversationsFunc  func(ctx context.Context, userID string) ([]store.Conversation, error)
	DeleteConversationFunc func(ctx context.Context, id string) error

	GetSettingsFunc    func(ctx context.Context, conversationID string) (*store.ConversationSettings, error)
	UpdateSettingsFunc func(ctx context.Context, settings store.ConversationSettings) error

	CreateSystemPromptFunc func(ctx context.Context, text string, builtIn bool) (*store.SystemPrompt, error)
	GetSystemPromptFunc    func(ctx context.Context, id string) (*store.SystemPrompt, error)
	ListSystemPromptsFunc  func(ctx context.Context) ([]store.SystemPrompt, error)

	ListMessagesFunc      func(ctx context.Context, conversationID string) ([]store.Message, error)
	AppendTurnFunc        func(ctx context.Context, conversationID string, user, assistant store.NewMessage) (*store.Message, *store.Message, error)
	ConversationUsageFunc func(ctx context.Context, conversationID string) (store.Usage, error)
}

var _ store.Store = (*MockStore)(nil)

func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	if m.GetUserByUsernameFunc != nil {
		return m.GetUserByUsernameFunc(ctx, username)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, username, email, passwordHash)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) CreateConversation(ctx context.Context, userID, title string, settings store.ConversationSettings) (*store.Conversation, error) {
	if m.CreateConversationFunc != nil {
		return m.CreateConversationFunc(ctx, userID, title, settings)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) ListConversations(ctx context.Context, userID string) ([]store.Conversation, error) {
	if m.ListConversationsFunc != nil {
		return m.ListConversationsFunc(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) DeleteConversation(ctx context.Context, id string) error {
	if m.DeleteConversationFunc != nil {
		return m.DeleteConversationFunc(ctx, id)
	}
	return errors.New("not implemented")
}

func (m *MockStore) GetSettings(ctx context.Context, conversationID string) (*store.ConversationSettings, error) {
	if m.GetSettingsFunc != nil {
		return m.GetSettingsFunc(ctx, conversationID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) UpdateSettings(ctx context.Context, settings store.ConversationSettings) error {
	if m.UpdateSettingsFunc != nil {
		return m.UpdateSettingsFunc(ctx, settings)
	}
	return errors.New("not implemented")
}

func (m *MockStore) CreateSystemPrompt(ctx context.Context, text string, builtIn bool) (*store.SystemPrompt, error) {
	if m.CreateSystemPromptFunc != nil {
		return m.CreateSystemPromptFunc(ctx, text, builtIn)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) GetSystemPrompt(ctx context.Context, id string) (*store.SystemPrompt, error) {
	if m.GetSystemPromptFunc != nil {
		return m.GetSystemPromptFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) ListSystemPrompts(ctx context.Context) ([]store.SystemPrompt, error) {
	if m.ListSystemPromptsFunc != nil {
		return m.ListSystemPromptsFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) ListMessages(ctx context.Context, conversationID string) ([]store.Message, error) {
	if m.ListMessagesFunc != nil {
		return m.ListMessagesFunc(ctx, conversationID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) AppendTurn(ctx context.Context, conversationID string, user, assistant store.NewMessage) (*store.Message, *store.Message, error) {
	if m.AppendTurnFunc != nil {
		return m.AppendTurnFunc(ctx, conversationID, user, assistant)
	}
	return nil, nil, errors.New("not implemented")
}

func (m *MockStore) ConversationUsage(ctx context.Context, conversationID string) (store.Usage, error) {
	if m.ConversationUsageFunc != nil {
		return m.ConversationUsageFunc(ctx, conversationID)
	}
	return store.Usage{}, errors.New("not implemented")
}

// MockProvider is a mock implementation of llm.Provider.
type MockProvider struct {
	NameValue    string
	GenerateFunc func(ctx context.Context, req *llm.GenerationRequest) (*llm.GenerationResult, error)
}

var _ llm.Provider = (*MockProvider)(nil)

func (m *MockProvider) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

func (m *MockProvider) Generate(ctx context.Context, req *llm.GenerationRequest) (*llm.GenerationResult, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}
