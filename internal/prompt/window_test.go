package prompt

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"convoserve/internal/apperr"
	"convoserve/internal/config"
	"convoserve/internal/llm"
	"convoserve/internal/store"
	"convoserve/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel(contextWindow int) config.Model {
	return config.Model{
		ID:            "test-model",
		Provider:      "openai",
		ContextWindow: contextWindow,
	}
}

func synthHistory(turns int, contentLen int) []store.Message {
	var history []store.Message
	for i := 0; i < turns; i++ {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		history = append(history, store.Message{
			Seq:     i + 1,
			Role:    role,
			Content: strings.Repeat("x", contentLen),
		})
	}
	return history
}

func TestBuild_IncludesSystemPromptAndUserMessage(t *testing.T) {
	b := NewBuilder(token.NewHeuristicEstimator())

	prompt, used, err := b.Build(nil, "You are a helpful assistant.", testModel(1000), 100, "Hello!")
	require.NoError(t, err)
	require.Len(t, prompt, 2)
	assert.Equal(t, llm.RoleSystem, prompt[0].Role)
	assert.Equal(t, "You are a helpful assistant.", prompt[0].Content)
	assert.Equal(t, llm.RoleUser, prompt[1].Role)
	assert.Equal(t, "Hello!", prompt[1].Content)
	assert.Greater(t, used, 0)
}

func TestBuild_NoSystemPrompt(t *testing.T) {
	b := NewBuilder(token.NewHeuristicEstimator())

	prompt, _, err := b.Build(nil, "", testModel(1000), 100, "Hello!")
	require.NoError(t, err)
	require.Len(t, prompt, 1)
	assert.Equal(t, llm.RoleUser, prompt[0].Role)
}

func TestBuild_HistoryInChronologicalOrder(t *testing.T) {
	b := NewBuilder(token.NewHeuristicEstimator())

	history := []store.Message{
		{Seq: 1, Role: llm.RoleUser, Content: "first question"},
		{Seq: 2, Role: llm.RoleAssistant, Content: "first answer"},
		{Seq: 3, Role: llm.RoleUser, Content: "second question"},
		{Seq: 4, Role: llm.RoleAssistant, Content: "second answer"},
	}

	prompt, _, err := b.Build(history, "sys", testModel(100000), 1000, "third question")
	require.NoError(t, err)
	require.Len(t, prompt, 6)
	assert.Equal(t, "sys", prompt[0].Content)
	assert.Equal(t, "first question", prompt[1].Content)
	assert.Equal(t, "first answer", prompt[2].Content)
	assert.Equal(t, "second question", prompt[3].Content)
	assert.Equal(t, "second answer", prompt[4].Content)
	assert.Equal(t, "third question", prompt[5].Content)
}

func TestBuild_DropsOldestFirst(t *testing.T) {
	est := token.NewHeuristicEstimator()
	b := NewBuilder(est)

	// Each history message costs ~29 tokens (100 chars / 4 + 1 + overhead).
	history := synthHistory(10, 100)

	// Budget sized so only some of the history fits.
	prompt, _, err := b.Build(history, "", testModel(120), 20, "latest")
	require.NoError(t, err)

	// The user message is always last; everything before it must be the
	// most recent history suffix, in order.
	require.Greater(t, len(prompt), 1)
	included := prompt[: len(prompt)-1]
	offset := len(history) - len(included)
	for i, msg := range included {
		assert.Equal(t, history[offset+i].Role, msg.Role)
		assert.Equal(t, history[offset+i].Content, msg.Content)
	}
}

func TestBuild_OverflowWhenMandatoryExceedsBudget(t *testing.T) {
	b := NewBuilder(token.NewHeuristicEstimator())

	// Model limit 10, reserve 8: a 2-token budget cannot hold any prompt.
	_, _, err := b.Build(nil, strings.Repeat("s", 20), testModel(10), 8, strings.Repeat("u", 16))
	require.Error(t, err)
	assert.Equal(t, apperr.ContextOverflow, apperr.KindOf(err))
}

func TestBuild_OverflowWhenReserveConsumesWindow(t *testing.T) {
	b := NewBuilder(token.NewHeuristicEstimator())

	_, _, err := b.Build(nil, "", testModel(100), 100, "hi")
	require.Error(t, err)
	assert.Equal(t, apperr.ContextOverflow, apperr.KindOf(err))
}

func TestBuild_NeverExceedsBudget_Property(t *testing.T) {
	est := token.NewHeuristicEstimator()
	b := NewBuilder(est)
	rng := rand.New(rand.NewSource(42))

	limits := []int{64, 256, 1024, 8192, 128000}

	for trial := 0; trial < 200; trial++ {
		model := testModel(limits[rng.Intn(len(limits))])
		reserve := 1 + rng.Intn(model.ContextWindow/2)
		history := synthHistory(rng.Intn(40), 1+rng.Intn(400))
		sys := strings.Repeat("s", rng.Intn(60))
		user := strings.Repeat("u", 1+rng.Intn(120))

		prompt, used, err := b.Build(history, sys, model, reserve, user)
		if err != nil {
			assert.Equal(t, apperr.ContextOverflow, apperr.KindOf(err))
			continue
		}

		budget := model.ContextWindow - reserve
		assert.LessOrEqual(t, used, budget,
			fmt.Sprintf("trial %d: estimate %d over budget %d", trial, used, budget))

		recount, err := est.EstimateMessages(prompt)
		require.NoError(t, err)
		assert.LessOrEqual(t, recount, budget,
			fmt.Sprintf("trial %d: recount %d over budget %d", trial, recount, budget))
	}
}

func TestBuild_Deterministic(t *testing.T) {
	b := NewBuilder(token.NewHeuristicEstimator())

	history := synthHistory(20, 80)
	model := testModel(500)

	first, firstUsed, err := b.Build(history, "system prompt", model, 100, "the question")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, againUsed, err := b.Build(history, "system prompt", model, 100, "the question")
		require.NoError(t, err)
		assert.Equal(t, first, again)
		assert.Equal(t, firstUsed, againUsed)
	}
}
