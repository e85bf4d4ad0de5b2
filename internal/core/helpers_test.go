package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/preppal/prep-assistant/internal/store"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, request string) (*Generation, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Generation), args.Error(1)
}

type MockStructuredGenerator struct {
	mock.Mock
}

func (m *MockStructuredGenerator) GenerateStructuredContent(ctx context.Context, prompt string, schema *genai.Schema, systemInstruction string) (string, int, error) {
	args := m.Called(ctx, prompt, schema, systemInstruction)
	return args.String(0), args.Int(1), args.Error(2)
}

// writeCountingRepo counts chat writes that reach the repository.
type writeCountingRepo struct {
	store.Repository
	mu     sync.Mutex
	writes int
}

func (r *writeCountingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func (r *writeCountingRepo) bump() {
	r.mu.Lock()
	r.writes++
	r.mu.Unlock()
}

func (r *writeCountingRepo) CreateChatSession(ctx context.Context, session *store.ChatSession) error {
	r.bump()
	return r.Repository.CreateChatSession(ctx, session)
}

func (r *writeCountingRepo) CreateChatMessage(ctx context.Context, msg *store.ChatMessage) error {
	r.bump()
	return r.Repository.CreateChatMessage(ctx, msg)
}

func (r *writeCountingRepo) CreateChecklist(ctx context.Context, checklist *store.Checklist) error {
	r.bump()
	return r.Repository.CreateChecklist(ctx, checklist)
}

func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func newTestRepo(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:", store.WithClock(tickingClock()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, repo store.Repository, externalID string) *store.User {
	t.Helper()
	u := &store.User{
		ExternalID: externalID,
		Email:      externalID + "@example.com",
		Profile:    store.Profile{DisplayName: "Robin"},
	}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func newTestEphemeralBacking() *EphemeralBacking {
	b := NewEphemeralBacking()
	b.now = tickingClock()
	return b
}

// earthquakeGeneration is a 20 point checklist with two items.
func earthquakeGeneration() *Generation {
	return &Generation{
		Checklist: ChecklistMetadata{
			Title:       "Earthquake go-bag",
			Description: "What to grab when the shaking stops.",
			Category:    store.CategorySupplies,
			Points:      20,
		},
		Items: []store.PayloadItem{
			{Text: "Pack 3 days of water", Priority: store.PriorityHigh},
			{Text: "Add a flashlight and batteries", Priority: store.PriorityMedium},
		},
		DisplayText: "Here is a starter go-bag checklist.",
		TokensUsed:  120,
	}
}

const earthquakeJSON = `{
  "checklist": {
    "title": "Earthquake go-bag",
    "description": "What to grab when the shaking stops.",
    "category": "supplies",
    "points": 20
  },
  "items": [
    {"text": "Pack 3 days of water", "priority": "high"},
    {"text": "Add a flashlight and batteries", "priority": "medium"},
    {"text": "Keep sturdy shoes by the bed", "priority": "low"}
  ],
  "display_message": "Here is a starter go-bag checklist."
}`

// sendWithChecklist runs one successful SendMessage and returns the stored
// assistant message.
func sendWithChecklist(t *testing.T, chat *ChatStore, gen *MockGenerator, text string) *store.ChatMessage {
	t.Helper()
	gen.On("Generate", mock.Anything, text).Return(earthquakeGeneration(), nil).Once()
	ex, err := chat.SendMessage(context.Background(), text)
	require.NoError(t, err)
	require.NotNil(t, ex.Assistant)
	return ex.Assistant
}
