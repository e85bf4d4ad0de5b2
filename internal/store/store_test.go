package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock returns strictly increasing timestamps so ordering assertions
// do not depend on wall clock resolution.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", WithClock(tickingClock()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *SQLStore, externalID string) *User {
	t.Helper()
	u := &User{ExternalID: externalID, Email: externalID + "@example.com", Profile: Profile{DisplayName: "Sam"}}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func testPayload() *ChecklistPayload {
	return &ChecklistPayload{
		Title:       "Earthquake kit",
		Description: "Basics for the first 72 hours",
		Category:    CategorySupplies,
		Points:      20,
		Items: []PayloadItem{
			{Text: "Store 3 days of water", Priority: PriorityHigh},
			{Text: "Pack a flashlight", Priority: PriorityMedium},
		},
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("lookup of unknown user returns nil", func(t *testing.T) {
		u, err := s.GetUserByExternalID(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("create and fetch", func(t *testing.T) {
		u := &User{
			ExternalID: "ext-1",
			Email:      "a@example.com",
			Profile: Profile{
				DisplayName:  "Alex",
				Location:     "Portland",
				Household:    Household{HasPets: true},
				MedicalNotes: []string{"asthma"},
			},
		}
		require.NoError(t, s.CreateUser(ctx, u))
		assert.NotEmpty(t, u.ID)
		assert.Equal(t, 1, u.Level)

		got, err := s.GetUserByExternalID(ctx, "ext-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "Portland", got.Location)
		assert.True(t, got.Household.HasPets)
		assert.Equal(t, []string{"asthma"}, got.MedicalNotes)
		assert.Equal(t, 0, got.Points)
	})

	t.Run("duplicate external id", func(t *testing.T) {
		err := s.CreateUser(ctx, &User{ExternalID: "ext-1", Profile: Profile{DisplayName: "Again"}})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("profile update", func(t *testing.T) {
		u := newTestUser(t, s, "ext-2")
		got, err := s.UpdateUserProfile(ctx, u.ID, Profile{DisplayName: "Sasha", Household: Household{HasChildren: true}})
		require.NoError(t, err)
		assert.Equal(t, "Sasha", got.DisplayName)
		assert.True(t, got.Household.HasChildren)
		assert.Equal(t, []string{}, got.MedicalNotes)

		_, err = s.UpdateUserProfile(ctx, "missing", Profile{DisplayName: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAdjustUserPoints(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newTestUser(t, s, "points")

	got, err := s.AdjustUserPoints(ctx, u.ID, 120)
	require.NoError(t, err)
	assert.Equal(t, 120, got.Points)
	assert.Equal(t, 2, got.Level)

	got, err = s.AdjustUserPoints(ctx, u.ID, -30)
	require.NoError(t, err)
	assert.Equal(t, 90, got.Points)
	assert.Equal(t, 1, got.Level)

	got, err = s.AdjustUserPoints(ctx, u.ID, -500)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Points)
	assert.Equal(t, 1, got.Level)

	_, err = s.AdjustUserPoints(ctx, "missing", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLevelForPoints(t *testing.T) {
	cases := map[int]int{-5: 1, 0: 1, 99: 1, 100: 2, 250: 3, 1000: 11}
	for points, want := range cases {
		assert.Equal(t, want, LevelForPoints(points), "points=%d", points)
	}
}

func TestChatSessionsAndMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newTestUser(t, s, "chatter")

	first := &ChatSession{UserID: u.ID, Title: "New Chat"}
	require.NoError(t, s.CreateChatSession(ctx, first))
	second := &ChatSession{UserID: u.ID, Title: "New Chat"}
	require.NoError(t, s.CreateChatSession(ctx, second))

	sessions, err := s.ListChatSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)

	// a new message in the older session moves it to the top
	require.NoError(t, s.CreateChatMessage(ctx, &ChatMessage{SessionID: first.ID, Role: RoleUser, Content: "hi"}))
	assistant := &ChatMessage{SessionID: first.ID, Role: RoleAssistant, Content: "Here is a list", Checklist: testPayload()}
	require.NoError(t, s.CreateChatMessage(ctx, assistant))

	sessions, err = s.ListChatSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, sessions[0].ID)

	messages, err := s.ListChatMessages(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Nil(t, messages[0].Checklist)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	require.NotNil(t, messages[1].Checklist)
	assert.Equal(t, "Earthquake kit", messages[1].Checklist.Title)
	assert.True(t, messages[0].CreatedAt.Before(messages[1].CreatedAt))

	got, err := s.GetChatMessage(ctx, u.ID, assistant.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Checklist.Items, 2)

	other := newTestUser(t, s, "someone-else")
	got, err = s.GetChatMessage(ctx, other.ID, assistant.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.UpdateChatSessionTitle(ctx, u.ID, first.ID, "hi"))
	cs, err := s.GetChatSession(ctx, u.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", cs.Title)

	require.NoError(t, s.DeleteChatSession(ctx, u.ID, first.ID))
	messages, err = s.ListChatMessages(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.ErrorIs(t, s.DeleteChatSession(ctx, u.ID, first.ID), ErrNotFound)
}

func TestCreateChatMessageRejectsInvalidPayload(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newTestUser(t, s, "payload")
	cs := &ChatSession{UserID: u.ID, Title: "New Chat"}
	require.NoError(t, s.CreateChatSession(ctx, cs))

	bad := testPayload()
	bad.Category = "weather"
	err := s.CreateChatMessage(ctx, &ChatMessage{SessionID: cs.ID, Role: RoleAssistant, Content: "x", Checklist: bad})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	err = s.CreateChatMessage(ctx, &ChatMessage{SessionID: cs.ID, Role: RoleUser, Content: "x", Checklist: testPayload()})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestMalformedPayloadRowIsDecodeError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newTestUser(t, s, "decode")
	cs := &ChatSession{UserID: u.ID, Title: "New Chat"}
	require.NoError(t, s.CreateChatSession(ctx, cs))

	_, err := s.db.ExecContext(ctx, `INSERT INTO chat_messages (id, session_id, role, content, checklist_json, created_at)
        VALUES ('m1', ?, 'assistant', 'x', '{"title": 5}', ?)`, cs.ID, time.Now().UTC())
	require.NoError(t, err)

	_, err = s.ListChatMessages(ctx, cs.ID)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestChecklists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newTestUser(t, s, "lists")

	c := &Checklist{
		UserID:   u.ID,
		Title:    "Go bag",
		Category: CategoryPlanning,
		Points:   15,
		Items: []ChecklistItem{
			{Text: "Copies of documents", Priority: PriorityHigh},
			{Text: "Cash", Priority: PriorityMedium},
			{Text: "Snacks", Priority: PriorityLow},
		},
	}
	require.NoError(t, s.CreateChecklist(ctx, c))

	got, err := s.GetChecklist(ctx, u.ID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Items, 3)
	for i, item := range got.Items {
		assert.Equal(t, i, item.Position)
		assert.False(t, item.Completed)
	}
	assert.Equal(t, "Copies of documents", got.Items[0].Text)
	assert.Equal(t, "Snacks", got.Items[2].Text)

	require.NoError(t, s.SetChecklistItemCompleted(ctx, c.ID, got.Items[1].ID, true))
	require.NoError(t, s.SetChecklistCompleted(ctx, c.ID, true))
	assert.ErrorIs(t, s.SetChecklistItemCompleted(ctx, c.ID, "nope", true), ErrNotFound)

	lists, err := s.ListChecklists(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.True(t, lists[0].Completed)
	assert.True(t, lists[0].Items[1].Completed)
	assert.Len(t, lists[0].Items, 3)

	other := newTestUser(t, s, "not-owner")
	got, err = s.GetChecklist(ctx, other.ID, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, s.DeleteChecklist(ctx, other.ID, c.ID), ErrNotFound)

	require.NoError(t, s.DeleteChecklist(ctx, u.ID, c.ID))
	lists, err = s.ListChecklists(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestTasksAndCompletions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newTestUser(t, s, "tasks")

	task := &Task{
		ID:            "water-supply",
		Title:         "Store water",
		Category:      CategorySupplies,
		Points:        10,
		Steps:         []string{"Buy containers", "Fill and label"},
		DisasterTypes: []string{"earthquake", "hurricane"},
	}
	require.NoError(t, s.UpsertTask(ctx, task))

	require.NoError(t, s.CreateTaskCompletion(ctx, &TaskCompletion{UserID: u.ID, TaskID: task.ID, PointsAwarded: 10}))
	err := s.CreateTaskCompletion(ctx, &TaskCompletion{UserID: u.ID, TaskID: task.ID, PointsAwarded: 10})
	assert.ErrorIs(t, err, ErrDuplicate)

	// re-seeding with a new point value leaves the existing award alone
	task.Points = 40
	require.NoError(t, s.UpsertTask(ctx, task))
	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Points)
	assert.Equal(t, []string{"earthquake", "hurricane"}, got.DisasterTypes)

	completions, err := s.ListTaskCompletions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, completions, 1)
	assert.Equal(t, 10, completions[0].PointsAwarded)

	deleted, err := s.DeleteTaskCompletion(ctx, u.ID, task.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, 10, deleted.PointsAwarded)

	deleted, err = s.DeleteTaskCompletion(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	assert.Error(t, s.UpsertTask(ctx, &Task{ID: "bad", Title: "x", Category: "weather"}))
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", postgresDialect.rebind(q))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_foreign_keys=on&_busy_timeout=5000", sqliteDSN(":memory:"))
	assert.Equal(t, "app.db?_fk=1&_busy_timeout=5000", sqliteDSN("app.db?_fk=1"))
}

func TestPayloadValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ChecklistPayload)
	}{
		{"empty title", func(p *ChecklistPayload) { p.Title = " " }},
		{"long title", func(p *ChecklistPayload) {
			p.Title = "This title is definitely going to be longer than sixty characters"
		}},
		{"bad category", func(p *ChecklistPayload) { p.Category = "food" }},
		{"too few points", func(p *ChecklistPayload) { p.Points = 4 }},
		{"too many points", func(p *ChecklistPayload) { p.Points = 51 }},
		{"no items", func(p *ChecklistPayload) { p.Items = nil }},
		{"too many items", func(p *ChecklistPayload) {
			for len(p.Items) < 6 {
				p.Items = append(p.Items, PayloadItem{Text: "more", Priority: PriorityLow})
			}
		}},
		{"bad priority", func(p *ChecklistPayload) { p.Items[0].Priority = "urgent" }},
	}

	assert.NoError(t, testPayload().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPayload()
			tt.mutate(p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPayload)
		})
	}
}
