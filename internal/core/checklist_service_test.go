package core

import (
	"context"
	"testing"

	"github.com/preppal/prep-assistant/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checklistFixture struct {
	repo       store.Repository
	user       *store.User
	chat       *ChatStore
	gen        *MockGenerator
	checklists *ChecklistService
	ledger     *Ledger
}

func newChecklistFixture(t *testing.T) *checklistFixture {
	t.Helper()
	return newChecklistFixtureOn(t, newTestRepo(t))
}

func newChecklistFixtureOn(t *testing.T, repo store.Repository) *checklistFixture {
	t.Helper()
	user := newTestUser(t, repo, "ext-lists")
	gen := new(MockGenerator)
	ws := NewRegistry(repo, gen, DefaultPrompts()).ForUser(user)
	return &checklistFixture{repo: repo, user: user, chat: ws.Chat, gen: gen, checklists: ws.Checklists, ledger: ws.Ledger}
}

func TestPromote(t *testing.T) {
	ctx := context.Background()
	f := newChecklistFixture(t)
	msg := sendWithChecklist(t, f.chat, f.gen, "Earthquake prep")

	checklist, err := f.checklists.Promote(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, checklist.UserID)
	require.NotNil(t, checklist.SourceMessageID)
	assert.Equal(t, msg.ID, *checklist.SourceMessageID)
	assert.Equal(t, "Earthquake go-bag", checklist.Title)
	assert.Equal(t, store.CategorySupplies, checklist.Category)
	assert.Equal(t, 20, checklist.Points)
	assert.False(t, checklist.Completed)

	stored, err := f.checklists.Get(ctx, checklist.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "Pack 3 days of water", stored.Items[0].Text)
	assert.Equal(t, "Add a flashlight and batteries", stored.Items[1].Text)
	for _, item := range stored.Items {
		assert.False(t, item.Completed)
	}

	cached := f.checklists.Cached()
	require.Len(t, cached, 1)
	assert.Equal(t, checklist.ID, cached[0].ID)

	t.Run("promoting twice creates a second checklist", func(t *testing.T) {
		again, err := f.checklists.Promote(ctx, msg.ID)
		require.NoError(t, err)
		assert.NotEqual(t, checklist.ID, again.ID)
		assert.Len(t, f.checklists.Cached(), 2)
	})
}

func TestPromoteWithoutPayload(t *testing.T) {
	ctx := context.Background()
	f := newChecklistFixture(t)
	sendWithChecklist(t, f.chat, f.gen, "Flood prep")

	msgs := f.chat.Snapshot().Messages
	require.Len(t, msgs, 3)
	welcome, userMsg := msgs[0], msgs[1]

	for _, id := range []string{welcome.ID, userMsg.ID} {
		_, err := f.checklists.Promote(ctx, id)
		assert.ErrorIs(t, err, ErrNoChecklistPayload)
	}

	_, err := f.checklists.Promote(ctx, "no-such-message")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := f.repo.ListChecklists(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPromoteOtherUsersMessage(t *testing.T) {
	ctx := context.Background()
	f := newChecklistFixture(t)
	msg := sendWithChecklist(t, f.chat, f.gen, "Hurricane prep")

	other := newTestUser(t, f.repo, "ext-intruder")
	_, err := NewChecklistService(f.repo, other.ID).Promote(ctx, msg.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManualChecklists(t *testing.T) {
	ctx := context.Background()
	f := newChecklistFixture(t)

	draft := store.ChecklistPayload{
		Title:       "Pet evacuation",
		Description: "Get the animals out safely.",
		Category:    store.CategoryPlanning,
		Points:      10,
		Items:       []store.PayloadItem{{Text: "Find a pet-friendly shelter", Priority: store.PriorityHigh}},
	}
	created, err := f.checklists.Create(ctx, draft)
	require.NoError(t, err)
	assert.Nil(t, created.SourceMessageID)

	list, err := f.checklists.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Pet evacuation", list[0].Title)
	require.Len(t, list[0].Items, 1)

	t.Run("invalid draft", func(t *testing.T) {
		bad := draft
		bad.Points = 0
		_, err := f.checklists.Create(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, f.checklists.Delete(ctx, created.ID))
		assert.Empty(t, f.checklists.Cached())
		assert.ErrorIs(t, f.checklists.Delete(ctx, created.ID), ErrNotFound)

		_, err := f.checklists.Get(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGuestChecklists(t *testing.T) {
	ctx := context.Background()
	guest := NewRegistry(newTestRepo(t), new(MockGenerator), DefaultPrompts()).ForGuest("g")

	_, err := guest.Checklists.Promote(ctx, "m")
	assert.ErrorIs(t, err, ErrGuestMode)
	_, err = guest.Checklists.List(ctx)
	assert.ErrorIs(t, err, ErrGuestMode)
	_, err = guest.Checklists.Create(ctx, store.ChecklistPayload{})
	assert.ErrorIs(t, err, ErrGuestMode)
	assert.ErrorIs(t, guest.Checklists.Delete(ctx, "c"), ErrGuestMode)
}
