package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/preppal/prep-assistant/internal/store"
)

// SessionBacking is where a ChatStore keeps sessions and messages. There are
// two variants: PersistedBacking for signed-in users and EphemeralBacking for
// guests, whose chats live only in memory.
type SessionBacking interface {
	Persistent() bool
	ListSessions(ctx context.Context) ([]store.ChatSession, error)
	CreateSession(ctx context.Context, title string) (*store.ChatSession, error)
	UpdateTitle(ctx context.Context, sessionID, title string) error
	DeleteSession(ctx context.Context, sessionID string) error
	ListMessages(ctx context.Context, sessionID string) ([]store.ChatMessage, error)
	// AppendMessage assigns ID and CreatedAt.
	AppendMessage(ctx context.Context, msg *store.ChatMessage) error
}

type PersistedBacking struct {
	repo   store.Repository
	userID string
}

func NewPersistedBacking(repo store.Repository, userID string) *PersistedBacking {
	return &PersistedBacking{repo: repo, userID: userID}
}

func (b *PersistedBacking) Persistent() bool { return true }

func (b *PersistedBacking) ListSessions(ctx context.Context) ([]store.ChatSession, error) {
	sessions, err := b.repo.ListChatSessions(ctx, b.userID)
	if err != nil {
		return nil, persistenceError("load chat sessions", err)
	}
	return sessions, nil
}

func (b *PersistedBacking) CreateSession(ctx context.Context, title string) (*store.ChatSession, error) {
	cs := &store.ChatSession{UserID: b.userID, Title: title}
	if err := b.repo.CreateChatSession(ctx, cs); err != nil {
		return nil, persistenceError("create chat session", err)
	}
	return cs, nil
}

func (b *PersistedBacking) UpdateTitle(ctx context.Context, sessionID, title string) error {
	if err := b.repo.UpdateChatSessionTitle(ctx, b.userID, sessionID, title); err != nil {
		return persistenceError("update chat title", err)
	}
	return nil
}

func (b *PersistedBacking) DeleteSession(ctx context.Context, sessionID string) error {
	if err := b.repo.DeleteChatSession(ctx, b.userID, sessionID); err != nil {
		return persistenceError("delete chat session", err)
	}
	return nil
}

func (b *PersistedBacking) ListMessages(ctx context.Context, sessionID string) ([]store.ChatMessage, error) {
	cs, err := b.repo.GetChatSession(ctx, b.userID, sessionID)
	if err != nil {
		return nil, persistenceError("load chat session", err)
	}
	if cs == nil {
		return nil, fmt.Errorf("chat session %s: %w", sessionID, ErrNotFound)
	}
	msgs, err := b.repo.ListChatMessages(ctx, sessionID)
	if err != nil {
		return nil, persistenceError("load chat messages", err)
	}
	return msgs, nil
}

func (b *PersistedBacking) AppendMessage(ctx context.Context, msg *store.ChatMessage) error {
	if err := b.repo.CreateChatMessage(ctx, msg); err != nil {
		return persistenceError("save chat message", err)
	}
	return nil
}

// EphemeralBacking keeps guest chats in memory. Nothing is written to the
// backend.
type EphemeralBacking struct {
	mu       sync.Mutex
	sessions map[string]*store.ChatSession
	messages map[string][]store.ChatMessage
	now      func() time.Time
}

func NewEphemeralBacking() *EphemeralBacking {
	return &EphemeralBacking{
		sessions: map[string]*store.ChatSession{},
		messages: map[string][]store.ChatMessage{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (b *EphemeralBacking) Persistent() bool { return false }

func (b *EphemeralBacking) ListSessions(ctx context.Context) ([]store.ChatSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]store.ChatSession, 0, len(b.sessions))
	for _, cs := range b.sessions {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (b *EphemeralBacking) CreateSession(ctx context.Context, title string) (*store.ChatSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	cs := &store.ChatSession{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
	b.sessions[cs.ID] = cs
	copied := *cs
	return &copied, nil
}

func (b *EphemeralBacking) UpdateTitle(ctx context.Context, sessionID, title string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cs, ok := b.sessions[sessionID]
	if !ok {
		return fmt.Errorf("chat session %s: %w", sessionID, ErrNotFound)
	}
	cs.Title = title
	cs.UpdatedAt = b.now()
	return nil
}

func (b *EphemeralBacking) DeleteSession(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[sessionID]; !ok {
		return fmt.Errorf("chat session %s: %w", sessionID, ErrNotFound)
	}
	delete(b.sessions, sessionID)
	delete(b.messages, sessionID)
	return nil
}

func (b *EphemeralBacking) ListMessages(ctx context.Context, sessionID string) ([]store.ChatMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("chat session %s: %w", sessionID, ErrNotFound)
	}
	out := make([]store.ChatMessage, len(b.messages[sessionID]))
	copy(out, b.messages[sessionID])
	return out, nil
}

func (b *EphemeralBacking) AppendMessage(ctx context.Context, msg *store.ChatMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cs, ok := b.sessions[msg.SessionID]
	if !ok {
		return fmt.Errorf("chat session %s: %w", msg.SessionID, ErrNotFound)
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = b.now()
	cs.UpdatedAt = msg.CreatedAt
	b.messages[msg.SessionID] = append(b.messages[msg.SessionID], *msg)
	return nil
}
