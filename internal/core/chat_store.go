package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/preppal/prep-assistant/internal/store"
)

const (
	sessionTitleMaxRunes = 30
	sessionTitleEllipsis = "..."
)

// DeriveSessionTitle builds a chat title from the first user message.
func DeriveSessionTitle(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= sessionTitleMaxRunes {
		return string(runes)
	}
	return string(runes[:sessionTitleMaxRunes]) + sessionTitleEllipsis
}

// ChatState is a point-in-time copy of a ChatStore.
type ChatState struct {
	Sessions        []store.ChatSession `json:"sessions"`
	ActiveSessionID string              `json:"active_session_id,omitempty"`
	Messages        []store.ChatMessage `json:"messages"`
	Composing       bool                `json:"composing"`
	Error           string              `json:"error,omitempty"`
	Persistent      bool                `json:"persistent"`
}

// Exchange is the result of one SendMessage call. Assistant is nil when
// generation failed.
type Exchange struct {
	SessionID  string             `json:"session_id"`
	User       *store.ChatMessage `json:"user_message"`
	Assistant  *store.ChatMessage `json:"assistant_message,omitempty"`
	TokensUsed int                `json:"tokens_used"`
}

type ChatStoreOption func(*ChatStore)

// WithSingleFlightSend rejects a SendMessage while another one is running.
func WithSingleFlightSend() ChatStoreOption {
	return func(s *ChatStore) { s.singleFlight = true }
}

// ChatStore owns one user's (or guest's) chat sessions. The mutex guards the
// in-memory state only and is never held across backend or AI calls.
type ChatStore struct {
	backing      SessionBacking
	generator    Generator
	prompts      Prompts
	singleFlight bool

	mu        sync.Mutex
	loaded    bool
	sessions  []store.ChatSession
	activeID  string
	messages  []store.ChatMessage
	composing int
	sending   bool
	lastErr   string
}

func NewChatStore(backing SessionBacking, generator Generator, prompts Prompts, opts ...ChatStoreOption) *ChatStore {
	s := &ChatStore{
		backing:   backing,
		generator: generator,
		prompts:   prompts,
		sessions:  []store.ChatSession{},
		messages:  []store.ChatMessage{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ChatStore) Snapshot() ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]store.ChatSession, len(s.sessions))
	copy(sessions, s.sessions)
	messages := make([]store.ChatMessage, len(s.messages))
	copy(messages, s.messages)
	return ChatState{
		Sessions:        sessions,
		ActiveSessionID: s.activeID,
		Messages:        messages,
		Composing:       s.composing > 0,
		Error:           s.lastErr,
		Persistent:      s.backing.Persistent(),
	}
}

func (s *ChatStore) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	return err
}

// EnsureLoaded runs LoadSessions once.
func (s *ChatStore) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	return s.LoadSessions(ctx)
}

// LoadSessions fetches the sessions, newest first, and activates the most
// recent one. For guests it only reflects what is already in memory and keeps
// the active session.
func (s *ChatStore) LoadSessions(ctx context.Context) error {
	sessions, err := s.backing.ListSessions(ctx)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	activeID := s.activeID
	s.mu.Unlock()
	if s.backing.Persistent() || !containsSession(sessions, activeID) {
		activeID = ""
		if len(sessions) > 0 {
			activeID = sessions[0].ID
		}
	}

	messages := []store.ChatMessage{}
	if activeID != "" {
		messages, err = s.backing.ListMessages(ctx, activeID)
		if err != nil {
			return s.fail(err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.sessions = sessions
	s.activeID = activeID
	s.messages = messages
	s.lastErr = ""
	return nil
}

// CreateSession starts a chat with the welcome message and makes it active.
func (s *ChatStore) CreateSession(ctx context.Context) (*store.ChatSession, error) {
	cs, err := s.backing.CreateSession(ctx, s.prompts.NewChatTitle)
	if err != nil {
		return nil, s.fail(err)
	}

	welcome := &store.ChatMessage{
		SessionID: cs.ID,
		Role:      store.RoleAssistant,
		Content:   s.prompts.WelcomeMessage,
	}
	if err := s.backing.AppendMessage(ctx, welcome); err != nil {
		return nil, s.fail(err)
	}
	cs.UpdatedAt = welcome.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.sessions = append([]store.ChatSession{*cs}, s.sessions...)
	s.activeID = cs.ID
	s.messages = []store.ChatMessage{*welcome}
	s.lastErr = ""
	return cs, nil
}

// SelectSession activates an existing session and loads its messages.
func (s *ChatStore) SelectSession(ctx context.Context, sessionID string) error {
	if s.indexOf(sessionID) < 0 {
		return s.fail(fmt.Errorf("chat session %s: %w", sessionID, ErrNotFound))
	}
	messages, err := s.backing.ListMessages(ctx, sessionID)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = sessionID
	s.messages = messages
	s.lastErr = ""
	return nil
}

func containsSession(sessions []store.ChatSession, sessionID string) bool {
	for _, cs := range sessions {
		if cs.ID == sessionID {
			return true
		}
	}
	return false
}

func (s *ChatStore) indexOf(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOfLocked(sessionID)
}

func (s *ChatStore) indexOfLocked(sessionID string) int {
	for i, cs := range s.sessions {
		if cs.ID == sessionID {
			return i
		}
	}
	return -1
}

// SendMessage stores the user's message, asks the generator for a checklist
// and stores the assistant's reply with the checklist attached. Each step is
// awaited before the next starts. On a generation failure the returned
// Exchange still carries the stored user message.
func (s *ChatStore) SendMessage(ctx context.Context, text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, s.fail(fmt.Errorf("%w: message is empty", ErrInvalidInput))
	}

	if s.singleFlight {
		s.mu.Lock()
		if s.sending {
			s.mu.Unlock()
			return nil, ErrSendInFlight
		}
		s.sending = true
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.sending = false
			s.mu.Unlock()
		}()
	}

	s.mu.Lock()
	sessionID := s.activeID
	s.mu.Unlock()
	if sessionID == "" {
		cs, err := s.CreateSession(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = cs.ID
	}

	// The title is only derived when the session is known to have no user
	// message yet.
	hasUser, err := s.hasUserMessage(ctx, sessionID)
	if err != nil {
		log.Printf("Could not check messages of chat %s, keeping its title: %v", sessionID, err)
	}
	firstMessage := err == nil && !hasUser

	userMsg := &store.ChatMessage{SessionID: sessionID, Role: store.RoleUser, Content: text}
	if err := s.backing.AppendMessage(ctx, userMsg); err != nil {
		return nil, s.fail(err)
	}
	s.appendMessage(*userMsg)
	exchange := &Exchange{SessionID: sessionID, User: userMsg}

	if firstMessage {
		title := DeriveSessionTitle(text)
		if err := s.backing.UpdateTitle(ctx, sessionID, title); err != nil {
			log.Printf("Failed to save title '%s' for chat %s: %v", title, sessionID, err)
		} else {
			s.setTitle(sessionID, title)
		}
	}

	s.setComposing(true)
	gen, err := s.generator.Generate(ctx, text)
	if err != nil {
		s.setComposing(false)
		log.Printf("Error generating checklist for chat %s: %v", sessionID, err)
		return exchange, s.fail(err)
	}

	assistantMsg := &store.ChatMessage{
		SessionID: sessionID,
		Role:      store.RoleAssistant,
		Content:   gen.DisplayText,
		Checklist: gen.Payload(),
	}
	if err := s.backing.AppendMessage(ctx, assistantMsg); err != nil {
		s.setComposing(false)
		return exchange, s.fail(err)
	}
	s.appendMessage(*assistantMsg)
	s.setComposing(false)

	exchange.Assistant = assistantMsg
	exchange.TokensUsed = gen.TokensUsed

	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	return exchange, nil
}

// hasUserMessage reports whether the session already has a user message. For
// a session that is not active the backing is consulted.
func (s *ChatStore) hasUserMessage(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	var messages []store.ChatMessage
	active := s.activeID == sessionID
	if active {
		messages = s.messages
	}
	s.mu.Unlock()

	if !active {
		loaded, err := s.backing.ListMessages(ctx, sessionID)
		if err != nil {
			return false, err
		}
		messages = loaded
	}
	for _, m := range messages {
		if m.Role == store.RoleUser {
			return true, nil
		}
	}
	return false, nil
}

// appendMessage adds msg to the active message list if its session is still
// active, and moves the session to the top.
func (s *ChatStore) appendMessage(msg store.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == msg.SessionID {
		s.messages = append(s.messages, msg)
	}
	if i := s.indexOfLocked(msg.SessionID); i >= 0 {
		cs := s.sessions[i]
		cs.UpdatedAt = msg.CreatedAt
		s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
		s.sessions = append([]store.ChatSession{cs}, s.sessions...)
	}
}

func (s *ChatStore) setTitle(sessionID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfLocked(sessionID); i >= 0 {
		s.sessions[i].Title = title
	}
}

func (s *ChatStore) setComposing(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.composing++
	} else if s.composing > 0 {
		s.composing--
	}
}

// DeleteSession removes a session. If it was active, the most recent
// remaining session becomes active.
func (s *ChatStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.backing.DeleteSession(ctx, sessionID); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if i := s.indexOfLocked(sessionID); i >= 0 {
		s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
	}
	nextID := ""
	wasActive := s.activeID == sessionID
	if wasActive {
		if len(s.sessions) > 0 {
			nextID = s.sessions[0].ID
		}
		s.activeID = nextID
		s.messages = []store.ChatMessage{}
	}
	s.lastErr = ""
	s.mu.Unlock()

	if nextID == "" {
		return nil
	}
	messages, err := s.backing.ListMessages(ctx, nextID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return s.fail(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == nextID {
		s.messages = messages
	}
	return nil
}
