package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Chat session methods

func (s *SQLStore) CreateChatSession(ctx context.Context, session *ChatSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := s.now()
	session.CreatedAt, session.UpdatedAt = now, now

	_, err := s.exec(ctx, s.db,
		"INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		session.ID, session.UserID, session.Title, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert chat session: %w", err)
	}
	return nil
}

func (s *SQLStore) GetChatSession(ctx context.Context, userID, sessionID string) (*ChatSession, error) {
	var cs ChatSession
	err := s.queryRow(ctx, s.db,
		"SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE id = ? AND user_id = ?",
		sessionID, userID).Scan(&cs.ID, &cs.UserID, &cs.Title, &cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return &cs, nil
}

func (s *SQLStore) ListChatSessions(ctx context.Context, userID string) ([]ChatSession, error) {
	rows, err := s.query(ctx, s.db, `
        SELECT id, user_id, title, created_at, updated_at
        FROM chat_sessions
        WHERE user_id = ?
        ORDER BY updated_at DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ChatSession{}
	for rows.Next() {
		var cs ChatSession
		if err := rows.Scan(&cs.ID, &cs.UserID, &cs.Title, &cs.CreatedAt, &cs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat session row: %w", err)
		}
		sessions = append(sessions, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat session rows: %w", err)
	}
	return sessions, nil
}

func (s *SQLStore) UpdateChatSessionTitle(ctx context.Context, userID, sessionID, title string) error {
	res, err := s.exec(ctx, s.db,
		"UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		title, s.now(), sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to update chat session title: %w", err)
	}
	return requireAffected(res, "chat session "+sessionID)
}

func (s *SQLStore) DeleteChatSession(ctx context.Context, userID, sessionID string) error {
	res, err := s.exec(ctx, s.db, "DELETE FROM chat_sessions WHERE id = ? AND user_id = ?", sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete chat session: %w", err)
	}
	return requireAffected(res, "chat session "+sessionID)
}

// Message methods

func (s *SQLStore) CreateChatMessage(ctx context.Context, msg *ChatMessage) error {
	var payload sql.NullString
	if msg.Checklist != nil {
		if msg.Role != RoleAssistant {
			return fmt.Errorf("%w: only assistant messages carry a checklist", ErrInvalidPayload)
		}
		if err := msg.Checklist.Validate(); err != nil {
			return err
		}
		encoded, err := encodeJSON(msg.Checklist)
		if err != nil {
			return err
		}
		payload = sql.NullString{String: encoded, Valid: true}
	}

	msg.ID = uuid.NewString()
	msg.CreatedAt = s.now()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := s.exec(ctx, tx, `
            INSERT INTO chat_messages (id, session_id, role, content, checklist_json, created_at)
            VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.SessionID, string(msg.Role), msg.Content, payload, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert chat message: %w", err)
		}
		res, err := s.exec(ctx, tx, "UPDATE chat_sessions SET updated_at = ? WHERE id = ?", msg.CreatedAt, msg.SessionID)
		if err != nil {
			return fmt.Errorf("failed to touch chat session: %w", err)
		}
		return requireAffected(res, "chat session "+msg.SessionID)
	})
}

func scanMessage(row interface{ Scan(dest ...any) error }) (*ChatMessage, error) {
	var msg ChatMessage
	var role string
	var payload sql.NullString
	if err := row.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &payload, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.Role = Role(role)
	if payload.Valid && payload.String != "" {
		p, err := DecodeChecklistPayload([]byte(payload.String))
		if err != nil {
			return nil, fmt.Errorf("%w: chat message %s checklist: %v", ErrDecode, msg.ID, err)
		}
		msg.Checklist = p
	}
	return &msg, nil
}

func (s *SQLStore) ListChatMessages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	rows, err := s.query(ctx, s.db, `
        SELECT id, session_id, role, content, checklist_json, created_at
        FROM chat_messages
        WHERE session_id = ?
        ORDER BY created_at ASC, seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	messages := []ChatMessage{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat message rows: %w", err)
	}
	return messages, nil
}

func (s *SQLStore) GetChatMessage(ctx context.Context, userID, messageID string) (*ChatMessage, error) {
	msg, err := scanMessage(s.queryRow(ctx, s.db, `
        SELECT m.id, m.session_id, m.role, m.content, m.checklist_json, m.created_at
        FROM chat_messages m
        JOIN chat_sessions cs ON cs.id = m.session_id
        WHERE m.id = ? AND cs.user_id = ?`, messageID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get chat message: %w", err)
	}
	return msg, nil
}
