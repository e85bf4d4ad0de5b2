// Package store persists users, chat history, checklists and the task catalog
// in SQLite or Postgres.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by writes that target a row that does not exist
	// or is not owned by the caller. Reads return (nil, nil) instead.
	ErrNotFound = errors.New("row not found")

	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate row")

	// ErrDecode is returned when a stored row cannot be decoded into its typed form.
	ErrDecode = errors.New("malformed row")
)

// Repository is the backend the services run against.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUserProfile(ctx context.Context, userID string, profile Profile) (*User, error)

	// AdjustUserPoints adds delta to the user's points, clamping at zero, and
	// recomputes the level.
	AdjustUserPoints(ctx context.Context, userID string, delta int) (*User, error)

	CreateChatSession(ctx context.Context, session *ChatSession) error
	GetChatSession(ctx context.Context, userID, sessionID string) (*ChatSession, error)
	// ListChatSessions returns the user's sessions, most recently updated first.
	ListChatSessions(ctx context.Context, userID string) ([]ChatSession, error)
	UpdateChatSessionTitle(ctx context.Context, userID, sessionID, title string) error
	// DeleteChatSession removes the session; its messages cascade.
	DeleteChatSession(ctx context.Context, userID, sessionID string) error

	// CreateChatMessage appends a message and bumps the session's updated_at.
	CreateChatMessage(ctx context.Context, msg *ChatMessage) error
	// ListChatMessages returns messages in creation order.
	ListChatMessages(ctx context.Context, sessionID string) ([]ChatMessage, error)
	GetChatMessage(ctx context.Context, userID, messageID string) (*ChatMessage, error)

	// CreateChecklist inserts the checklist and its items in one transaction.
	CreateChecklist(ctx context.Context, checklist *Checklist) error
	GetChecklist(ctx context.Context, userID, checklistID string) (*Checklist, error)
	ListChecklists(ctx context.Context, userID string) ([]Checklist, error)
	SetChecklistItemCompleted(ctx context.Context, checklistID, itemID string, completed bool) error
	SetChecklistCompleted(ctx context.Context, checklistID string, completed bool) error
	DeleteChecklist(ctx context.Context, userID, checklistID string) error

	UpsertTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, taskID string) (*Task, error)
	ListTasks(ctx context.Context) ([]Task, error)
	ListTaskCompletions(ctx context.Context, userID string) ([]TaskCompletion, error)
	CreateTaskCompletion(ctx context.Context, completion *TaskCompletion) error
	// DeleteTaskCompletion removes and returns the completion, or (nil, nil)
	// when the task was not completed.
	DeleteTaskCompletion(ctx context.Context, userID, taskID string) (*TaskCompletion, error)

	Ping(ctx context.Context) error
	Close() error
}

// LevelForPoints maps a point total to a level: one level per 100 points,
// starting at 1.
func LevelForPoints(points int) int {
	if points < 0 {
		points = 0
	}
	return points/100 + 1
}
