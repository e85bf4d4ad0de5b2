package core

import (
	"errors"
	"fmt"

	"github.com/preppal/prep-assistant/internal/store"
)

var (
	// ErrNotFound means no record exists. For identity resolution it is the
	// signal to route the caller to onboarding.
	ErrNotFound = errors.New("not found")

	ErrAlreadyExists      = errors.New("already exists")
	ErrGuestMode          = errors.New("sign in to save checklists and track points")
	ErrNoChecklistPayload = errors.New("message does not carry a checklist")
	ErrSendInFlight       = errors.New("a message is already being sent")
	ErrInvalidInput       = errors.New("invalid input")
	ErrMalformedResponse  = errors.New("malformed model response")
)

// GenerationError reports a failed or unparseable AI call. It is never retried.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "checklist generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError wraps a backend failure; the message is passed through to
// the caller unchanged.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceError(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
	case errors.Is(err, store.ErrInvalidPayload):
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidInput, err)
	}
	return &PersistenceError{Op: op, Err: err}
}
