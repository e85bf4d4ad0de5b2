package core

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/preppal/prep-assistant/internal/store"
)

// ChecklistService manages a signed-in user's saved checklists and keeps an
// in-memory copy of the list. A service built for a guest (empty userID)
// rejects every call with ErrGuestMode.
type ChecklistService struct {
	repo   store.Repository
	userID string

	mu         sync.Mutex
	checklists []store.Checklist
}

func NewChecklistService(repo store.Repository, userID string) *ChecklistService {
	return &ChecklistService{repo: repo, userID: userID, checklists: []store.Checklist{}}
}

func (s *ChecklistService) requireUser() error {
	if s.userID == "" || s.repo == nil {
		return ErrGuestMode
	}
	return nil
}

// Promote copies the checklist payload of an assistant message into a new
// saved checklist. Promoting the same message twice yields two checklists.
func (s *ChecklistService) Promote(ctx context.Context, messageID string) (*store.Checklist, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}

	msg, err := s.repo.GetChatMessage(ctx, s.userID, messageID)
	if err != nil {
		return nil, persistenceError("load message", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if msg.Role != store.RoleAssistant || msg.Checklist == nil {
		return nil, ErrNoChecklistPayload
	}

	source := msg.ID
	checklist := checklistFromPayload(s.userID, msg.Checklist)
	checklist.SourceMessageID = &source
	if err := s.repo.CreateChecklist(ctx, checklist); err != nil {
		return nil, persistenceError("promote checklist", err)
	}
	log.Printf("Promoted message %s to checklist %s for user %s", msg.ID, checklist.ID, s.userID)

	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return checklist, nil
}

// Create saves a checklist written by the user. It is validated like an AI
// payload.
func (s *ChecklistService) Create(ctx context.Context, draft store.ChecklistPayload) (*store.Checklist, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	checklist := checklistFromPayload(s.userID, &draft)
	if err := s.repo.CreateChecklist(ctx, checklist); err != nil {
		return nil, persistenceError("create checklist", err)
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return checklist, nil
}

func checklistFromPayload(userID string, p *store.ChecklistPayload) *store.Checklist {
	items := make([]store.ChecklistItem, len(p.Items))
	for i, it := range p.Items {
		items[i] = store.ChecklistItem{Text: it.Text, Priority: it.Priority}
	}
	return &store.Checklist{
		UserID:      userID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Points:      p.Points,
		Items:       items,
	}
}

// Refresh reloads the cached list from the repository.
func (s *ChecklistService) Refresh(ctx context.Context) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	list, err := s.repo.ListChecklists(ctx, s.userID)
	if err != nil {
		return persistenceError("load checklists", err)
	}
	s.mu.Lock()
	s.checklists = list
	s.mu.Unlock()
	return nil
}

// List returns the user's checklists, newest first.
func (s *ChecklistService) List(ctx context.Context) ([]store.Checklist, error) {
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.Cached(), nil
}

// Cached returns the list as of the last refresh.
func (s *ChecklistService) Cached() []store.Checklist {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Checklist, len(s.checklists))
	copy(out, s.checklists)
	return out
}

func (s *ChecklistService) Get(ctx context.Context, checklistID string) (*store.Checklist, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	c, err := s.repo.GetChecklist(ctx, s.userID, checklistID)
	if err != nil {
		return nil, persistenceError("load checklist", err)
	}
	if c == nil {
		return nil, fmt.Errorf("checklist %s: %w", checklistID, ErrNotFound)
	}
	return c, nil
}

func (s *ChecklistService) Delete(ctx context.Context, checklistID string) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	if err := s.repo.DeleteChecklist(ctx, s.userID, checklistID); err != nil {
		return persistenceError("delete checklist", err)
	}
	return s.Refresh(ctx)
}

// replace swaps one cached checklist for an updated copy.
func (s *ChecklistService) replace(updated *store.Checklist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.checklists {
		if s.checklists[i].ID == updated.ID {
			s.checklists[i] = *updated
			return
		}
	}
}
