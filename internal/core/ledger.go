package core

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/preppal/prep-assistant/internal/store"
)

// Ledger keeps a user's point total. Catalog tasks and saved checklists
// award into the same total.
type Ledger struct {
	repo       store.Repository
	userID     string
	checklists *ChecklistService

	// toggleMu serializes checklist toggles so the completion flag is always
	// decided from the current item rows.
	toggleMu sync.Mutex
}

func NewLedger(repo store.Repository, userID string, checklists *ChecklistService) *Ledger {
	return &Ledger{repo: repo, userID: userID, checklists: checklists}
}

func (l *Ledger) requireUser() error {
	if l.userID == "" || l.repo == nil {
		return ErrGuestMode
	}
	return nil
}

// Award adds points. The level is recomputed by the repository.
func (l *Ledger) Award(ctx context.Context, points int) (*store.User, error) {
	if points < 0 {
		return nil, fmt.Errorf("%w: negative points %d", ErrInvalidInput, points)
	}
	return l.adjust(ctx, points)
}

// Deduct removes points, stopping at zero.
func (l *Ledger) Deduct(ctx context.Context, points int) (*store.User, error) {
	if points < 0 {
		return nil, fmt.Errorf("%w: negative points %d", ErrInvalidInput, points)
	}
	return l.adjust(ctx, -points)
}

func (l *Ledger) adjust(ctx context.Context, delta int) (*store.User, error) {
	if err := l.requireUser(); err != nil {
		return nil, err
	}
	user, err := l.repo.AdjustUserPoints(ctx, l.userID, delta)
	if err != nil {
		return nil, persistenceError("adjust points", err)
	}
	return user, nil
}

// TaskView is a catalog task with the caller's completion state.
type TaskView struct {
	store.Task
	Completed     bool       `json:"completed"`
	PointsAwarded int        `json:"points_awarded,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Tasks lists the catalog. Guests see it with nothing completed.
func (l *Ledger) Tasks(ctx context.Context) ([]TaskView, error) {
	tasks, err := l.repo.ListTasks(ctx)
	if err != nil {
		return nil, persistenceError("load tasks", err)
	}

	done := map[string]store.TaskCompletion{}
	if l.userID != "" {
		completions, err := l.repo.ListTaskCompletions(ctx, l.userID)
		if err != nil {
			return nil, persistenceError("load task completions", err)
		}
		for _, c := range completions {
			done[c.TaskID] = c
		}
	}

	views := make([]TaskView, len(tasks))
	for i, t := range tasks {
		views[i] = TaskView{Task: t}
		if c, ok := done[t.ID]; ok {
			completedAt := c.CompletedAt
			views[i].Completed = true
			views[i].PointsAwarded = c.PointsAwarded
			views[i].CompletedAt = &completedAt
		}
	}
	return views, nil
}

// CompleteTask marks a catalog task done and awards its points. The awarded
// amount is recorded so a later UncompleteTask deducts the same value.
func (l *Ledger) CompleteTask(ctx context.Context, taskID string) (*store.User, error) {
	if err := l.requireUser(); err != nil {
		return nil, err
	}
	task, err := l.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, persistenceError("load task", err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}

	completion := &store.TaskCompletion{UserID: l.userID, TaskID: task.ID, PointsAwarded: task.Points}
	if err := l.repo.CreateTaskCompletion(ctx, completion); err != nil {
		return nil, persistenceError("complete task", err)
	}
	return l.Award(ctx, completion.PointsAwarded)
}

func (l *Ledger) UncompleteTask(ctx context.Context, taskID string) (*store.User, error) {
	if err := l.requireUser(); err != nil {
		return nil, err
	}
	completion, err := l.repo.DeleteTaskCompletion(ctx, l.userID, taskID)
	if err != nil {
		return nil, persistenceError("uncomplete task", err)
	}
	if completion == nil {
		return nil, fmt.Errorf("task %s is not completed: %w", taskID, ErrNotFound)
	}
	return l.Deduct(ctx, completion.PointsAwarded)
}

// ToggleResult is the outcome of ToggleChecklistItem. User is nil unless the
// checklist's completion flag changed.
type ToggleResult struct {
	Checklist *store.Checklist `json:"checklist"`
	User      *store.User      `json:"user,omitempty"`
}

// ToggleChecklistItem flips one item. When that flips the whole checklist
// complete the checklist's points are awarded; when it flips it back they are
// deducted.
func (l *Ledger) ToggleChecklistItem(ctx context.Context, checklistID, itemID string) (*ToggleResult, error) {
	if err := l.requireUser(); err != nil {
		return nil, err
	}
	l.toggleMu.Lock()
	defer l.toggleMu.Unlock()

	checklist, err := l.repo.GetChecklist(ctx, l.userID, checklistID)
	if err != nil {
		return nil, persistenceError("load checklist", err)
	}
	if checklist == nil {
		return nil, fmt.Errorf("checklist %s: %w", checklistID, ErrNotFound)
	}

	idx := -1
	for i := range checklist.Items {
		if checklist.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("checklist item %s: %w", itemID, ErrNotFound)
	}

	completed := !checklist.Items[idx].Completed
	if err := l.repo.SetChecklistItemCompleted(ctx, checklistID, itemID, completed); err != nil {
		return nil, persistenceError("toggle checklist item", err)
	}
	checklist.Items[idx].Completed = completed

	result := &ToggleResult{Checklist: checklist}
	allDone := checklist.AllItemsCompleted()
	if allDone != checklist.Completed {
		if err := l.repo.SetChecklistCompleted(ctx, checklistID, allDone); err != nil {
			return nil, persistenceError("update checklist", err)
		}
		checklist.Completed = allDone

		var user *store.User
		if allDone {
			user, err = l.Award(ctx, checklist.Points)
		} else {
			user, err = l.Deduct(ctx, checklist.Points)
		}
		if err != nil {
			return nil, err
		}
		result.User = user
		log.Printf("Checklist %s completed=%t for user %s, points now %d", checklistID, allDone, l.userID, user.Points)
	}

	if l.checklists != nil {
		l.checklists.replace(checklist)
	}
	return result, nil
}
