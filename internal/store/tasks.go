package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Task catalog methods

func (s *SQLStore) UpsertTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if !task.Category.Valid() {
		return fmt.Errorf("task %s has unknown category %q", task.ID, task.Category)
	}
	if task.Points < 0 {
		return fmt.Errorf("task %s has negative points", task.ID)
	}
	steps, err := encodeJSON(nonNil(task.Steps))
	if err != nil {
		return err
	}
	disasters, err := encodeJSON(nonNil(task.DisasterTypes))
	if err != nil {
		return err
	}
	task.UpdatedAt = s.now()

	_, err = s.exec(ctx, s.db, `
        INSERT INTO tasks (id, title, description, category, points, steps_json, disaster_types_json, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            title = excluded.title,
            description = excluded.description,
            category = excluded.category,
            points = excluded.points,
            steps_json = excluded.steps_json,
            disaster_types_json = excluded.disaster_types_json,
            updated_at = excluded.updated_at`,
		task.ID, task.Title, task.Description, string(task.Category), task.Points, steps, disasters, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}
	return nil
}

const taskColumns = "id, title, description, category, points, steps_json, disaster_types_json, updated_at"

func scanTask(row interface{ Scan(dest ...any) error }) (*Task, error) {
	var t Task
	var category, steps, disasters string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &category, &t.Points, &steps, &disasters, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Category = Category(category)
	if !t.Category.Valid() {
		return nil, fmt.Errorf("%w: task %s has unknown category %q", ErrDecode, t.ID, category)
	}
	var err error
	if t.Steps, err = decodeStringList(steps); err != nil {
		return nil, fmt.Errorf("%w: task %s steps: %v", ErrDecode, t.ID, err)
	}
	if t.DisasterTypes, err = decodeStringList(disasters); err != nil {
		return nil, fmt.Errorf("%w: task %s disaster types: %v", ErrDecode, t.ID, err)
	}
	return &t, nil
}

func (s *SQLStore) GetTask(ctx context.Context, taskID string) (*Task, error) {
	t, err := scanTask(s.queryRow(ctx, s.db, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

func (s *SQLStore) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.query(ctx, s.db, "SELECT "+taskColumns+" FROM tasks ORDER BY category, title")
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

func (s *SQLStore) ListTaskCompletions(ctx context.Context, userID string) ([]TaskCompletion, error) {
	rows, err := s.query(ctx, s.db, `
        SELECT user_id, task_id, points_awarded, completed_at
        FROM task_completions
        WHERE user_id = ?
        ORDER BY completed_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task completions: %w", err)
	}
	defer rows.Close()

	completions := []TaskCompletion{}
	for rows.Next() {
		var tc TaskCompletion
		if err := rows.Scan(&tc.UserID, &tc.TaskID, &tc.PointsAwarded, &tc.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task completion row: %w", err)
		}
		completions = append(completions, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task completion rows: %w", err)
	}
	return completions, nil
}

func (s *SQLStore) CreateTaskCompletion(ctx context.Context, completion *TaskCompletion) error {
	if completion.PointsAwarded < 0 {
		return fmt.Errorf("task completion %s has negative points", completion.TaskID)
	}
	completion.CompletedAt = s.now()
	_, err := s.exec(ctx, s.db, `
        INSERT INTO task_completions (user_id, task_id, points_awarded, completed_at)
        VALUES (?, ?, ?, ?)`,
		completion.UserID, completion.TaskID, completion.PointsAwarded, completion.CompletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("task %s: %w", completion.TaskID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert task completion: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteTaskCompletion(ctx context.Context, userID, taskID string) (*TaskCompletion, error) {
	var deleted *TaskCompletion
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var tc TaskCompletion
		err := s.queryRow(ctx, tx, `
            SELECT user_id, task_id, points_awarded, completed_at
            FROM task_completions
            WHERE user_id = ? AND task_id = ?`+s.dialect.forUpdate, userID, taskID).
			Scan(&tc.UserID, &tc.TaskID, &tc.PointsAwarded, &tc.CompletedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to read task completion: %w", err)
		}
		if _, err := s.exec(ctx, tx, "DELETE FROM task_completions WHERE user_id = ? AND task_id = ?", userID, taskID); err != nil {
			return fmt.Errorf("failed to delete task completion: %w", err)
		}
		deleted = &tc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
