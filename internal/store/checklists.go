package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

func (s *SQLStore) CreateChecklist(ctx context.Context, checklist *Checklist) error {
	if checklist.ID == "" {
		checklist.ID = uuid.NewString()
	}
	now := s.now()
	checklist.CreatedAt, checklist.UpdatedAt = now, now
	for i := range checklist.Items {
		item := &checklist.Items[i]
		item.ID = uuid.NewString()
		item.ChecklistID = checklist.ID
		item.Position = i
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := s.exec(ctx, tx, `
            INSERT INTO checklists (id, user_id, source_message_id, title, description, category,
                points, completed, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			checklist.ID, checklist.UserID, checklist.SourceMessageID, checklist.Title, checklist.Description,
			string(checklist.Category), checklist.Points, checklist.Completed, checklist.CreatedAt, checklist.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert checklist: %w", err)
		}

		for _, item := range checklist.Items {
			_, err := s.exec(ctx, tx, `
                INSERT INTO checklist_items (id, checklist_id, position, text, priority, completed)
                VALUES (?, ?, ?, ?, ?, ?)`,
				item.ID, item.ChecklistID, item.Position, item.Text, string(item.Priority), item.Completed)
			if err != nil {
				return fmt.Errorf("failed to insert checklist item %d: %w", item.Position, err)
			}
		}
		return nil
	})
}

const checklistColumns = `id, user_id, source_message_id, title, description, category, points, completed,
    created_at, updated_at`

func scanChecklist(row interface{ Scan(dest ...any) error }) (*Checklist, error) {
	var c Checklist
	var source sql.NullString
	var category string
	err := row.Scan(&c.ID, &c.UserID, &source, &c.Title, &c.Description, &category, &c.Points,
		&c.Completed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Category = Category(category)
	if !c.Category.Valid() {
		return nil, fmt.Errorf("%w: checklist %s has unknown category %q", ErrDecode, c.ID, category)
	}
	if source.Valid {
		c.SourceMessageID = &source.String
	}
	c.Items = []ChecklistItem{}
	return &c, nil
}

func scanChecklistItem(row interface{ Scan(dest ...any) error }) (*ChecklistItem, error) {
	var item ChecklistItem
	var priority string
	if err := row.Scan(&item.ID, &item.ChecklistID, &item.Position, &item.Text, &priority, &item.Completed); err != nil {
		return nil, err
	}
	item.Priority = Priority(priority)
	if !item.Priority.Valid() {
		return nil, fmt.Errorf("%w: checklist item %s has unknown priority %q", ErrDecode, item.ID, priority)
	}
	return &item, nil
}

func (s *SQLStore) GetChecklist(ctx context.Context, userID, checklistID string) (*Checklist, error) {
	c, err := scanChecklist(s.queryRow(ctx, s.db,
		"SELECT "+checklistColumns+" FROM checklists WHERE id = ? AND user_id = ?", checklistID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get checklist: %w", err)
	}

	rows, err := s.query(ctx, s.db, `
        SELECT id, checklist_id, position, text, priority, completed
        FROM checklist_items
        WHERE checklist_id = ?
        ORDER BY position ASC`, checklistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checklist items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanChecklistItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checklist item row: %w", err)
		}
		c.Items = append(c.Items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checklist item rows: %w", err)
	}
	return c, nil
}

func (s *SQLStore) ListChecklists(ctx context.Context, userID string) ([]Checklist, error) {
	rows, err := s.query(ctx, s.db,
		"SELECT "+checklistColumns+" FROM checklists WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checklists: %w", err)
	}

	checklists := []Checklist{}
	index := map[string]int{}
	for rows.Next() {
		c, err := scanChecklist(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan checklist row: %w", err)
		}
		index[c.ID] = len(checklists)
		checklists = append(checklists, *c)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating checklist rows: %w", err)
	}
	if len(checklists) == 0 {
		return checklists, nil
	}

	itemRows, err := s.query(ctx, s.db, `
        SELECT i.id, i.checklist_id, i.position, i.text, i.priority, i.completed
        FROM checklist_items i
        JOIN checklists c ON c.id = i.checklist_id
        WHERE c.user_id = ?
        ORDER BY i.checklist_id, i.position ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checklist items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item, err := scanChecklistItem(itemRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checklist item row: %w", err)
		}
		if i, ok := index[item.ChecklistID]; ok {
			checklists[i].Items = append(checklists[i].Items, *item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checklist item rows: %w", err)
	}
	return checklists, nil
}

func (s *SQLStore) SetChecklistItemCompleted(ctx context.Context, checklistID, itemID string, completed bool) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, "UPDATE checklist_items SET completed = ? WHERE id = ? AND checklist_id = ?",
			completed, itemID, checklistID)
		if err != nil {
			return fmt.Errorf("failed to update checklist item: %w", err)
		}
		if err := requireAffected(res, "checklist item "+itemID); err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, "UPDATE checklists SET updated_at = ? WHERE id = ?", s.now(), checklistID)
		if err != nil {
			return fmt.Errorf("failed to touch checklist: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) SetChecklistCompleted(ctx context.Context, checklistID string, completed bool) error {
	res, err := s.exec(ctx, s.db, "UPDATE checklists SET completed = ?, updated_at = ? WHERE id = ?",
		completed, s.now(), checklistID)
	if err != nil {
		return fmt.Errorf("failed to update checklist: %w", err)
	}
	return requireAffected(res, "checklist "+checklistID)
}

func (s *SQLStore) DeleteChecklist(ctx context.Context, userID, checklistID string) error {
	res, err := s.exec(ctx, s.db, "DELETE FROM checklists WHERE id = ? AND user_id = ?", checklistID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete checklist: %w", err)
	}
	return requireAffected(res, "checklist "+checklistID)
}
