package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var _ Repository = (*SQLStore)(nil)

const userColumns = `id, external_id, email, display_name, location, has_children, has_elderly,
    has_pets, has_disability, medical_notes, points, level, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	var user User
	var notes string
	err := row.Scan(&user.ID, &user.ExternalID, &user.Email, &user.DisplayName, &user.Location,
		&user.Household.HasChildren, &user.Household.HasElderly, &user.Household.HasPets,
		&user.Household.HasDisability, &notes, &user.Points, &user.Level, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.MedicalNotes, err = decodeStringList(notes)
	if err != nil {
		return nil, fmt.Errorf("%w: user %s medical_notes: %v", ErrDecode, user.ID, err)
	}
	return &user, nil
}

func (s *SQLStore) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.getUser(ctx, s.db, "SELECT "+userColumns+" FROM users WHERE id = ?", userID)
}

func (s *SQLStore) GetUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	return s.getUser(ctx, s.db, "SELECT "+userColumns+" FROM users WHERE external_id = ?", externalID)
}

func (s *SQLStore) getUser(ctx context.Context, q querier, query string, args ...any) (*User, error) {
	user, err := scanUser(s.queryRow(ctx, q, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	user.Points = 0
	user.Level = LevelForPoints(0)
	if user.MedicalNotes == nil {
		user.MedicalNotes = []string{}
	}

	notes, err := encodeJSON(user.MedicalNotes)
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, s.db, `
        INSERT INTO users (`+userColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.ExternalID, user.Email, user.DisplayName, user.Location,
		user.Household.HasChildren, user.Household.HasElderly, user.Household.HasPets,
		user.Household.HasDisability, notes, user.Points, user.Level, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.ExternalID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateUserProfile(ctx context.Context, userID string, profile Profile) (*User, error) {
	if profile.MedicalNotes == nil {
		profile.MedicalNotes = []string{}
	}
	notes, err := encodeJSON(profile.MedicalNotes)
	if err != nil {
		return nil, err
	}

	res, err := s.exec(ctx, s.db, `
        UPDATE users
        SET display_name = ?, location = ?, has_children = ?, has_elderly = ?, has_pets = ?,
            has_disability = ?, medical_notes = ?, updated_at = ?
        WHERE id = ?`,
		profile.DisplayName, profile.Location, profile.Household.HasChildren, profile.Household.HasElderly,
		profile.Household.HasPets, profile.Household.HasDisability, notes, s.now(), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}
	if err := requireAffected(res, "user "+userID); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func (s *SQLStore) AdjustUserPoints(ctx context.Context, userID string, delta int) (*User, error) {
	var updated *User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var points int
		err := s.queryRow(ctx, tx, "SELECT points FROM users WHERE id = ?"+s.dialect.forUpdate, userID).Scan(&points)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("user %s: %w", userID, ErrNotFound)
			}
			return fmt.Errorf("failed to read user points: %w", err)
		}

		points += delta
		if points < 0 {
			points = 0
		}
		_, err = s.exec(ctx, tx, "UPDATE users SET points = ?, level = ?, updated_at = ? WHERE id = ?",
			points, LevelForPoints(points), s.now(), userID)
		if err != nil {
			return fmt.Errorf("failed to update user points: %w", err)
		}

		updated, err = s.getUser(ctx, tx, "SELECT "+userColumns+" FROM users WHERE id = ?", userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
