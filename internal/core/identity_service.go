package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/preppal/prep-assistant/internal/store"
)

// OnboardingFields is what the onboarding form collects.
type OnboardingFields struct {
	DisplayName  string          `json:"display_name"`
	Location     string          `json:"location"`
	Household    store.Household `json:"household"`
	MedicalNotes []string        `json:"medical_notes"`
}

func (f OnboardingFields) profile() store.Profile {
	notes := make([]string, 0, len(f.MedicalNotes))
	for _, n := range f.MedicalNotes {
		if n = strings.TrimSpace(n); n != "" {
			notes = append(notes, n)
		}
	}
	return store.Profile{
		DisplayName:  strings.TrimSpace(f.DisplayName),
		Location:     strings.TrimSpace(f.Location),
		Household:    f.Household,
		MedicalNotes: notes,
	}
}

// IdentityResolver maps an identity-provider subject to a user record. Every
// call goes to the repository.
type IdentityResolver struct {
	repo store.Repository
}

func NewIdentityResolver(repo store.Repository) *IdentityResolver {
	return &IdentityResolver{repo: repo}
}

// Resolve returns ErrNotFound when the subject has no record yet; callers
// route that to onboarding.
func (r *IdentityResolver) Resolve(ctx context.Context, externalID string) (*store.User, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is empty", ErrInvalidInput)
	}
	user, err := r.repo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, persistenceError("resolve user", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

func (r *IdentityResolver) CreateFromOnboarding(ctx context.Context, externalID, email string, fields OnboardingFields) (*store.User, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is empty", ErrInvalidInput)
	}
	profile := fields.profile()
	if profile.DisplayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}

	existing, err := r.Resolve(ctx, externalID)
	switch {
	case err == nil && existing != nil:
		return nil, ErrAlreadyExists
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}

	user := &store.User{
		ExternalID: externalID,
		Email:      strings.TrimSpace(email),
		Profile:    profile,
	}
	if err := r.repo.CreateUser(ctx, user); err != nil {
		return nil, persistenceError("create user", err)
	}
	log.Printf("Onboarded user %s (external id %s)", user.ID, externalID)
	return user, nil
}

// UpdateProfile replaces the editable profile fields.
func (r *IdentityResolver) UpdateProfile(ctx context.Context, userID string, fields OnboardingFields) (*store.User, error) {
	profile := fields.profile()
	if profile.DisplayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}
	user, err := r.repo.UpdateUserProfile(ctx, userID, profile)
	if err != nil {
		return nil, persistenceError("update profile", err)
	}
	return user, nil
}
