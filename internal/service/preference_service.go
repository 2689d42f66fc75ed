package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"course-planner-sync/internal/domain"
	"course-planner-sync/internal/repository"
)

type PreferenceService struct {
	userRepo repository.UserRepository
	prefRepo repository.PreferenceRepository
	now      func() time.Time
}

func NewPreferenceService(userRepo repository.UserRepository, prefRepo repository.PreferenceRepository) *PreferenceService {
	return &PreferenceService{
		userRepo: userRepo,
		prefRepo: prefRepo,
		now:      time.Now,
	}
}

// Get returns an envelope with nil Preferences when the user never stored any.
func (s *PreferenceService) Get(ctx context.Context, userID string) (*domain.PreferencesEnvelope, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	stored, err := s.prefRepo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.PreferencesEnvelope{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	return envelope(stored), nil
}

// Put replaces the stored payload. The client's timestamp is kept when supplied so the
// device and the server agree on it; otherwise the server clock stamps the write.
func (s *PreferenceService) Put(ctx context.Context, userID string, req *domain.UpdatePreferencesRequest) (*domain.PreferencesEnvelope, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	modified := s.now()
	if req.LastModified != nil && !req.LastModified.IsZero() {
		modified = *req.LastModified
	}

	stored := &repository.StoredPreferences{
		UserID:       userID,
		Preferences:  req.Preferences.Normalize(),
		LastModified: modified,
	}
	if err := s.prefRepo.Put(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to store preferences: %w", err)
	}

	return envelope(stored), nil
}

func envelope(stored *repository.StoredPreferences) *domain.PreferencesEnvelope {
	prefs := stored.Preferences
	modified := stored.LastModified
	return &domain.PreferencesEnvelope{
		UserID:       stored.UserID,
		Preferences:  &prefs,
		LastModified: &modified,
	}
}
