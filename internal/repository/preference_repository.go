package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kivik/kivik/v4"

	"course-planner-sync/internal/domain"
)

// StoredPreferences is the server's copy of a user's preferences.
type StoredPreferences struct {
	UserID       string             `json:"user_id"`
	Preferences  domain.Preferences `json:"preferences"`
	LastModified time.Time          `json:"last_modified"`
}

type PreferenceRepository interface {
	// Get fails with domain.ErrNotFound when the user never stored preferences.
	Get(ctx context.Context, userID string) (*StoredPreferences, error)
	Put(ctx context.Context, prefs *StoredPreferences) error
}

type preferenceDoc struct {
	DocID   string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	StoredPreferences
}

type preferenceRepository struct {
	db *kivik.DB
}

func NewPreferenceRepository(client *kivik.Client, dbName string) PreferenceRepository {
	return &preferenceRepository{
		db: client.DB(dbName),
	}
}

func preferenceDocID(userID string) string {
	return fmt.Sprintf("preferences:%s", userID)
}

func (r *preferenceRepository) Get(ctx context.Context, userID string) (*StoredPreferences, error) {
	var doc preferenceDoc
	if err := getDoc(ctx, r.db, preferenceDocID(userID), &doc); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("preferences for %s: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	return &doc.StoredPreferences, nil
}

func (r *preferenceRepository) Put(ctx context.Context, prefs *StoredPreferences) error {
	docID := preferenceDocID(prefs.UserID)

	rev, err := currentRev(ctx, r.db, docID)
	if err != nil {
		return fmt.Errorf("failed to get preferences revision: %w", err)
	}

	doc := preferenceDoc{DocID: docID, Rev: rev, DocType: docTypePreference, StoredPreferences: *prefs}
	if _, err := r.db.Put(ctx, docID, doc); err != nil {
		return fmt.Errorf("failed to store preferences: %w", err)
	}

	return nil
}
