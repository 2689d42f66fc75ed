package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"

	"course-planner-sync/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

type userDoc struct {
	DocID   string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.User
}

type userRepository struct {
	db *kivik.DB
}

func NewUserRepository(client *kivik.Client, dbName string) UserRepository {
	return &userRepository{
		db: client.DB(dbName),
	}
}

func userDocID(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	doc := userDoc{DocID: userDocID(user.ID), DocType: docTypeUser, User: *user}

	if _, err := r.db.Put(ctx, doc.DocID, doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return fmt.Errorf("user %s already exists", user.ID)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var doc userDoc
	if err := getDoc(ctx, r.db, userDocID(id), &doc); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return &doc.User, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	docID := userDocID(user.ID)

	rev, err := currentRev(ctx, r.db, docID)
	if err != nil {
		return fmt.Errorf("failed to get user for update: %w", err)
	}
	if rev == "" {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrNotFound)
	}

	doc := userDoc{DocID: docID, Rev: rev, DocType: docTypeUser, User: *user}
	if _, err := r.db.Put(ctx, docID, doc); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

func (r *userRepository) exists(ctx context.Context, field, value string) (bool, error) {
	_, err := r.findOne(ctx, field, value)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *userRepository) findOne(ctx context.Context, field, value string) (*domain.User, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": docTypeUser,
			field:      value,
		},
		"limit": 1,
	}

	var user *domain.User
	err := find(ctx, r.db, query, func(rows *kivik.ResultSet) error {
		var doc userDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return fmt.Errorf("failed to scan user: %w", err)
		}
		user = &doc.User
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query user by %s: %w", field, err)
	}
	if user == nil {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}

	return user, nil
}
