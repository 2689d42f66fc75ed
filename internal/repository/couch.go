package repository

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"

	"course-planner-sync/internal/domain"
)

const (
	docTypeUser       = "user"
	docTypePreference = "preferences"
	docTypeCourse     = "course"
	docTypeSchedule   = "schedule"
)

// EnsureDatabase creates dbName when it does not exist yet.
func EnsureDatabase(ctx context.Context, client *kivik.Client, dbName string) (bool, error) {
	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}
	if exists {
		return false, nil
	}

	if err := client.CreateDB(ctx, dbName); err != nil {
		return false, fmt.Errorf("failed to create database: %w", err)
	}
	return true, nil
}

func getDoc(ctx context.Context, db *kivik.DB, docID string, dst interface{}) error {
	if err := db.Get(ctx, docID).ScanDoc(dst); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

// currentRev returns "" when the document does not exist.
func currentRev(ctx context.Context, db *kivik.DB, docID string) (string, error) {
	rev, err := db.GetRev(ctx, docID)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	return rev, nil
}

func find(ctx context.Context, db *kivik.DB, query map[string]interface{}, scan func(rows *kivik.ResultSet) error) error {
	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}
