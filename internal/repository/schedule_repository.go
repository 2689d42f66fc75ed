package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kivik/kivik/v4"

	"course-planner-sync/internal/domain"
)

// StoredSchedule references courses by id; the service layer resolves them.
type StoredSchedule struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"user_id"`
	Semester  domain.Semester `json:"semester"`
	Year      int             `json:"year"`
	CourseIDs []string        `json:"course_ids"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *StoredSchedule) error
	FindByID(ctx context.Context, id string) (*StoredSchedule, error)
	FindByTerm(ctx context.Context, ownerID string, semester domain.Semester, year int) (*StoredSchedule, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*StoredSchedule, error)
	Update(ctx context.Context, schedule *StoredSchedule) error
	Delete(ctx context.Context, id string) error
}

type scheduleDoc struct {
	DocID   string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	StoredSchedule
}

type scheduleRepository struct {
	db *kivik.DB
}

func NewScheduleRepository(client *kivik.Client, dbName string) ScheduleRepository {
	return &scheduleRepository{
		db: client.DB(dbName),
	}
}

func scheduleDocID(id string) string {
	return fmt.Sprintf("schedule:%s", id)
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *StoredSchedule) error {
	doc := scheduleDoc{DocID: scheduleDocID(schedule.ID), DocType: docTypeSchedule, StoredSchedule: *schedule}

	if _, err := r.db.Put(ctx, doc.DocID, doc); err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	return nil
}

func (r *scheduleRepository) FindByID(ctx context.Context, id string) (*StoredSchedule, error) {
	var doc scheduleDoc
	if err := getDoc(ctx, r.db, scheduleDocID(id), &doc); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find schedule: %w", err)
	}

	return &doc.StoredSchedule, nil
}

func (r *scheduleRepository) FindByTerm(ctx context.Context, ownerID string, semester domain.Semester, year int) (*StoredSchedule, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": docTypeSchedule,
			"user_id":  ownerID,
			"semester": semester,
			"year":     year,
		},
		"limit": 1,
	}

	schedules, err := r.query(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return nil, fmt.Errorf("schedule for %s %d: %w", semester, year, domain.ErrNotFound)
	}

	return schedules[0], nil
}

func (r *scheduleRepository) ListByOwner(ctx context.Context, ownerID string) ([]*StoredSchedule, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": docTypeSchedule,
			"user_id":  ownerID,
		},
	}

	return r.query(ctx, query)
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *StoredSchedule) error {
	docID := scheduleDocID(schedule.ID)

	rev, err := currentRev(ctx, r.db, docID)
	if err != nil {
		return fmt.Errorf("failed to get schedule for update: %w", err)
	}
	if rev == "" {
		return fmt.Errorf("schedule %s: %w", schedule.ID, domain.ErrNotFound)
	}

	doc := scheduleDoc{DocID: docID, Rev: rev, DocType: docTypeSchedule, StoredSchedule: *schedule}
	if _, err := r.db.Put(ctx, docID, doc); err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}

	return nil
}

func (r *scheduleRepository) Delete(ctx context.Context, id string) error {
	docID := scheduleDocID(id)

	rev, err := currentRev(ctx, r.db, docID)
	if err != nil {
		return fmt.Errorf("failed to get schedule for delete: %w", err)
	}
	if rev == "" {
		return fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}

	if _, err := r.db.Delete(ctx, docID, rev); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	return nil
}

func (r *scheduleRepository) query(ctx context.Context, query map[string]interface{}) ([]*StoredSchedule, error) {
	var schedules []*StoredSchedule
	err := find(ctx, r.db, query, func(rows *kivik.ResultSet) error {
		var doc scheduleDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return fmt.Errorf("failed to scan schedule: %w", err)
		}
		s := doc.StoredSchedule
		schedules = append(schedules, &s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}

	return schedules, nil
}
