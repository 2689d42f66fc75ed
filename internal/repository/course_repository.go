package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-kivik/kivik/v4"

	"course-planner-sync/internal/domain"
)

type CourseFilter struct {
	Department string
	Semester   domain.Semester
	Year       int
}

func (f CourseFilter) Matches(c domain.Course) bool {
	if f.Department != "" && c.Department != f.Department {
		return false
	}
	if f.Semester != "" && c.Semester != "" && c.Semester != f.Semester {
		return false
	}
	if f.Year != 0 && c.Year != 0 && c.Year != f.Year {
		return false
	}
	return true
}

type CourseRepository interface {
	Upsert(ctx context.Context, course *domain.Course) error
	FindByID(ctx context.Context, id string) (*domain.Course, error)
	List(ctx context.Context, filter CourseFilter) ([]domain.Course, error)
	Count(ctx context.Context) (int, error)
}

type courseDoc struct {
	DocID   string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.Course
}

type courseRepository struct {
	db *kivik.DB
}

func NewCourseRepository(client *kivik.Client, dbName string) CourseRepository {
	return &courseRepository{
		db: client.DB(dbName),
	}
}

func courseDocID(id string) string {
	return fmt.Sprintf("course:%s", id)
}

func (r *courseRepository) Upsert(ctx context.Context, course *domain.Course) error {
	docID := courseDocID(course.ID)

	rev, err := currentRev(ctx, r.db, docID)
	if err != nil {
		return fmt.Errorf("failed to get course revision: %w", err)
	}

	doc := courseDoc{DocID: docID, Rev: rev, DocType: docTypeCourse, Course: *course}
	if _, err := r.db.Put(ctx, docID, doc); err != nil {
		return fmt.Errorf("failed to store course: %w", err)
	}

	return nil
}

func (r *courseRepository) FindByID(ctx context.Context, id string) (*domain.Course, error) {
	var doc courseDoc
	if err := getDoc(ctx, r.db, courseDocID(id), &doc); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("course %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find course: %w", err)
	}

	return &doc.Course, nil
}

func (r *courseRepository) List(ctx context.Context, filter CourseFilter) ([]domain.Course, error) {
	selector := map[string]interface{}{
		"doc_type": docTypeCourse,
	}
	if filter.Department != "" {
		selector["department"] = filter.Department
	}

	query := map[string]interface{}{
		"selector": selector,
	}

	var courses []domain.Course
	err := find(ctx, r.db, query, func(rows *kivik.ResultSet) error {
		var doc courseDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return fmt.Errorf("failed to scan course: %w", err)
		}
		if filter.Matches(doc.Course) {
			courses = append(courses, doc.Course)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	sortCourses(courses)
	return courses, nil
}

func (r *courseRepository) Count(ctx context.Context) (int, error) {
	courses, err := r.List(ctx, CourseFilter{})
	if err != nil {
		return 0, err
	}
	return len(courses), nil
}

func sortCourses(courses []domain.Course) {
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
}
