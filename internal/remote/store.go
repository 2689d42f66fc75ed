// Package remote is the boundary to the authoritative planner backend.
package remote

import (
	"context"

	"course-planner-sync/internal/domain"
)

// Store is the authoritative backend as seen from a device. Implementations report
// network and server failures as domain.ErrRemoteUnavailable.
type Store interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpdateUser(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)

	// GetPreferences returns nil without error when the user has no stored preferences.
	GetPreferences(ctx context.Context, userID string) (*domain.PreferenceRecord, error)
	PutPreferences(ctx context.Context, userID string, rec domain.PreferenceRecord) (*domain.PreferenceRecord, error)

	ListSchedules(ctx context.Context, userID string) ([]domain.ScheduleSummary, error)
	GetSchedule(ctx context.Context, scheduleID string) (*domain.Schedule, error)
	GetWeeklySchedule(ctx context.Context, scheduleID string) (*domain.WeeklySchedule, error)
	// UpdateSchedule fails with *domain.ConflictError when the backend refuses the course set.
	UpdateSchedule(ctx context.Context, scheduleID string, req domain.UpdateScheduleRequest) (*domain.UpdateScheduleResponse, error)
	DeleteSchedule(ctx context.Context, scheduleID string) error
	GenerateSchedule(ctx context.Context, req domain.GenerateScheduleRequest) (*domain.GenerateScheduleResponse, error)

	ListCourses(ctx context.Context) ([]domain.Course, error)
}

var _ Store = (*Client)(nil)
