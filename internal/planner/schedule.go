package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"course-planner-sync/internal/conflict"
	"course-planner-sync/internal/domain"
)

// RejectedError is returned when the remote store refuses a schedule mutation.
// Conflicts is the remote store's verdict, possibly empty; Advisory is what the local
// check predicted.
type RejectedError struct {
	Conflicts []domain.ConflictRecord
	Advisory  []domain.ConflictRecord
	cause     *domain.ConflictError
}

func (e *RejectedError) Error() string {
	if len(e.Conflicts) == 0 {
		return "schedule update rejected by the remote store"
	}
	pairs := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		pairs = append(pairs, c.String())
	}
	return fmt.Sprintf("schedule update rejected: %s", strings.Join(pairs, "; "))
}

func (e *RejectedError) Unwrap() error {
	return e.cause
}

// ScheduleMutator changes a schedule's course set. The remote store is the only writer
// of schedules; the local conflict check is advisory.
type ScheduleMutator struct {
	catalog  Catalog
	store    ScheduleStore
	detector *conflict.Detector
	log      *zap.Logger

	mu        sync.RWMutex
	schedules map[string]domain.Schedule
}

func NewScheduleMutator(catalog Catalog, store ScheduleStore, detector *conflict.Detector, log *zap.Logger) *ScheduleMutator {
	if detector == nil {
		detector = conflict.NewDetector(conflict.PolicyInterval)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ScheduleMutator{
		catalog:   catalog,
		store:     store,
		detector:  detector,
		log:       log,
		schedules: make(map[string]domain.Schedule),
	}
}

// Preview reports the collisions the given course set would have, without submitting it.
func (m *ScheduleMutator) Preview(ctx context.Context, courseIDs []string) ([]domain.ConflictRecord, error) {
	courses, err := m.catalog.Lookup(ctx, dedupe(courseIDs))
	if err != nil {
		return nil, err
	}
	return m.detector.Detect(courses), nil
}

// Update replaces the schedule's course set. Without force a collision makes the remote
// store refuse the change and Update returns *RejectedError; the schedule is unchanged.
func (m *ScheduleMutator) Update(ctx context.Context, scheduleID string, courseIDs []string, force bool) (*domain.Schedule, error) {
	courses, err := m.catalog.Lookup(ctx, dedupe(courseIDs))
	if err != nil {
		return nil, err
	}

	advisory := m.detector.Detect(courses)
	if len(advisory) > 0 {
		m.log.Info("candidate schedule has conflicts",
			zap.String("schedule_id", scheduleID),
			zap.Int("conflicts", len(advisory)),
			zap.Bool("force", force),
		)
	}

	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}

	resp, err := m.store.UpdateSchedule(ctx, scheduleID, domain.UpdateScheduleRequest{
		CourseIDs:   dedupe(ids),
		ForceUpdate: force,
	})
	if err != nil {
		var conflictErr *domain.ConflictError
		if errors.As(err, &conflictErr) {
			return nil, &RejectedError{Conflicts: conflictErr.Conflicts, Advisory: advisory, cause: conflictErr}
		}
		return nil, fmt.Errorf("failed to update schedule %s: %w", scheduleID, err)
	}
	if resp.Schedule == nil {
		return nil, fmt.Errorf("failed to update schedule %s: empty response", scheduleID)
	}

	if len(resp.Conflicts) > 0 {
		m.log.Warn("schedule saved with conflicts",
			zap.String("schedule_id", scheduleID),
			zap.Int("conflicts", len(resp.Conflicts)),
		)
	}

	m.remember(*resp.Schedule)
	return resp.Schedule, nil
}

// Add submits the current course set plus courseID.
func (m *ScheduleMutator) Add(ctx context.Context, scheduleID, courseID string, force bool) (*domain.Schedule, error) {
	current, err := m.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	return m.Update(ctx, scheduleID, append(current.CourseIDs(), courseID), force)
}

// Remove submits the current course set minus courseID. It goes through the same
// conflict check as any other update.
func (m *ScheduleMutator) Remove(ctx context.Context, scheduleID, courseID string, force bool) (*domain.Schedule, error) {
	current, err := m.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	remaining := make([]string, 0, len(current.Courses))
	found := false
	for _, c := range current.Courses {
		if c.ID == courseID || strings.EqualFold(c.Code, courseID) {
			found = true
			continue
		}
		remaining = append(remaining, c.ID)
	}
	if !found {
		return nil, fmt.Errorf("course %s is not in schedule %s: %w", courseID, scheduleID, domain.ErrNotFound)
	}

	return m.Update(ctx, scheduleID, remaining, force)
}

// Get fetches the schedule from the remote store and refreshes the cached copy.
func (m *ScheduleMutator) Get(ctx context.Context, scheduleID string) (*domain.Schedule, error) {
	schedule, err := m.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule %s: %w", scheduleID, err)
	}

	m.remember(*schedule)
	return schedule, nil
}

// Weekly fetches the per-day layout of a schedule's meetings.
func (m *ScheduleMutator) Weekly(ctx context.Context, scheduleID string) (*domain.WeeklySchedule, error) {
	week, err := m.store.GetWeeklySchedule(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly schedule %s: %w", scheduleID, err)
	}
	return week, nil
}

// Cached returns the last schedule value seen from the remote store.
func (m *ScheduleMutator) Cached(scheduleID string) (domain.Schedule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[scheduleID]
	return s, ok
}

func (m *ScheduleMutator) List(ctx context.Context, userID string) ([]domain.ScheduleSummary, error) {
	summaries, err := m.store.ListSchedules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return summaries, nil
}

func (m *ScheduleMutator) Delete(ctx context.Context, scheduleID string) error {
	if err := m.store.DeleteSchedule(ctx, scheduleID); err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", scheduleID, err)
	}

	m.mu.Lock()
	delete(m.schedules, scheduleID)
	m.mu.Unlock()

	return nil
}

// Generate asks the remote store to build a schedule from the user's preferences.
func (m *ScheduleMutator) Generate(ctx context.Context, req domain.GenerateScheduleRequest) (*domain.GenerateScheduleResponse, error) {
	resp, err := m.store.GenerateSchedule(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schedule: %w", err)
	}

	if resp.Schedule != nil {
		m.remember(*resp.Schedule)
	}
	return resp, nil
}

func (m *ScheduleMutator) remember(s domain.Schedule) {
	m.mu.Lock()
	m.schedules[s.ID] = s
	m.mu.Unlock()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
