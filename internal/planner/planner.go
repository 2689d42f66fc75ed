// Package planner keeps a device's view of a student's planner consistent with the
// remote store: preferences and profile reconciliation, course lookup and schedule
// mutation with conflict checks.
package planner

import (
	"context"
	"sync"

	"course-planner-sync/internal/cache"
	"course-planner-sync/internal/domain"
)

// LocalCache is the per-user durable store. *cache.Cache implements it.
type LocalCache interface {
	Get(ctx context.Context, userID string, kind cache.Kind, dst interface{}) bool
	Put(ctx context.Context, userID string, kind cache.Kind, value interface{})
	Remove(ctx context.Context, userID string, kind cache.Kind)
}

type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (*domain.PreferenceRecord, error)
	PutPreferences(ctx context.Context, userID string, rec domain.PreferenceRecord) (*domain.PreferenceRecord, error)
}

type UserStore interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpdateUser(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
}

type ScheduleStore interface {
	ListSchedules(ctx context.Context, userID string) ([]domain.ScheduleSummary, error)
	GetSchedule(ctx context.Context, scheduleID string) (*domain.Schedule, error)
	GetWeeklySchedule(ctx context.Context, scheduleID string) (*domain.WeeklySchedule, error)
	UpdateSchedule(ctx context.Context, scheduleID string, req domain.UpdateScheduleRequest) (*domain.UpdateScheduleResponse, error)
	DeleteSchedule(ctx context.Context, scheduleID string) error
	GenerateSchedule(ctx context.Context, req domain.GenerateScheduleRequest) (*domain.GenerateScheduleResponse, error)
}

type CourseLister interface {
	ListCourses(ctx context.Context) ([]domain.Course, error)
}

// PendingLoad is the result of a load whose remote round trip may still be running.
// The cached value is available at once; the reconciled one once Done is closed.
type PendingLoad[T any] struct {
	local    T
	hasLocal bool

	done   chan struct{}
	once   sync.Once
	result T
	err    error
}

func newPendingLoad[T any](local T, hasLocal bool) *PendingLoad[T] {
	return &PendingLoad[T]{
		local:    local,
		hasLocal: hasLocal,
		done:     make(chan struct{}),
	}
}

func (p *PendingLoad[T]) complete(result T, err error) {
	p.once.Do(func() {
		p.result = result
		p.err = err
		close(p.done)
	})
}

// Local returns the cached value read when the load started.
func (p *PendingLoad[T]) Local() (T, bool) {
	return p.local, p.hasLocal
}

func (p *PendingLoad[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until reconciliation finishes or ctx ends. Giving up on the wait does not
// stop reconciliation; its outcome still reaches the cache.
func (p *PendingLoad[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
