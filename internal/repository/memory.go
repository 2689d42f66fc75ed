package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"course-planner-sync/internal/domain"
)

// MemoryStore backs every repository with process memory. It is selected with
// DB_DRIVER=memory for local development and drives the handler tests.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	preferences map[string]StoredPreferences
	courses     map[string]domain.Course
	schedules   map[string]StoredSchedule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		preferences: make(map[string]StoredPreferences),
		courses:     make(map[string]domain.Course),
		schedules:   make(map[string]StoredSchedule),
	}
}

func (m *MemoryStore) Users() UserRepository             { return memoryUsers{m} }
func (m *MemoryStore) Preferences() PreferenceRepository { return memoryPreferences{m} }
func (m *MemoryStore) Courses() CourseRepository         { return memoryCourses{m} }
func (m *MemoryStore) Schedules() ScheduleRepository     { return memorySchedules{m} }

type memoryUsers struct{ m *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[user.ID]; ok {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	r.m.users[user.ID] = *user
	return nil
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.findBy(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r memoryUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return &u, nil
}

func (r memoryUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.findBy(func(u domain.User) bool { return u.Username == username })
}

func (r memoryUsers) Update(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[user.ID]; !ok {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrNotFound)
	}
	r.m.users[user.ID] = *user
	return nil
}

func (r memoryUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	return err == nil, nil
}

func (r memoryUsers) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByUsername(ctx, username)
	return err == nil, nil
}

func (r memoryUsers) findBy(match func(domain.User) bool) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, u := range r.m.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
}

type memoryPreferences struct{ m *MemoryStore }

func (r memoryPreferences) Get(_ context.Context, userID string) (*StoredPreferences, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	p, ok := r.m.preferences[userID]
	if !ok {
		return nil, fmt.Errorf("preferences for %s: %w", userID, domain.ErrNotFound)
	}
	return &p, nil
}

func (r memoryPreferences) Put(_ context.Context, prefs *StoredPreferences) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.preferences[prefs.UserID] = *prefs
	return nil
}

type memoryCourses struct{ m *MemoryStore }

func (r memoryCourses) Upsert(_ context.Context, course *domain.Course) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.courses[course.ID] = *course
	return nil
}

func (r memoryCourses) FindByID(_ context.Context, id string) (*domain.Course, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	c, ok := r.m.courses[id]
	if !ok {
		return nil, fmt.Errorf("course %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (r memoryCourses) List(_ context.Context, filter CourseFilter) ([]domain.Course, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []domain.Course
	for _, c := range r.m.courses {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	sortCourses(out)
	return out, nil
}

func (r memoryCourses) Count(_ context.Context) (int, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return len(r.m.courses), nil
}

type memorySchedules struct{ m *MemoryStore }

func (r memorySchedules) Create(_ context.Context, schedule *StoredSchedule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.schedules[schedule.ID]; ok {
		return fmt.Errorf("schedule %s already exists", schedule.ID)
	}
	r.m.schedules[schedule.ID] = copySchedule(*schedule)
	return nil
}

func (r memorySchedules) FindByID(_ context.Context, id string) (*StoredSchedule, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	s, ok := r.m.schedules[id]
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}
	s = copySchedule(s)
	return &s, nil
}

func (r memorySchedules) FindByTerm(_ context.Context, ownerID string, semester domain.Semester, year int) (*StoredSchedule, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, s := range r.m.schedules {
		if s.OwnerID == ownerID && s.Semester == semester && s.Year == year {
			s = copySchedule(s)
			return &s, nil
		}
	}
	return nil, fmt.Errorf("schedule for %s %d: %w", semester, year, domain.ErrNotFound)
}

func (r memorySchedules) ListByOwner(_ context.Context, ownerID string) ([]*StoredSchedule, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []*StoredSchedule
	for _, s := range r.m.schedules {
		if s.OwnerID == ownerID {
			s = copySchedule(s)
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memorySchedules) Update(_ context.Context, schedule *StoredSchedule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.schedules[schedule.ID]; !ok {
		return fmt.Errorf("schedule %s: %w", schedule.ID, domain.ErrNotFound)
	}
	r.m.schedules[schedule.ID] = copySchedule(*schedule)
	return nil
}

func (r memorySchedules) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.schedules[id]; !ok {
		return fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}
	delete(r.m.schedules, id)
	return nil
}

func copySchedule(s StoredSchedule) StoredSchedule {
	s.CourseIDs = append([]string(nil), s.CourseIDs...)
	return s
}
