package planner

import (
	"context"
	"sync"

	"course-planner-sync/internal/conflict"
	"course-planner-sync/internal/domain"
)

type mockPreferenceStore struct {
	mu      sync.Mutex
	record  *domain.PreferenceRecord
	getErr  error
	putErr  error
	puts    []domain.PreferenceRecord
	gate    chan struct{}
	started chan struct{}
}

func newMockPreferenceStore() *mockPreferenceStore {
	return &mockPreferenceStore{}
}

// hold makes GetPreferences block until the returned release func is called.
func (m *mockPreferenceStore) hold() (started <-chan struct{}, release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	m.started = make(chan struct{}, 1)
	gate := m.gate
	return m.started, func() { close(gate) }
}

func (m *mockPreferenceStore) GetPreferences(ctx context.Context, userID string) (*domain.PreferenceRecord, error) {
	m.mu.Lock()
	gate, started := m.gate, m.started
	m.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.record == nil {
		return nil, nil
	}
	rec := *m.record
	return &rec, nil
}

func (m *mockPreferenceStore) PutPreferences(ctx context.Context, userID string, rec domain.PreferenceRecord) (*domain.PreferenceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.puts = append(m.puts, rec)
	stored := rec
	stored.Origin = domain.OriginRemote
	m.record = &stored
	return &stored, nil
}

func (m *mockPreferenceStore) lastPut() (domain.PreferenceRecord, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.puts) == 0 {
		return domain.PreferenceRecord{}, 0
	}
	return m.puts[len(m.puts)-1], len(m.puts)
}

type mockUserStore struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	getErr error
}

func (m *mockUserStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserStore) UpdateUser(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if req.Major != nil {
		u.Major = *req.Major
	}
	copied := *u
	return &copied, nil
}

type mockCourseLister struct {
	mu      sync.Mutex
	courses []domain.Course
	calls   int
	err     error
}

func (m *mockCourseLister) ListCourses(ctx context.Context) ([]domain.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.Course(nil), m.courses...), nil
}

// mockScheduleStore enforces conflicts the way the backend does.
type mockScheduleStore struct {
	mu        sync.Mutex
	courses   map[string]domain.Course
	schedules map[string]*domain.Schedule
	err       error
	updates   int
}

func newMockScheduleStore(courses []domain.Course) *mockScheduleStore {
	byID := make(map[string]domain.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	return &mockScheduleStore{courses: byID, schedules: make(map[string]*domain.Schedule)}
}

func (m *mockScheduleStore) ListSchedules(ctx context.Context, userID string) ([]domain.ScheduleSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.ScheduleSummary
	for _, s := range m.schedules {
		if s.OwnerID == userID {
			out = append(out, s.Summary())
		}
	}
	return out, nil
}

func (m *mockScheduleStore) GetSchedule(ctx context.Context, scheduleID string) (*domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.schedules[scheduleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *s
	copied.Courses = append([]domain.Course(nil), s.Courses...)
	return &copied, nil
}

func (m *mockScheduleStore) GetWeeklySchedule(ctx context.Context, scheduleID string) (*domain.WeeklySchedule, error) {
	s, err := m.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	week := s.Weekly()
	return &week, nil
}

func (m *mockScheduleStore) UpdateSchedule(ctx context.Context, scheduleID string, req domain.UpdateScheduleRequest) (*domain.UpdateScheduleResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.schedules[scheduleID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	courses := make([]domain.Course, 0, len(req.CourseIDs))
	for _, id := range req.CourseIDs {
		c, ok := m.courses[id]
		if !ok {
			return nil, &domain.UnknownCourseError{IDs: []string{id}}
		}
		courses = append(courses, c)
	}

	conflicts := conflict.Detect(courses, conflict.PolicyInterval)
	if len(conflicts) > 0 && !req.ForceUpdate {
		return nil, &domain.ConflictError{Conflicts: conflicts}
	}

	s.Courses = courses
	s.TotalCredits = s.Credits()
	copied := *s
	resp := &domain.UpdateScheduleResponse{Schedule: &copied}
	if len(conflicts) > 0 {
		resp.Conflicts = conflicts
	}
	return resp, nil
}

func (m *mockScheduleStore) DeleteSchedule(ctx context.Context, scheduleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.schedules[scheduleID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.schedules, scheduleID)
	return nil
}

func (m *mockScheduleStore) GenerateSchedule(ctx context.Context, req domain.GenerateScheduleRequest) (*domain.GenerateScheduleResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := &domain.Schedule{ID: "generated", OwnerID: req.UserID, Semester: req.Semester, Year: req.Year}
	m.schedules[s.ID] = s
	copied := *s
	return &domain.GenerateScheduleResponse{Schedule: &copied, Created: true}, nil
}

func (m *mockScheduleStore) stored(scheduleID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedules[scheduleID].CourseIDs()
}

func course(id, code string, credits int, slots ...domain.TimeSlot) domain.Course {
	return domain.Course{ID: id, Code: code, Credits: credits, Department: "Computer Science", TimeSlots: slots}
}

func slot(day domain.Day, startH, startM, endH, endM int) domain.TimeSlot {
	return domain.TimeSlot{Day: day, Start: domain.Clock(startH, startM), End: domain.Clock(endH, endM)}
}
