package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"course-planner-sync/internal/conflict"
	"course-planner-sync/internal/domain"
	"course-planner-sync/internal/repository"
)

const defaultMaxCredits = 18

type ScheduleService struct {
	scheduleRepo repository.ScheduleRepository
	courseRepo   repository.CourseRepository
	prefRepo     repository.PreferenceRepository
	detector     *conflict.Detector
	log          *zap.Logger
	now          func() time.Time
}

func NewScheduleService(
	scheduleRepo repository.ScheduleRepository,
	courseRepo repository.CourseRepository,
	prefRepo repository.PreferenceRepository,
	detector *conflict.Detector,
	log *zap.Logger,
) *ScheduleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScheduleService{
		scheduleRepo: scheduleRepo,
		courseRepo:   courseRepo,
		prefRepo:     prefRepo,
		detector:     detector,
		log:          log,
		now:          time.Now,
	}
}

func (s *ScheduleService) Get(ctx context.Context, requesterID, scheduleID string) (*domain.Schedule, error) {
	stored, err := s.owned(ctx, requesterID, scheduleID)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, stored)
}

// Weekly returns the schedule's meetings laid out per weekday.
func (s *ScheduleService) Weekly(ctx context.Context, requesterID, scheduleID string) (*domain.WeeklySchedule, error) {
	schedule, err := s.Get(ctx, requesterID, scheduleID)
	if err != nil {
		return nil, err
	}
	week := schedule.Weekly()
	return &week, nil
}

func (s *ScheduleService) ListByOwner(ctx context.Context, ownerID string) ([]domain.ScheduleSummary, error) {
	stored, err := s.scheduleRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	summaries := make([]domain.ScheduleSummary, 0, len(stored))
	for _, st := range stored {
		schedule, err := s.expand(ctx, st)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, schedule.Summary())
	}

	return summaries, nil
}

// Update replaces the course set. Colliding courses are refused with *domain.ConflictError
// unless req.ForceUpdate is set, in which case the collisions are returned with a warning.
func (s *ScheduleService) Update(ctx context.Context, requesterID, scheduleID string, req *domain.UpdateScheduleRequest) (*domain.UpdateScheduleResponse, error) {
	stored, err := s.owned(ctx, requesterID, scheduleID)
	if err != nil {
		return nil, err
	}

	courses, err := s.resolve(ctx, dedupe(req.CourseIDs))
	if err != nil {
		return nil, err
	}

	conflicts := s.detector.Detect(courses)
	if len(conflicts) > 0 && !req.ForceUpdate {
		return nil, &domain.ConflictError{Conflicts: conflicts}
	}

	stored.CourseIDs = make([]string, 0, len(courses))
	for _, c := range courses {
		stored.CourseIDs = append(stored.CourseIDs, c.ID)
	}
	stored.UpdatedAt = s.now()

	if err := s.scheduleRepo.Update(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}

	resp := &domain.UpdateScheduleResponse{Schedule: build(stored, courses)}
	if len(conflicts) > 0 {
		resp.Conflicts = conflicts
		resp.Warning = fmt.Sprintf("schedule saved with %d conflict(s)", len(conflicts))
		s.log.Info("schedule saved with conflicts",
			zap.String("schedule_id", scheduleID),
			zap.Int("conflicts", len(conflicts)),
		)
	}

	return resp, nil
}

func (s *ScheduleService) Delete(ctx context.Context, requesterID, scheduleID string) error {
	if _, err := s.owned(ctx, requesterID, scheduleID); err != nil {
		return err
	}
	return s.scheduleRepo.Delete(ctx, scheduleID)
}

type scoredCourse struct {
	course domain.Course
	score  int
}

// Generate fills a schedule for (user, semester, year) greedily by preference score,
// staying within the credit limit and skipping courses that would collide.
func (s *ScheduleService) Generate(ctx context.Context, requesterID string, req *domain.GenerateScheduleRequest) (*domain.GenerateScheduleResponse, error) {
	if req.UserID != requesterID {
		return nil, domain.ErrForbidden
	}

	prefs, err := s.preferences(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	maxCredits := req.MaxCredits
	if maxCredits == 0 {
		maxCredits = prefs.MaxCreditsPerSemester
	}
	if maxCredits == 0 {
		maxCredits = defaultMaxCredits
	}

	available, err := s.courseRepo.List(ctx, repository.CourseFilter{Semester: req.Semester, Year: req.Year})
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	candidates := make([]scoredCourse, 0, len(available))
	for _, c := range available {
		if c.Credits < 1 || prefs.HasCompleted(c.Code) {
			continue
		}
		candidates = append(candidates, scoredCourse{course: c, score: Score(c, prefs)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].course.Code < candidates[j].course.Code
	})

	var selected []domain.Course
	skipped := []domain.SkippedCourse{}
	credits := 0
	for _, cand := range candidates {
		if credits+cand.course.Credits > maxCredits {
			continue
		}
		conflicts := s.detector.Detect(append(append([]domain.Course(nil), selected...), cand.course))
		if len(conflicts) > 0 {
			skipped = append(skipped, domain.SkippedCourse{Code: cand.course.Code, Conflicts: conflicts})
			continue
		}
		selected = append(selected, cand.course)
		credits += cand.course.Credits
	}

	stored, created, err := s.upsertTerm(ctx, req, selected)
	if err != nil {
		return nil, err
	}

	s.log.Info("schedule generated",
		zap.String("user_id", req.UserID),
		zap.String("schedule_id", stored.ID),
		zap.Int("courses", len(selected)),
		zap.Int("credits", credits),
	)

	return &domain.GenerateScheduleResponse{
		Schedule: build(stored, selected),
		Created:  created,
		Skipped:  skipped,
	}, nil
}

// Score ranks a course for generation: preferred departments, lower levels and scheduled
// meeting times rank higher.
func Score(c domain.Course, prefs domain.Preferences) int {
	score := 0

	if prefs.PrefersDepartment(c.Department) {
		score += 20
	}

	switch level := c.Level(); {
	case level == 0:
	case level < 300:
		score += 15
	case level < 400:
		score += 10
	default:
		score += 5
	}

	if len(c.TimeSlots) == 0 {
		return score - 15
	}
	score += 25

	for _, slot := range c.TimeSlots {
		if prefersTime(prefs.PreferredTimes, slot.Start) {
			score += 10
		}
		if prefs.AvoidEarlyMorning && slot.Start < domain.Clock(9, 0) {
			score -= 10
		}
	}

	return score
}

func prefersTime(preferred []string, start domain.ClockTime) bool {
	var window string
	switch {
	case start < domain.Clock(12, 0):
		window = "morning"
	case start < domain.Clock(17, 0):
		window = "afternoon"
	default:
		window = "evening"
	}

	for _, p := range preferred {
		if strings.EqualFold(strings.TrimSpace(p), window) {
			return true
		}
	}
	return false
}

func (s *ScheduleService) preferences(ctx context.Context, userID string) (domain.Preferences, error) {
	stored, err := s.prefRepo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultPreferences(), nil
	}
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}
	return stored.Preferences, nil
}

func (s *ScheduleService) upsertTerm(ctx context.Context, req *domain.GenerateScheduleRequest, courses []domain.Course) (*repository.StoredSchedule, bool, error) {
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	now := s.now()

	existing, err := s.scheduleRepo.FindByTerm(ctx, req.UserID, req.Semester, req.Year)
	switch {
	case err == nil:
		existing.CourseIDs = ids
		existing.UpdatedAt = now
		if err := s.scheduleRepo.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("failed to update schedule: %w", err)
		}
		return existing, false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, false, fmt.Errorf("failed to find schedule: %w", err)
	}

	stored := &repository.StoredSchedule{
		ID:        uuid.New().String(),
		OwnerID:   req.UserID,
		Semester:  req.Semester,
		Year:      req.Year,
		CourseIDs: ids,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.scheduleRepo.Create(ctx, stored); err != nil {
		return nil, false, fmt.Errorf("failed to create schedule: %w", err)
	}
	return stored, true, nil
}

func (s *ScheduleService) owned(ctx context.Context, requesterID, scheduleID string) (*repository.StoredSchedule, error) {
	stored, err := s.scheduleRepo.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if stored.OwnerID != requesterID {
		return nil, domain.ErrForbidden
	}
	return stored, nil
}

// resolve fails with *domain.UnknownCourseError naming every id missing from the catalog.
func (s *ScheduleService) resolve(ctx context.Context, ids []string) ([]domain.Course, error) {
	courses := make([]domain.Course, 0, len(ids))
	var unknown []string
	for _, id := range ids {
		c, err := s.courseRepo.FindByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			unknown = append(unknown, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find course %s: %w", id, err)
		}
		courses = append(courses, *c)
	}

	if len(unknown) > 0 {
		return nil, &domain.UnknownCourseError{IDs: unknown}
	}
	return courses, nil
}

// expand resolves a stored schedule. Courses removed from the catalog since are dropped.
func (s *ScheduleService) expand(ctx context.Context, stored *repository.StoredSchedule) (*domain.Schedule, error) {
	courses := make([]domain.Course, 0, len(stored.CourseIDs))
	for _, id := range stored.CourseIDs {
		c, err := s.courseRepo.FindByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("schedule references missing course",
				zap.String("schedule_id", stored.ID),
				zap.String("course_id", id),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find course %s: %w", id, err)
		}
		courses = append(courses, *c)
	}
	return build(stored, courses), nil
}

func build(stored *repository.StoredSchedule, courses []domain.Course) *domain.Schedule {
	if courses == nil {
		courses = []domain.Course{}
	}
	schedule := &domain.Schedule{
		ID:        stored.ID,
		OwnerID:   stored.OwnerID,
		Semester:  stored.Semester,
		Year:      stored.Year,
		Courses:   courses,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}
	schedule.TotalCredits = schedule.Credits()
	return schedule
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
