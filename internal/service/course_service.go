package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"course-planner-sync/internal/domain"
	"course-planner-sync/internal/repository"
)

type CourseService struct {
	courseRepo repository.CourseRepository
	log        *zap.Logger
}

func NewCourseService(courseRepo repository.CourseRepository, log *zap.Logger) *CourseService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CourseService{
		courseRepo: courseRepo,
		log:        log,
	}
}

func (s *CourseService) List(ctx context.Context, filter repository.CourseFilter) ([]domain.Course, error) {
	courses, err := s.courseRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	if courses == nil {
		courses = []domain.Course{}
	}
	return courses, nil
}

func (s *CourseService) Get(ctx context.Context, id string) (*domain.Course, error) {
	return s.courseRepo.FindByID(ctx, id)
}

// Seed stores the sample catalog when the store holds no course yet and reports how many were added.
func (s *CourseService) Seed(ctx context.Context) (int, error) {
	count, err := s.courseRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	catalog := SampleCatalog()
	for i := range catalog {
		if err := s.courseRepo.Upsert(ctx, &catalog[i]); err != nil {
			return i, fmt.Errorf("failed to seed %s: %w", catalog[i].Code, err)
		}
	}

	s.log.Info("seeded course catalog", zap.Int("courses", len(catalog)))
	return len(catalog), nil
}

var courseNamespace = uuid.MustParse("6f1c3a52-8d0e-4f7b-9a43-2c5d7e8b9f10")

// CourseID derives a stable id from a course code so seeded catalogs agree across restarts.
func CourseID(code string) string {
	return uuid.NewSHA1(courseNamespace, []byte(code)).String()
}

func SampleCatalog() []domain.Course {
	slot := func(day domain.Day, start, end domain.ClockTime, room string) domain.TimeSlot {
		return domain.TimeSlot{Day: day, Start: start, End: end, Room: room}
	}
	course := func(code, name, dept string, credits int, slots ...domain.TimeSlot) domain.Course {
		return domain.Course{
			ID:          CourseID(code),
			Code:        code,
			Name:        name,
			Credits:     credits,
			Department:  dept,
			Year:        2025,
			TimeSlots:   slots,
			MaxCapacity: 30,
		}
	}

	return []domain.Course{
		course("CS101", "Introduction to Computer Science", "Computer Science", 3,
			slot(domain.Monday, domain.Clock(9, 0), domain.Clock(10, 30), "CS 101"),
			slot(domain.Wednesday, domain.Clock(9, 0), domain.Clock(10, 30), "CS 101")),
		course("CS201", "Data Structures and Algorithms", "Computer Science", 4,
			slot(domain.Tuesday, domain.Clock(14, 0), domain.Clock(15, 30), "CS 201"),
			slot(domain.Thursday, domain.Clock(14, 0), domain.Clock(15, 30), "CS 201")),
		course("CS225", "Computer Systems", "Computer Science", 4,
			slot(domain.Monday, domain.Clock(10, 0), domain.Clock(11, 30), "CS 115"),
			slot(domain.Wednesday, domain.Clock(10, 0), domain.Clock(11, 30), "CS 115")),
		course("CS310", "Operating Systems", "Computer Science", 3,
			slot(domain.Tuesday, domain.Clock(8, 0), domain.Clock(9, 15), "CS 310"),
			slot(domain.Thursday, domain.Clock(8, 0), domain.Clock(9, 15), "CS 310")),
		course("MATH101", "Calculus I", "Mathematics", 4,
			slot(domain.Monday, domain.Clock(11, 0), domain.Clock(12, 30), "Math 101"),
			slot(domain.Wednesday, domain.Clock(11, 0), domain.Clock(12, 30), "Math 101"),
			slot(domain.Friday, domain.Clock(11, 0), domain.Clock(12, 30), "Math 101")),
		course("MATH221", "Linear Algebra", "Mathematics", 3,
			slot(domain.Tuesday, domain.Clock(11, 0), domain.Clock(12, 15), "Math 204"),
			slot(domain.Thursday, domain.Clock(11, 0), domain.Clock(12, 15), "Math 204")),
		course("PHYS101", "Physics for Scientists and Engineers", "Physics", 4,
			slot(domain.Tuesday, domain.Clock(10, 0), domain.Clock(11, 30), "Physics 101"),
			slot(domain.Thursday, domain.Clock(10, 0), domain.Clock(11, 30), "Physics 101")),
		course("ENG101", "Composition and Rhetoric", "English", 3,
			slot(domain.Monday, domain.Clock(13, 0), domain.Clock(14, 30), "English 101"),
			slot(domain.Wednesday, domain.Clock(13, 0), domain.Clock(14, 30), "English 101")),
		course("CHEM101", "General Chemistry", "Chemistry", 4,
			slot(domain.Tuesday, domain.Clock(13, 0), domain.Clock(14, 30), "Chemistry 101"),
			slot(domain.Thursday, domain.Clock(13, 0), domain.Clock(14, 30), "Chemistry 101")),
		course("HIST150", "World History", "History", 3),
	}
}
