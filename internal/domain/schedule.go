package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Semester string

const (
	SemesterFall   Semester = "Fall"
	SemesterSpring Semester = "Spring"
	SemesterSummer Semester = "Summer"
)

func ParseSemester(s string) (Semester, error) {
	for _, sem := range []Semester{SemesterFall, SemesterSpring, SemesterSummer} {
		if strings.EqualFold(strings.TrimSpace(s), string(sem)) {
			return sem, nil
		}
	}
	return "", fmt.Errorf("invalid semester %q", s)
}

type Schedule struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"user_id"`
	Semester     Semester  `json:"semester"`
	Year         int       `json:"year"`
	Courses      []Course  `json:"courses"`
	TotalCredits int       `json:"total_credits"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Credits recomputes the derived credit total from the enrolled courses.
func (s *Schedule) Credits() int {
	total := 0
	for _, c := range s.Courses {
		total += c.Credits
	}
	return total
}

func (s *Schedule) CourseIDs() []string {
	ids := make([]string, 0, len(s.Courses))
	for _, c := range s.Courses {
		ids = append(ids, c.ID)
	}
	return ids
}

func (s *Schedule) HasCourse(courseID string) bool {
	for _, c := range s.Courses {
		if c.ID == courseID {
			return true
		}
	}
	return false
}

type ScheduleSummary struct {
	ID           string    `json:"id"`
	Semester     Semester  `json:"semester"`
	Year         int       `json:"year"`
	TotalCredits int       `json:"total_credits"`
	CourseCodes  []string  `json:"course_codes"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Schedule) Summary() ScheduleSummary {
	codes := make([]string, 0, len(s.Courses))
	for _, c := range s.Courses {
		codes = append(codes, c.Code)
	}

	return ScheduleSummary{
		ID:           s.ID,
		Semester:     s.Semester,
		Year:         s.Year,
		TotalCredits: s.TotalCredits,
		CourseCodes:  codes,
		CreatedAt:    s.CreatedAt,
	}
}

type UpdateScheduleRequest struct {
	CourseIDs   []string `json:"course_ids" validate:"dive,required"`
	ForceUpdate bool     `json:"force_update"`
}

// UpdateScheduleResponse is returned by a successful mutation. Conflicts is only
// populated when the mutation was forced through despite collisions.
type UpdateScheduleResponse struct {
	Schedule  *Schedule        `json:"schedule"`
	Conflicts []ConflictRecord `json:"conflicts,omitempty"`
	Warning   string           `json:"warning,omitempty"`
}

type GenerateScheduleRequest struct {
	UserID     string   `json:"user_id" validate:"required"`
	Semester   Semester `json:"semester" validate:"required,oneof=Fall Spring Summer"`
	Year       int      `json:"year" validate:"required,gte=2000,lte=2100"`
	MaxCredits int      `json:"max_credits,omitempty" validate:"gte=0,lte=30"`
}

type SkippedCourse struct {
	Code      string           `json:"course"`
	Conflicts []ConflictRecord `json:"conflicts"`
}

type GenerateScheduleResponse struct {
	Schedule *Schedule       `json:"schedule"`
	Created  bool            `json:"created"`
	Skipped  []SkippedCourse `json:"skipped_courses"`
}

// WeeklyEntry is one meeting of an enrolled course.
type WeeklyEntry struct {
	CourseID string    `json:"course_id"`
	Code     string    `json:"course_code"`
	Name     string    `json:"course_name"`
	Start    ClockTime `json:"start_time"`
	End      ClockTime `json:"end_time"`
	Room     string    `json:"room"`
	Credits  int       `json:"credits"`
}

type WeeklyDay struct {
	Day     Day           `json:"day"`
	Entries []WeeklyEntry `json:"courses"`
}

type WeeklySchedule struct {
	ScheduleID string      `json:"schedule_id"`
	Days       []WeeklyDay `json:"days"`
}

const unassignedRoom = "TBD"

// Weekly lays the schedule's meetings out per day, ordered by start time. Monday to
// Friday are always present; weekend days only when something meets on them.
func (s *Schedule) Weekly() WeeklySchedule {
	byDay := make(map[Day][]WeeklyEntry)
	for _, c := range s.Courses {
		for _, slot := range c.TimeSlots {
			room := slot.Room
			if room == "" {
				room = unassignedRoom
			}
			byDay[slot.Day] = append(byDay[slot.Day], WeeklyEntry{
				CourseID: c.ID,
				Code:     c.Code,
				Name:     c.Name,
				Start:    slot.Start,
				End:      slot.End,
				Room:     room,
				Credits:  c.Credits,
			})
		}
	}

	week := WeeklySchedule{ScheduleID: s.ID, Days: []WeeklyDay{}}
	for _, day := range []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday} {
		entries := byDay[day]
		if len(entries) == 0 && (day == Saturday || day == Sunday) {
			continue
		}
		if entries == nil {
			entries = []WeeklyEntry{}
		}
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Start != entries[j].Start {
				return entries[i].Start < entries[j].Start
			}
			if entries[i].End != entries[j].End {
				return entries[i].End < entries[j].End
			}
			return entries[i].Code < entries[j].Code
		})
		week.Days = append(week.Days, WeeklyDay{Day: day, Entries: entries})
	}

	return week
}
