// Package conflict decides whether a candidate set of courses can be scheduled together.
package conflict

import (
	"fmt"
	"strings"

	"course-planner-sync/internal/domain"
)

// Policy selects the collision rule applied to two slots.
type Policy string

const (
	// PolicyInterval treats slots as colliding when they meet on the same day and
	// their time ranges intersect.
	PolicyInterval Policy = "interval"
	// PolicyDay treats any two slots on the same day as colliding, whatever their times.
	PolicyDay Policy = "day"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyInterval, "":
		return PolicyInterval, nil
	case PolicyDay:
		return PolicyDay, nil
	}
	return "", fmt.Errorf("unknown conflict policy %q", s)
}

type Detector struct {
	Policy Policy
}

func NewDetector(policy Policy) *Detector {
	return &Detector{Policy: policy}
}

func (d *Detector) Detect(courses []domain.Course) []domain.ConflictRecord {
	return Detect(courses, d.Policy)
}

// Detect reports every pair of courses with colliding slots, at most once per pair and day.
// Records follow the iteration order of courses. Repeated course ids are considered once.
func Detect(courses []domain.Course, policy Policy) []domain.ConflictRecord {
	courses = uniqueByID(courses)
	if len(courses) < 2 {
		return []domain.ConflictRecord{}
	}

	conflicts := []domain.ConflictRecord{}
	for i := 0; i < len(courses); i++ {
		for j := i + 1; j < len(courses); j++ {
			conflicts = append(conflicts, pairConflicts(courses[i], courses[j], policy)...)
		}
	}

	return conflicts
}

func pairConflicts(a, b domain.Course, policy Policy) []domain.ConflictRecord {
	var records []domain.ConflictRecord
	reported := make(map[domain.Day]bool)

	for _, s1 := range a.TimeSlots {
		for _, s2 := range b.TimeSlots {
			if reported[s1.Day] || !collides(s1, s2, policy) {
				continue
			}
			reported[s1.Day] = true
			records = append(records, domain.ConflictRecord{
				CourseA: a.Code,
				CourseB: b.Code,
				Reason:  fmt.Sprintf("time overlap on %s: %s-%s vs %s-%s", s1.Day, s1.Start, s1.End, s2.Start, s2.End),
			})
		}
	}

	return records
}

func collides(s1, s2 domain.TimeSlot, policy Policy) bool {
	if s1.Day != s2.Day {
		return false
	}
	if policy == PolicyDay {
		return true
	}

	// A slot without a usable time range cannot be proven safe.
	if s1.Validate() != nil || s2.Validate() != nil {
		return true
	}

	return s1.Overlaps(s2)
}

func uniqueByID(courses []domain.Course) []domain.Course {
	seen := make(map[string]struct{}, len(courses))
	out := make([]domain.Course, 0, len(courses))
	for _, c := range courses {
		key := c.ID
		if key == "" {
			key = "code:" + c.Code
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
