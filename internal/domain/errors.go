package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrUnknownCourse     = errors.New("unknown course")
	ErrCorruptCacheEntry = errors.New("corrupt cache entry")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
)

// ConflictError is returned when a schedule mutation is refused because of colliding time slots.
// Resubmitting with force accepts the collisions.
type ConflictError struct {
	Conflicts []ConflictRecord
}

func (e *ConflictError) Error() string {
	pairs := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		pairs = append(pairs, c.CourseA+" vs "+c.CourseB)
	}
	return fmt.Sprintf("schedule conflicts detected: %s", strings.Join(pairs, ", "))
}

// UnknownCourseError wraps ErrUnknownCourse with the unresolved ids.
type UnknownCourseError struct {
	IDs []string
}

func (e *UnknownCourseError) Error() string {
	return fmt.Sprintf("unknown course: %s", strings.Join(e.IDs, ", "))
}

func (e *UnknownCourseError) Unwrap() error {
	return ErrUnknownCourse
}
