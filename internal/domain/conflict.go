package domain

import "fmt"

// ConflictRecord names two courses whose meeting times collide. It is produced on demand and never persisted.
type ConflictRecord struct {
	CourseA string `json:"course1"`
	CourseB string `json:"course2"`
	Reason  string `json:"conflict"`
}

func (c ConflictRecord) String() string {
	return fmt.Sprintf("%s vs %s (%s)", c.CourseA, c.CourseB, c.Reason)
}
