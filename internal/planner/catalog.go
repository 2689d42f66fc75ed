package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"course-planner-sync/internal/domain"
)

// Catalog resolves course ids to full course offerings.
type Catalog interface {
	Lookup(ctx context.Context, ids []string) ([]domain.Course, error)
}

// RemoteCatalog memoises the remote course list. A lookup that misses triggers one
// refresh before the id is declared unknown. Course codes are accepted as ids.
type RemoteCatalog struct {
	store CourseLister

	mu     sync.RWMutex
	loaded bool
	byID   map[string]domain.Course
	byCode map[string]domain.Course
}

func NewRemoteCatalog(store CourseLister) *RemoteCatalog {
	return &RemoteCatalog{store: store}
}

func (c *RemoteCatalog) Lookup(ctx context.Context, ids []string) ([]domain.Course, error) {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()

	refreshed := false
	if !loaded {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
		refreshed = true
	}

	courses, missing := c.resolve(ids)
	if len(missing) > 0 && !refreshed {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
		courses, missing = c.resolve(ids)
	}
	if len(missing) > 0 {
		return nil, &domain.UnknownCourseError{IDs: missing}
	}

	return courses, nil
}

// All returns the catalog sorted by course code.
func (c *RemoteCatalog) All(ctx context.Context) ([]domain.Course, error) {
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Course, 0, len(c.byID))
	for _, course := range c.byID {
		out = append(out, course)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })

	return out, nil
}

func (c *RemoteCatalog) Refresh(ctx context.Context) error {
	courses, err := c.store.ListCourses(ctx)
	if err != nil {
		return fmt.Errorf("failed to load course catalog: %w", err)
	}

	byID := make(map[string]domain.Course, len(courses))
	byCode := make(map[string]domain.Course, len(courses))
	for _, course := range courses {
		byID[course.ID] = course
		byCode[strings.ToUpper(course.Code)] = course
	}

	c.mu.Lock()
	c.byID = byID
	c.byCode = byCode
	c.loaded = true
	c.mu.Unlock()

	return nil
}

func (c *RemoteCatalog) resolve(ids []string) ([]domain.Course, []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	courses := make([]domain.Course, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if course, ok := c.byID[id]; ok {
			courses = append(courses, course)
			continue
		}
		if course, ok := c.byCode[strings.ToUpper(strings.TrimSpace(id))]; ok {
			courses = append(courses, course)
			continue
		}
		missing = append(missing, id)
	}

	return courses, missing
}
