package domain

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

type Preferences struct {
	CompletedCourses      []string `json:"completed_courses" yaml:"completed_courses"`
	PreferredDepartments  []string `json:"preferred_departments" yaml:"preferred_departments"`
	PreferredTimes        []string `json:"preferred_times" yaml:"preferred_times"`
	MaxCreditsPerSemester int      `json:"max_credits_per_semester" yaml:"max_credits_per_semester" validate:"gte=0,lte=30"`
	AvoidEarlyMorning     bool     `json:"avoid_early_morning" yaml:"avoid_early_morning"`
	PreferOnlineCourses   bool     `json:"prefer_online_courses" yaml:"prefer_online_courses"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		CompletedCourses:      []string{},
		PreferredDepartments:  []string{"Computer Science", "Mathematics"},
		PreferredTimes:        []string{"Afternoon", "Morning"},
		MaxCreditsPerSemester: 18,
	}
}

// Normalize trims, deduplicates and sorts the set-valued fields so that two payloads
// holding the same sets compare equal regardless of order.
func (p Preferences) Normalize() Preferences {
	p.CompletedCourses = normalizeSet(p.CompletedCourses)
	p.PreferredDepartments = normalizeSet(p.PreferredDepartments)
	p.PreferredTimes = normalizeSet(p.PreferredTimes)
	return p
}

func (p Preferences) Equal(other Preferences) bool {
	return reflect.DeepEqual(p.Normalize(), other.Normalize())
}

func (p Preferences) HasCompleted(code string) bool {
	for _, c := range p.CompletedCourses {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

func (p Preferences) PrefersDepartment(department string) bool {
	for _, d := range p.PreferredDepartments {
		if strings.EqualFold(d, department) {
			return true
		}
	}
	return false
}

func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// PreferenceUpdate is a partial update; nil fields are left untouched.
type PreferenceUpdate struct {
	CompletedCourses      *[]string `json:"completed_courses,omitempty"`
	PreferredDepartments  *[]string `json:"preferred_departments,omitempty"`
	PreferredTimes        *[]string `json:"preferred_times,omitempty"`
	MaxCreditsPerSemester *int      `json:"max_credits_per_semester,omitempty" validate:"omitempty,gte=0,lte=30"`
	AvoidEarlyMorning     *bool     `json:"avoid_early_morning,omitempty"`
	PreferOnlineCourses   *bool     `json:"prefer_online_courses,omitempty"`
}

func (u PreferenceUpdate) Apply(p Preferences) Preferences {
	if u.CompletedCourses != nil {
		p.CompletedCourses = append([]string(nil), *u.CompletedCourses...)
	}
	if u.PreferredDepartments != nil {
		p.PreferredDepartments = append([]string(nil), *u.PreferredDepartments...)
	}
	if u.PreferredTimes != nil {
		p.PreferredTimes = append([]string(nil), *u.PreferredTimes...)
	}
	if u.MaxCreditsPerSemester != nil {
		p.MaxCreditsPerSemester = *u.MaxCreditsPerSemester
	}
	if u.AvoidEarlyMorning != nil {
		p.AvoidEarlyMorning = *u.AvoidEarlyMorning
	}
	if u.PreferOnlineCourses != nil {
		p.PreferOnlineCourses = *u.PreferOnlineCourses
	}
	return p.Normalize()
}

// UpdatePreferencesRequest is the body of PUT /users/{id}/preferences. LastModified carries
// the client's timestamp so both stores agree on it; the server stamps its own clock when absent.
type UpdatePreferencesRequest struct {
	Preferences  Preferences `json:"preferences"`
	LastModified *time.Time  `json:"last_modified,omitempty"`
}

// Origin records which source produced the most recently accepted write.
type Origin string

const (
	OriginLocal   Origin = "local"
	OriginRemote  Origin = "remote"
	OriginDefault Origin = "default"
)

func (o Origin) priority() int {
	switch o {
	case OriginLocal:
		return 2
	case OriginRemote:
		return 1
	default:
		return 0
	}
}

type PreferenceRecord struct {
	Preferences  Preferences `json:"preferences"`
	LastModified time.Time   `json:"last_modified"`
	Origin       Origin      `json:"origin"`
}

// Compare orders records by LastModified, breaking ties by origin priority
// (local > remote > default). It returns -1, 0 or +1.
func Compare(a, b PreferenceRecord) int {
	switch {
	case a.LastModified.Before(b.LastModified):
		return -1
	case a.LastModified.After(b.LastModified):
		return 1
	}

	pa, pb := a.Origin.priority(), b.Origin.priority()
	switch {
	case pa < pb:
		return -1
	case pa > pb:
		return 1
	}
	return 0
}

func DefaultRecord(now time.Time) PreferenceRecord {
	return PreferenceRecord{
		Preferences:  DefaultPreferences().Normalize(),
		LastModified: now,
		Origin:       OriginDefault,
	}
}

// Reconcile arbitrates between the cached and the remote copy of a user's preferences.
// A nil argument means that side has no record.
//
// A local edit wins whenever it exists: it is replaced by the remote copy only when the
// cache is empty or holds a synthesized default, and when both payloads are equal only
// the remote timestamp and origin are adopted so the two stores converge.
func Reconcile(local, remote *PreferenceRecord, now time.Time) PreferenceRecord {
	switch {
	case local == nil && remote == nil:
		return DefaultRecord(now)
	case remote == nil:
		return *local
	case local == nil || local.Origin == OriginDefault:
		rec := *remote
		rec.Preferences = rec.Preferences.Normalize()
		rec.Origin = OriginRemote
		return rec
	}

	if local.Preferences.Equal(remote.Preferences) {
		rec := *local
		rec.LastModified = remote.LastModified
		rec.Origin = OriginRemote
		return rec
	}

	return *local
}

// NextModified returns the timestamp for a local mutation following prev. It never
// goes backwards even when the wall clock does.
func NextModified(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}
