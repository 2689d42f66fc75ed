package domain

import (
	"testing"
	"time"
)

func TestReconcile(t *testing.T) {
	t1 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	now := t2.Add(time.Hour)

	p1 := Preferences{PreferredDepartments: []string{"Computer Science"}, MaxCreditsPerSemester: 15}
	p2 := Preferences{PreferredDepartments: []string{"Physics"}, MaxCreditsPerSemester: 12}

	t.Run("both empty synthesises default", func(t *testing.T) {
		got := Reconcile(nil, nil, now)
		if got.Origin != OriginDefault {
			t.Errorf("expected origin default, got %s", got.Origin)
		}
		if !got.LastModified.Equal(now) {
			t.Errorf("expected last modified %v, got %v", now, got.LastModified)
		}
		if !got.Preferences.Equal(DefaultPreferences()) {
			t.Errorf("expected default preferences, got %+v", got.Preferences)
		}
	})

	t.Run("empty cache accepts remote", func(t *testing.T) {
		remote := &PreferenceRecord{Preferences: p2, LastModified: t2, Origin: OriginLocal}
		got := Reconcile(nil, remote, now)
		if got.Origin != OriginRemote {
			t.Errorf("expected origin remote, got %s", got.Origin)
		}
		if !got.Preferences.Equal(p2) || !got.LastModified.Equal(t2) {
			t.Errorf("expected remote record, got %+v", got)
		}
	})

	t.Run("unreachable remote keeps local", func(t *testing.T) {
		local := &PreferenceRecord{Preferences: p1, LastModified: t1, Origin: OriginLocal}
		got := Reconcile(local, nil, now)
		if got.Origin != OriginLocal || !got.Preferences.Equal(p1) {
			t.Errorf("expected local record, got %+v", got)
		}
	})

	t.Run("diverged payloads keep local even when remote is newer", func(t *testing.T) {
		local := &PreferenceRecord{Preferences: p1, LastModified: t1, Origin: OriginLocal}
		remote := &PreferenceRecord{Preferences: p2, LastModified: t2, Origin: OriginRemote}
		got := Reconcile(local, remote, now)
		if !got.Preferences.Equal(p1) {
			t.Errorf("expected local payload to win, got %+v", got.Preferences)
		}
		if !got.LastModified.Equal(t1) || got.Origin != OriginLocal {
			t.Errorf("expected local provenance, got %v %s", got.LastModified, got.Origin)
		}
	})

	t.Run("synthesized default yields to remote", func(t *testing.T) {
		local := &PreferenceRecord{Preferences: DefaultPreferences(), LastModified: t2, Origin: OriginDefault}
		remote := &PreferenceRecord{Preferences: p2, LastModified: t1, Origin: OriginRemote}
		got := Reconcile(local, remote, now)
		if !got.Preferences.Equal(p2) || got.Origin != OriginRemote {
			t.Errorf("expected remote record, got %+v", got)
		}
	})

	t.Run("equal payloads converge on remote timestamp", func(t *testing.T) {
		reordered := Preferences{PreferredDepartments: []string{" Computer Science", "Computer Science"}, MaxCreditsPerSemester: 15}
		local := &PreferenceRecord{Preferences: p1, LastModified: t1, Origin: OriginLocal}
		remote := &PreferenceRecord{Preferences: reordered, LastModified: t2, Origin: OriginRemote}
		got := Reconcile(local, remote, now)
		if !got.LastModified.Equal(t2) || got.Origin != OriginRemote {
			t.Errorf("expected remote provenance, got %v %s", got.LastModified, got.Origin)
		}
	})
}

func TestCompare(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)

	tests := []struct {
		name string
		a, b PreferenceRecord
		want int
	}{
		{"older first", PreferenceRecord{LastModified: t1, Origin: OriginLocal}, PreferenceRecord{LastModified: t2, Origin: OriginDefault}, -1},
		{"newer first", PreferenceRecord{LastModified: t2, Origin: OriginDefault}, PreferenceRecord{LastModified: t1, Origin: OriginLocal}, 1},
		{"tie local beats remote", PreferenceRecord{LastModified: t1, Origin: OriginLocal}, PreferenceRecord{LastModified: t1, Origin: OriginRemote}, 1},
		{"tie remote beats default", PreferenceRecord{LastModified: t1, Origin: OriginDefault}, PreferenceRecord{LastModified: t1, Origin: OriginRemote}, -1},
		{"identical", PreferenceRecord{LastModified: t1, Origin: OriginRemote}, PreferenceRecord{LastModified: t1, Origin: OriginRemote}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNextModified(t *testing.T) {
	prev := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	if got := NextModified(prev, prev.Add(time.Minute)); !got.Equal(prev.Add(time.Minute)) {
		t.Errorf("expected wall clock when ahead, got %v", got)
	}
	if got := NextModified(prev, prev); !got.After(prev) {
		t.Errorf("expected strictly later time for equal clock, got %v", got)
	}
	if got := NextModified(prev, prev.Add(-time.Hour)); !got.After(prev) {
		t.Errorf("expected strictly later time when clock went back, got %v", got)
	}
}

func TestPreferenceUpdate_Apply(t *testing.T) {
	base := DefaultPreferences()
	credits := 12
	avoid := true
	completed := []string{"MATH101", "CS101", "CS101"}

	got := PreferenceUpdate{
		MaxCreditsPerSemester: &credits,
		AvoidEarlyMorning:     &avoid,
		CompletedCourses:      &completed,
	}.Apply(base)

	if got.MaxCreditsPerSemester != 12 || !got.AvoidEarlyMorning {
		t.Errorf("expected scalar fields to be updated, got %+v", got)
	}
	if len(got.CompletedCourses) != 2 || got.CompletedCourses[0] != "CS101" {
		t.Errorf("expected normalised completed set, got %v", got.CompletedCourses)
	}
	if !got.PrefersDepartment("mathematics") {
		t.Error("expected untouched departments to survive the update")
	}
	if got.PreferOnlineCourses {
		t.Error("expected untouched boolean to keep its value")
	}
}
