package planner

import (
	"context"
	"testing"
	"time"

	"course-planner-sync/internal/cache"
	"course-planner-sync/internal/domain"
)

func newTestPreferenceSync(remote *mockPreferenceStore) (*PreferenceSync, *cache.Cache) {
	c := cache.New(cache.NewMemoryBackend(), nil)
	return NewPreferenceSync(c, remote, nil, time.Second), c
}

func cachedRecord(t *testing.T, c *cache.Cache, userID string) (domain.PreferenceRecord, bool) {
	t.Helper()
	return cache.Load[domain.PreferenceRecord](context.Background(), c, userID, cache.KindUserPreferences)
}

func flush(t *testing.T, s *PreferenceSync) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestPreferenceSync_SaveThenLoadBeforeRemote(t *testing.T) {
	ctx := context.Background()
	remote := newMockPreferenceStore()
	ps, _ := newTestPreferenceSync(remote)

	credits := 12
	saved, err := ps.Save(ctx, "u1", domain.PreferenceUpdate{MaxCreditsPerSemester: &credits})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	flush(t, ps)

	started, release := remote.hold()
	pending := ps.Load(ctx, "u1")

	local, ok := pending.Local()
	if !ok {
		t.Fatal("expected cached record before remote completes")
	}
	if local.Origin != domain.OriginLocal {
		t.Errorf("Origin = %q, want local", local.Origin)
	}
	if local.Preferences.MaxCreditsPerSemester != 12 || !local.LastModified.Equal(saved.LastModified) {
		t.Errorf("Local() = %+v, want saved record", local)
	}

	select {
	case <-pending.Done():
		t.Fatal("load finished before remote answered")
	default:
	}

	<-started
	release()

	if _, err := pending.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	flush(t, ps)
}

func TestPreferenceSync_LocalWinsOverNewerRemote(t *testing.T) {
	ctx := context.Background()
	t1 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	p1 := domain.Preferences{PreferredDepartments: []string{"Computer Science"}, MaxCreditsPerSemester: 15}.Normalize()
	p2 := domain.Preferences{PreferredDepartments: []string{"Physics"}, MaxCreditsPerSemester: 9}.Normalize()

	remote := newMockPreferenceStore()
	remote.record = &domain.PreferenceRecord{Preferences: p2, LastModified: t1.Add(time.Hour), Origin: domain.OriginRemote}

	ps, c := newTestPreferenceSync(remote)
	c.Put(ctx, "u1", cache.KindUserPreferences, domain.PreferenceRecord{Preferences: p1, LastModified: t1, Origin: domain.OriginLocal})

	got, err := ps.Load(ctx, "u1").Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	flush(t, ps)

	if !got.Preferences.Equal(p1) || got.Origin != domain.OriginLocal || !got.LastModified.Equal(t1) {
		t.Errorf("reconciled = %+v, want local record", got)
	}

	cached, _ := cachedRecord(t, c, "u1")
	if !cached.Preferences.Equal(p1) || !cached.LastModified.Equal(t1) {
		t.Errorf("cache overwritten: %+v", cached)
	}

	pushed, n := remote.lastPut()
	if n != 1 || !pushed.Preferences.Equal(p1) {
		t.Errorf("expected local record to be pushed back, got %d puts, last %+v", n, pushed)
	}
}

func TestPreferenceSync_EmptyCacheAcceptsRemote(t *testing.T) {
	ctx := context.Background()
	modified := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	p := domain.Preferences{CompletedCourses: []string{"CS101"}, MaxCreditsPerSemester: 16}

	remote := newMockPreferenceStore()
	remote.record = &domain.PreferenceRecord{Preferences: p, LastModified: modified, Origin: domain.OriginLocal}

	ps, c := newTestPreferenceSync(remote)

	pending := ps.Load(ctx, "u1")
	if _, ok := pending.Local(); ok {
		t.Fatal("expected empty cache")
	}

	got, err := pending.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	flush(t, ps)

	if got.Origin != domain.OriginRemote || !got.Preferences.Equal(p) {
		t.Errorf("reconciled = %+v, want remote record", got)
	}

	cached, ok := cachedRecord(t, c, "u1")
	if !ok {
		t.Fatal("expected remote record to be cached")
	}
	if cached.Origin != domain.OriginRemote || !cached.Preferences.Equal(p) || !cached.LastModified.Equal(modified) {
		t.Errorf("cached = %+v", cached)
	}
}

func TestPreferenceSync_UnreachableAndEmptySynthesisesDefault(t *testing.T) {
	ctx := context.Background()
	remote := newMockPreferenceStore()
	remote.getErr = domain.ErrRemoteUnavailable

	ps, c := newTestPreferenceSync(remote)

	got, err := ps.Load(ctx, "u1").Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	flush(t, ps)

	if got.Origin != domain.OriginDefault || !got.Preferences.Equal(domain.DefaultPreferences()) {
		t.Errorf("reconciled = %+v, want default", got)
	}
	if _, ok := cachedRecord(t, c, "u1"); !ok {
		t.Error("default should be persisted locally")
	}
}

func TestPreferenceSync_RemoteFailureDoesNotLoseSave(t *testing.T) {
	ctx := context.Background()
	remote := newMockPreferenceStore()
	remote.putErr = domain.ErrRemoteUnavailable
	remote.getErr = domain.ErrRemoteUnavailable

	ps, c := newTestPreferenceSync(remote)

	avoid := true
	if _, err := ps.Save(ctx, "u1", domain.PreferenceUpdate{AvoidEarlyMorning: &avoid}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	flush(t, ps)

	got, err := ps.Load(ctx, "u1").Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	flush(t, ps)

	if !got.Preferences.AvoidEarlyMorning || got.Origin != domain.OriginLocal {
		t.Errorf("reconciled = %+v, want saved local record", got)
	}
	cached, _ := cachedRecord(t, c, "u1")
	if !cached.Preferences.AvoidEarlyMorning {
		t.Error("saved value missing from cache")
	}
}

func TestPreferenceSync_SaveDuringLoadIsKept(t *testing.T) {
	ctx := context.Background()
	remote := newMockPreferenceStore()
	remote.record = &domain.PreferenceRecord{
		Preferences:  domain.Preferences{PreferredDepartments: []string{"Physics"}},
		LastModified: time.Now().Add(time.Hour),
		Origin:       domain.OriginRemote,
	}

	remote.putErr = domain.ErrRemoteUnavailable
	ps, c := newTestPreferenceSync(remote)

	started, release := remote.hold()
	pending := ps.Load(ctx, "u1")
	<-started

	depts := []string{"Mathematics"}
	saved, err := ps.Save(ctx, "u1", domain.PreferenceUpdate{PreferredDepartments: &depts})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	release()
	got, err := pending.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	flush(t, ps)

	if !got.Preferences.Equal(saved.Preferences) || got.Origin != domain.OriginLocal {
		t.Errorf("reconciled = %+v, want the save made during the round trip", got)
	}
	cached, _ := cachedRecord(t, c, "u1")
	if !cached.Preferences.Equal(saved.Preferences) {
		t.Errorf("cached = %+v, save was overwritten", cached)
	}
}

func TestPreferenceSync_SavesAreOrdered(t *testing.T) {
	ctx := context.Background()
	remote := newMockPreferenceStore()
	ps, _ := newTestPreferenceSync(remote)

	frozen := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	ps.now = func() time.Time { return frozen }

	var prev domain.PreferenceRecord
	for i := 1; i <= 5; i++ {
		credits := i
		rec, err := ps.Save(ctx, "u1", domain.PreferenceUpdate{MaxCreditsPerSemester: &credits})
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if i > 1 && !rec.LastModified.After(prev.LastModified) {
			t.Errorf("save %d: LastModified %v not after %v", i, rec.LastModified, prev.LastModified)
		}
		if len(rec.Preferences.PreferredDepartments) != 2 {
			t.Errorf("save %d lost untouched fields: %+v", i, rec.Preferences)
		}
		prev = rec
	}
	flush(t, ps)

	last, n := remote.lastPut()
	if n == 0 {
		t.Fatal("expected at least one remote write")
	}
	if last.Preferences.MaxCreditsPerSemester != 5 {
		t.Errorf("remote holds %d credits, want the last save", last.Preferences.MaxCreditsPerSemester)
	}
}

func TestPreferenceSync_InvalidUpdate(t *testing.T) {
	remote := newMockPreferenceStore()
	ps, c := newTestPreferenceSync(remote)

	credits := 99
	if _, err := ps.Save(context.Background(), "u1", domain.PreferenceUpdate{MaxCreditsPerSemester: &credits}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, ok := cachedRecord(t, c, "u1"); ok {
		t.Error("invalid update must not be cached")
	}
}

func TestPendingLoad_WaitHonoursContext(t *testing.T) {
	p := newPendingLoad(domain.PreferenceRecord{}, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Wait(ctx); err != context.Canceled {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}
