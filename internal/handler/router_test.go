package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"course-planner-sync/internal/cache"
	"course-planner-sync/internal/conflict"
	"course-planner-sync/internal/domain"
	"course-planner-sync/internal/planner"
	"course-planner-sync/internal/remote"
	"course-planner-sync/internal/repository"
	"course-planner-sync/internal/service"
	"course-planner-sync/pkg/hash"
)

const testSecret = "router-test-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := zap.NewNop()
	store := repository.NewMemoryStore()

	courses := service.NewCourseService(store.Courses(), log)
	if _, err := courses.Seed(context.Background()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	svc := Services{
		Auth: service.NewAuthService(store.Users(), store.Preferences(), hash.New(bcrypt.MinCost), log,
			testSecret, 15*time.Minute, time.Hour),
		Users:       service.NewUserService(store.Users()),
		Preferences: service.NewPreferenceService(store.Users(), store.Preferences()),
		Courses:     courses,
		Schedules: service.NewScheduleService(store.Schedules(), store.Courses(), store.Preferences(),
			conflict.NewDetector(conflict.PolicyInterval), log),
	}

	srv := httptest.NewServer(NewRouter(svc, testSecret, CORS{AllowedOrigins: "*"}, log))
	t.Cleanup(srv.Close)
	return srv
}

// signUp registers a student and returns a client logged in as them.
func signUp(t *testing.T, srv *httptest.Server, username string) (*remote.Client, string) {
	t.Helper()
	ctx := context.Background()

	client := remote.NewClient(srv.URL+"/api", 5*time.Second)
	id, err := client.CreateUser(ctx, domain.CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "Password123!",
		Major:    "Computer Science",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if _, err := client.Login(ctx, username+"@example.com", "Password123!"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return client, id
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestUsersRequireToken(t *testing.T) {
	srv := newTestServer(t)
	_, id := signUp(t, srv, "alice")

	anonymous := remote.NewClient(srv.URL+"/api", time.Second)
	if _, err := anonymous.GetUser(context.Background(), id); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("GetUser() without token error = %v, want ErrUnauthorized", err)
	}
}

func TestUsersAreSelfOnly(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice, aliceID := signUp(t, srv, "alice")
	_, bobID := signUp(t, srv, "bob")

	user, err := alice.GetUser(ctx, aliceID)
	if err != nil {
		t.Fatalf("GetUser(self) error = %v", err)
	}
	if user.Username != "alice" || user.Password != "" {
		t.Errorf("GetUser(self) = %+v", user)
	}

	if _, err := alice.GetUser(ctx, bobID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("GetUser(other) error = %v, want ErrForbidden", err)
	}
	if _, err := alice.GetPreferences(ctx, bobID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("GetPreferences(other) error = %v, want ErrForbidden", err)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	srv := newTestServer(t)
	signUp(t, srv, "alice")

	client := remote.NewClient(srv.URL+"/api", time.Second)
	_, err := client.CreateUser(context.Background(), domain.CreateUserRequest{
		Username: "alice2", Email: "alice@example.com", Password: "Password123!",
	})

	var apiErr *remote.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Errorf("CreateUser() duplicate email error = %v, want 409", err)
	}
}

func TestTokenRefresh(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	client := remote.NewClient(srv.URL+"/api", 5*time.Second)
	id, err := client.CreateUser(ctx, domain.CreateUserRequest{
		Username: "carol", Email: "carol@example.com", Password: "Password123!",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	login, err := client.Login(ctx, "carol@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	device := remote.NewClient(srv.URL+"/api", 5*time.Second)
	if _, err := device.Refresh(ctx, login.AccessToken); err == nil {
		t.Error("Refresh() accepted an access token")
	}

	refreshed, err := device.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.AccessToken == "" || device.Token() != refreshed.AccessToken {
		t.Errorf("Refresh() = %+v, client token %q", refreshed, device.Token())
	}
	if _, err := device.GetUser(ctx, id); err != nil {
		t.Errorf("GetUser() with refreshed token error = %v", err)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client, id := signUp(t, srv, "alice")

	rec, err := client.GetPreferences(ctx, id)
	if err != nil || rec != nil {
		t.Fatalf("GetPreferences() before any write = %v, %v; want nil, nil", rec, err)
	}

	modified := time.Date(2025, 9, 1, 8, 30, 0, 0, time.UTC)
	put := domain.PreferenceRecord{
		Preferences:  domain.Preferences{PreferredTimes: []string{"Morning"}, MaxCreditsPerSemester: 12},
		LastModified: modified,
		Origin:       domain.OriginLocal,
	}
	if _, err := client.PutPreferences(ctx, id, put); err != nil {
		t.Fatalf("PutPreferences() error = %v", err)
	}

	rec, err = client.GetPreferences(ctx, id)
	if err != nil {
		t.Fatalf("GetPreferences() error = %v", err)
	}
	if !rec.LastModified.Equal(modified) {
		t.Errorf("LastModified = %v, want %v", rec.LastModified, modified)
	}
	if rec.Origin != domain.OriginRemote || rec.Preferences.MaxCreditsPerSemester != 12 {
		t.Errorf("GetPreferences() = %+v", rec)
	}
}

func TestPreferencesRejectInvalidPayload(t *testing.T) {
	srv := newTestServer(t)
	client, id := signUp(t, srv, "alice")

	_, err := client.PutPreferences(context.Background(), id, domain.PreferenceRecord{
		Preferences: domain.Preferences{MaxCreditsPerSemester: 99},
	})

	var apiErr *remote.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("PutPreferences() error = %v, want 400", err)
	}
}

func TestScheduleConflictProtocol(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client, id := signUp(t, srv, "alice")

	generated, err := client.GenerateSchedule(ctx, domain.GenerateScheduleRequest{
		UserID: id, Semester: domain.SemesterFall, Year: 2025, MaxCredits: 3,
	})
	if err != nil {
		t.Fatalf("GenerateSchedule() error = %v", err)
	}
	scheduleID := generated.Schedule.ID

	cs101, cs225 := service.CourseID("CS101"), service.CourseID("CS225")

	_, err = client.UpdateSchedule(ctx, scheduleID, domain.UpdateScheduleRequest{CourseIDs: []string{cs101, cs225}})
	var conflictErr *domain.ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("UpdateSchedule() error = %v, want *domain.ConflictError", err)
	}
	if len(conflictErr.Conflicts) != 2 {
		t.Errorf("conflicts = %v, want Monday and Wednesday", conflictErr.Conflicts)
	}

	forced, err := client.UpdateSchedule(ctx, scheduleID,
		domain.UpdateScheduleRequest{CourseIDs: []string{cs101, cs225}, ForceUpdate: true})
	if err != nil {
		t.Fatalf("forced UpdateSchedule() error = %v", err)
	}
	if len(forced.Conflicts) != 2 || forced.Warning == "" {
		t.Errorf("forced response = %+v, want conflicts and a warning", forced)
	}
	if forced.Schedule.TotalCredits != 7 {
		t.Errorf("TotalCredits = %d, want 7", forced.Schedule.TotalCredits)
	}

	week, err := client.GetWeeklySchedule(ctx, scheduleID)
	if err != nil {
		t.Fatalf("GetWeeklySchedule() error = %v", err)
	}
	monday := week.Days[0]
	if monday.Day != domain.Monday || len(monday.Entries) != 2 ||
		monday.Entries[0].Code != "CS101" || monday.Entries[1].Code != "CS225" {
		t.Errorf("Monday = %+v, want CS101 then CS225", monday)
	}

	_, err = client.UpdateSchedule(ctx, scheduleID, domain.UpdateScheduleRequest{CourseIDs: []string{"no-such-course"}})
	if !errors.Is(err, domain.ErrUnknownCourse) {
		t.Errorf("UpdateSchedule(unknown) error = %v, want ErrUnknownCourse", err)
	}

	list, err := client.ListSchedules(ctx, id)
	if err != nil || len(list) != 1 || list[0].TotalCredits != 7 {
		t.Errorf("ListSchedules() = %+v, %v", list, err)
	}

	if err := client.DeleteSchedule(ctx, scheduleID); err != nil {
		t.Fatalf("DeleteSchedule() error = %v", err)
	}
	if _, err := client.GetSchedule(ctx, scheduleID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetSchedule() after delete error = %v, want ErrNotFound", err)
	}
}

func TestSchedulesAreOwnerChecked(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice, aliceID := signUp(t, srv, "alice")
	bob, _ := signUp(t, srv, "bob")

	generated, err := alice.GenerateSchedule(ctx, domain.GenerateScheduleRequest{
		UserID: aliceID, Semester: domain.SemesterSpring, Year: 2026,
	})
	if err != nil {
		t.Fatalf("GenerateSchedule() error = %v", err)
	}

	if _, err := bob.GetSchedule(ctx, generated.Schedule.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("GetSchedule(other) error = %v, want ErrForbidden", err)
	}
	if _, err := bob.GetWeeklySchedule(ctx, generated.Schedule.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("GetWeeklySchedule(other) error = %v, want ErrForbidden", err)
	}
	if err := bob.DeleteSchedule(ctx, generated.Schedule.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("DeleteSchedule(other) error = %v, want ErrForbidden", err)
	}
	if _, err := bob.GenerateSchedule(ctx, domain.GenerateScheduleRequest{
		UserID: aliceID, Semester: domain.SemesterSpring, Year: 2026,
	}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("GenerateSchedule(other) error = %v, want ErrForbidden", err)
	}
}

func TestCourseListing(t *testing.T) {
	srv := newTestServer(t)

	client := remote.NewClient(srv.URL+"/api", time.Second)
	courses, err := client.ListCourses(context.Background())
	if err != nil {
		t.Fatalf("ListCourses() error = %v", err)
	}
	if len(courses) != len(service.SampleCatalog()) {
		t.Errorf("ListCourses() = %d courses, want %d", len(courses), len(service.SampleCatalog()))
	}

	resp, err := http.Get(srv.URL + "/api/courses?department=Mathematics")
	if err != nil {
		t.Fatalf("GET courses error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	bad, err := http.Get(srv.URL + "/api/courses?semester=Winter")
	if err != nil {
		t.Fatalf("GET courses error = %v", err)
	}
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an unknown semester", bad.StatusCode)
	}

	if _, err := client.GetCourse(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetCourse(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeviceSyncAgainstServer(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client, id := signUp(t, srv, "alice")

	local := cache.New(cache.NewMemoryBackend(), zap.NewNop())
	prefs := planner.NewPreferenceSync(local, client, zap.NewNop(), 5*time.Second)

	max := 15
	saved, err := prefs.Save(ctx, id, domain.PreferenceUpdate{MaxCreditsPerSemester: &max})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := prefs.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	remoteRec, err := client.GetPreferences(ctx, id)
	if err != nil || remoteRec == nil {
		t.Fatalf("GetPreferences() = %v, %v", remoteRec, err)
	}
	if !remoteRec.LastModified.Equal(saved.LastModified) || remoteRec.Preferences.MaxCreditsPerSemester != 15 {
		t.Errorf("server copy = %+v, want the saved record", remoteRec)
	}

	mutator := planner.NewScheduleMutator(planner.NewRemoteCatalog(client), client,
		conflict.NewDetector(conflict.PolicyInterval), zap.NewNop())

	generated, err := mutator.Generate(ctx, domain.GenerateScheduleRequest{
		UserID: id, Semester: domain.SemesterFall, Year: 2025, MaxCredits: 3,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = mutator.Update(ctx, generated.Schedule.ID, []string{"CS101", "CS225"}, false)
	var rejected *planner.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Update() error = %v, want *planner.RejectedError", err)
	}
	for _, c := range rejected.Conflicts {
		if !strings.Contains(c.Reason, "time overlap") {
			t.Errorf("conflict reason = %q", c.Reason)
		}
	}

	schedule, err := mutator.Update(ctx, generated.Schedule.ID, []string{"CS101", "MATH221"}, false)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if schedule.TotalCredits != 6 {
		t.Errorf("TotalCredits = %d, want 6", schedule.TotalCredits)
	}
}
