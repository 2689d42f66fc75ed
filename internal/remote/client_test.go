package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"course-planner-sync/internal/domain"
	"course-planner-sync/pkg/response"
)

func newTestServer(t *testing.T, register func(r *mux.Router)) *Client {
	t.Helper()
	r := mux.NewRouter()
	register(r.PathPrefix("/api").Subrouter())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", time.Second)
}

func TestClient_LoginStoresToken(t *testing.T) {
	var gotAuth string
	c := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			var req domain.LoginRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Password != "secret123" {
				response.Unauthorized(w, "invalid credentials")
				return
			}
			response.Success(w, domain.LoginResponse{
				User:        &domain.User{ID: "u1", Email: req.Email},
				AccessToken: "tok-1",
			})
		}).Methods(http.MethodPost)
		r.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			response.Success(w, domain.User{ID: mux.Vars(r)["id"], Username: "ada"})
		}).Methods(http.MethodGet)
	})

	if _, err := c.Login(context.Background(), "ada@example.com", "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Login() error = %v, want ErrUnauthorized", err)
	}

	resp, err := c.Login(context.Background(), "ada@example.com", "secret123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.User.ID != "u1" {
		t.Errorf("user id = %q", resp.User.ID)
	}

	user, err := c.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.Username != "ada" {
		t.Errorf("Username = %q", user.Username)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestClient_GetPreferences(t *testing.T) {
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	prefs := domain.Preferences{PreferredTimes: []string{"Morning", "Evening"}, MaxCreditsPerSemester: 15}

	c := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/users/{id}/preferences", func(w http.ResponseWriter, r *http.Request) {
			switch mux.Vars(r)["id"] {
			case "stored":
				response.Success(w, domain.PreferencesEnvelope{UserID: "stored", Preferences: &prefs, LastModified: &modified})
			case "empty":
				response.Success(w, domain.PreferencesEnvelope{UserID: "empty"})
			default:
				response.NotFound(w, "user not found")
			}
		}).Methods(http.MethodGet)
	})

	rec, err := c.GetPreferences(context.Background(), "stored")
	if err != nil {
		t.Fatalf("GetPreferences() error = %v", err)
	}
	if rec == nil {
		t.Fatal("expected record")
	}
	if rec.Origin != domain.OriginRemote {
		t.Errorf("Origin = %q", rec.Origin)
	}
	if !rec.LastModified.Equal(modified) {
		t.Errorf("LastModified = %v", rec.LastModified)
	}
	if !rec.Preferences.Equal(prefs) {
		t.Errorf("Preferences = %+v", rec.Preferences)
	}

	for _, id := range []string{"empty", "missing"} {
		rec, err := c.GetPreferences(context.Background(), id)
		if err != nil {
			t.Errorf("GetPreferences(%q) error = %v", id, err)
		}
		if rec != nil {
			t.Errorf("GetPreferences(%q) = %+v, want nil", id, rec)
		}
	}
}

func TestClient_PutPreferencesSendsTimestamp(t *testing.T) {
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var got domain.UpdatePreferencesRequest

	c := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/users/{id}/preferences", func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			response.Success(w, domain.PreferencesEnvelope{
				UserID:       mux.Vars(r)["id"],
				Preferences:  &got.Preferences,
				LastModified: got.LastModified,
			})
		}).Methods(http.MethodPut)
	})

	rec := domain.PreferenceRecord{Preferences: domain.DefaultPreferences(), LastModified: modified, Origin: domain.OriginLocal}
	out, err := c.PutPreferences(context.Background(), "u1", rec)
	if err != nil {
		t.Fatalf("PutPreferences() error = %v", err)
	}
	if got.LastModified == nil || !got.LastModified.Equal(modified) {
		t.Errorf("sent last_modified = %v", got.LastModified)
	}
	if !out.LastModified.Equal(modified) {
		t.Errorf("returned LastModified = %v", out.LastModified)
	}
}

func TestClient_UpdateScheduleConflict(t *testing.T) {
	conflicts := []domain.ConflictRecord{{CourseA: "CS101", CourseB: "CS205", Reason: "time overlap on Monday"}}

	c := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/schedule/{id}", func(w http.ResponseWriter, r *http.Request) {
			var req domain.UpdateScheduleRequest
			json.NewDecoder(r.Body).Decode(&req)
			if !req.ForceUpdate {
				response.Conflict(w, "Schedule conflicts detected", conflicts, "Use force_update=true to save anyway")
				return
			}
			response.Success(w, domain.UpdateScheduleResponse{
				Schedule:  &domain.Schedule{ID: mux.Vars(r)["id"], Courses: []domain.Course{{ID: "c1"}, {ID: "c2"}}},
				Conflicts: conflicts,
			})
		}).Methods(http.MethodPut)
	})

	req := domain.UpdateScheduleRequest{CourseIDs: []string{"c1", "c2"}}
	_, err := c.UpdateSchedule(context.Background(), "s1", req)

	var conflictErr *domain.ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("UpdateSchedule() error = %v, want ConflictError", err)
	}
	if len(conflictErr.Conflicts) != 1 || conflictErr.Conflicts[0].CourseB != "CS205" {
		t.Errorf("Conflicts = %+v", conflictErr.Conflicts)
	}

	req.ForceUpdate = true
	out, err := c.UpdateSchedule(context.Background(), "s1", req)
	if err != nil {
		t.Fatalf("forced UpdateSchedule() error = %v", err)
	}
	if len(out.Schedule.Courses) != 2 || len(out.Conflicts) != 1 {
		t.Errorf("unexpected response %+v", out)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	c := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/schedule/{id}", func(w http.ResponseWriter, r *http.Request) {
			switch mux.Vars(r)["id"] {
			case "missing":
				response.NotFound(w, "schedule not found")
			case "other":
				response.Forbidden(w, "not your schedule")
			case "broken":
				response.InternalError(w, "database down")
			case "unknown":
				response.CodedError(w, http.StatusNotFound, response.CodeUnknownCourse, "unknown course: X1")
			case "bad":
				response.BadRequest(w, "invalid request body")
			}
		})
	})

	tests := []struct {
		id   string
		want error
	}{
		{"missing", domain.ErrNotFound},
		{"other", domain.ErrForbidden},
		{"broken", domain.ErrRemoteUnavailable},
		{"unknown", domain.ErrUnknownCourse},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			_, err := c.GetSchedule(context.Background(), tt.id)
			if !errors.Is(err, tt.want) {
				t.Errorf("GetSchedule() error = %v, want %v", err, tt.want)
			}
		})
	}

	_, err := c.GetSchedule(context.Background(), "bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("GetSchedule(bad) error = %v, want APIError 400", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(base, 200*time.Millisecond)
	if _, err := c.ListCourses(context.Background()); !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Errorf("ListCourses() error = %v, want ErrRemoteUnavailable", err)
	}
	if err := c.DeleteSchedule(context.Background(), "s1"); !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Errorf("DeleteSchedule() error = %v, want ErrRemoteUnavailable", err)
	}
}
