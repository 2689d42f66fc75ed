package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"course-planner-sync/internal/domain"
	"course-planner-sync/pkg/response"
)

// APIError is a non-2xx reply that maps to no domain error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote returned status %d: %s", e.Status, e.Message)
}

type envelope struct {
	Success   bool                    `json:"success"`
	Data      json.RawMessage         `json:"data"`
	Error     string                  `json:"error"`
	Code      string                  `json:"code"`
	Message   string                  `json:"message"`
	Conflicts []domain.ConflictRecord `json:"conflicts"`
}

// Client talks to the planner backend over HTTP JSON.
type Client struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) CreateUser(ctx context.Context, req domain.CreateUserRequest) (string, error) {
	var out domain.CreateUserResponse
	if err := c.do(ctx, http.MethodPost, "/users", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Login authenticates and keeps the access token for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	var out domain.LoginResponse
	req := domain.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.AccessToken)
	return &out, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.TokenResponse, error) {
	var out domain.TokenResponse
	req := domain.RefreshTokenRequest{RefreshToken: refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", req, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.AccessToken)
	return &out, nil
}

func (c *Client) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(userID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPreferences(ctx context.Context, userID string) (*domain.PreferenceRecord, error) {
	var out domain.PreferencesEnvelope
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/preferences", nil, &out)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return recordFromEnvelope(out), nil
}

func (c *Client) PutPreferences(ctx context.Context, userID string, rec domain.PreferenceRecord) (*domain.PreferenceRecord, error) {
	modified := rec.LastModified
	req := domain.UpdatePreferencesRequest{Preferences: rec.Preferences, LastModified: &modified}

	var out domain.PreferencesEnvelope
	if err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(userID)+"/preferences", req, &out); err != nil {
		return nil, err
	}
	return recordFromEnvelope(out), nil
}

func (c *Client) ListSchedules(ctx context.Context, userID string) ([]domain.ScheduleSummary, error) {
	var out []domain.ScheduleSummary
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/schedules", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSchedule(ctx context.Context, scheduleID string) (*domain.Schedule, error) {
	var out domain.Schedule
	if err := c.do(ctx, http.MethodGet, "/schedule/"+url.PathEscape(scheduleID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetWeeklySchedule(ctx context.Context, scheduleID string) (*domain.WeeklySchedule, error) {
	var out domain.WeeklySchedule
	if err := c.do(ctx, http.MethodGet, "/schedule/"+url.PathEscape(scheduleID)+"/weekly", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSchedule(ctx context.Context, scheduleID string, req domain.UpdateScheduleRequest) (*domain.UpdateScheduleResponse, error) {
	var out domain.UpdateScheduleResponse
	if err := c.do(ctx, http.MethodPut, "/schedule/"+url.PathEscape(scheduleID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSchedule(ctx context.Context, scheduleID string) error {
	return c.do(ctx, http.MethodDelete, "/schedule/"+url.PathEscape(scheduleID), nil, nil)
}

func (c *Client) GenerateSchedule(ctx context.Context, req domain.GenerateScheduleRequest) (*domain.GenerateScheduleResponse, error) {
	var out domain.GenerateScheduleResponse
	if err := c.do(ctx, http.MethodPost, "/schedule/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCourses(ctx context.Context) ([]domain.Course, error) {
	var out []domain.Course
	if err := c.do(ctx, http.MethodGet, "/courses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCourse(ctx context.Context, courseID string) (*domain.Course, error) {
	var out domain.Course
	if err := c.do(ctx, http.MethodGet, "/courses/"+url.PathEscape(courseID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrRemoteUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d", domain.ErrRemoteUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return mapError(resp.StatusCode, env)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

func mapError(status int, env envelope) error {
	msg := env.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status >= 500:
		return fmt.Errorf("%w: %s", domain.ErrRemoteUnavailable, msg)
	case len(env.Conflicts) > 0 || env.Code == response.CodeConflict:
		return &domain.ConflictError{Conflicts: env.Conflicts}
	case env.Code == response.CodeUnknownCourse:
		return fmt.Errorf("%w: %s", domain.ErrUnknownCourse, msg)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, msg)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	}

	return &APIError{Status: status, Message: msg}
}

func recordFromEnvelope(env domain.PreferencesEnvelope) *domain.PreferenceRecord {
	if env.Preferences == nil {
		return nil
	}

	rec := &domain.PreferenceRecord{
		Preferences: env.Preferences.Normalize(),
		Origin:      domain.OriginRemote,
	}
	if env.LastModified != nil {
		rec.LastModified = *env.LastModified
	}
	return rec
}
