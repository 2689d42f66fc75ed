package domain

import "time"

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email          string    `json:"email" validate:"required,email"`
	Major          string    `json:"major"`
	GraduationYear int       `json:"graduation_year,omitempty"`
	Password       string    `json:"password,omitempty"` // stored hashed, stripped from responses
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateUserRequest struct {
	Username       string       `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email          string       `json:"email" validate:"required,email"`
	Password       string       `json:"password" validate:"required,min=8"`
	Major          string       `json:"major"`
	GraduationYear int          `json:"graduation_year" validate:"omitempty,gte=1900,lte=2200"`
	Preferences    *Preferences `json:"preferences,omitempty"`
}

type CreateUserResponse struct {
	ID string `json:"id"`
}

type UpdateUserRequest struct {
	Username       *string `json:"username,omitempty" validate:"omitempty,min=3,max=30,alphanum"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	Major          *string `json:"major,omitempty"`
	GraduationYear *int    `json:"graduation_year,omitempty" validate:"omitempty,gte=1900,lte=2200"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// PreferencesEnvelope is the wire shape of GET/PUT /users/{id}/preferences.
// Preferences is nil when the user never stored any.
type PreferencesEnvelope struct {
	UserID       string       `json:"user_id,omitempty"`
	Preferences  *Preferences `json:"preferences"`
	LastModified *time.Time   `json:"last_modified,omitempty"`
}
