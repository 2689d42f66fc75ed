package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"course-planner-sync/internal/domain"
	"course-planner-sync/internal/repository"
	"course-planner-sync/pkg/hash"
	"course-planner-sync/pkg/jwt"
)

type AuthService struct {
	userRepo          repository.UserRepository
	prefRepo          repository.PreferenceRepository
	hasher            *hash.Hasher
	log               *zap.Logger
	jwtSecret         string
	jwtExpiration     time.Duration
	refreshExpiration time.Duration
	now               func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	prefRepo repository.PreferenceRepository,
	hasher *hash.Hasher,
	log *zap.Logger,
	jwtSecret string,
	jwtExp, refreshExp time.Duration,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		userRepo:          userRepo,
		prefRepo:          prefRepo,
		hasher:            hasher,
		log:               log,
		jwtSecret:         jwtSecret,
		jwtExpiration:     jwtExp,
		refreshExpiration: refreshExp,
		now:               time.Now,
	}
}

// Register creates the account and, when the request carries them, its initial preferences.
func (s *AuthService) Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.CreateUserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	emailExists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if emailExists {
		return nil, ErrEmailTaken
	}

	usernameExists, err := s.userRepo.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}
	if usernameExists {
		return nil, ErrUsernameTaken
	}

	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:             uuid.New().String(),
		Username:       req.Username,
		Email:          email,
		Major:          req.Major,
		GraduationYear: req.GraduationYear,
		Password:       hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if req.Preferences != nil {
		prefs := &repository.StoredPreferences{
			UserID:       user.ID,
			Preferences:  req.Preferences.Normalize(),
			LastModified: now,
		}
		if err := s.prefRepo.Put(ctx, prefs); err != nil {
			return nil, fmt.Errorf("failed to store initial preferences: %w", err)
		}
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))

	return &domain.CreateUserResponse{ID: user.ID}, nil
}

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.hasher.Compare(user.Password, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.Password) {
		s.rehash(ctx, user, req.Password)
	}

	accessToken, err := jwt.GenerateToken(user.ID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := jwt.GenerateRefreshToken(user.ID, s.refreshExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	user.Password = ""

	return &domain.LoginResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtExpiration.Seconds()),
	}, nil
}

// rehash upgrades a hash produced at an older cost. Failures only cost another rehash next login.
func (s *AuthService) rehash(ctx context.Context, user *domain.User, password string) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	updated := *user
	updated.Password = hashed
	if err := s.userRepo.Update(ctx, &updated); err != nil {
		s.log.Warn("password rehash not stored", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *AuthService) RefreshToken(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.TokenResponse, error) {
	claims, err := jwt.ValidateRefreshToken(req.RefreshToken, s.jwtSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if _, err := s.userRepo.FindByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	accessToken, err := jwt.GenerateToken(claims.UserID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.jwtExpiration.Seconds()),
	}, nil
}
