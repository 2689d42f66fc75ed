package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"course-planner-sync/internal/cache"
	"course-planner-sync/internal/domain"
)

// ProfileSync caches the user profile. The remote store is the only writer of profiles,
// so a successful remote read always replaces the cached copy.
type ProfileSync struct {
	cache   LocalCache
	remote  UserStore
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewProfileSync(localCache LocalCache, remote UserStore, log *zap.Logger, remoteTimeout time.Duration) *ProfileSync {
	if log == nil {
		log = zap.NewNop()
	}
	if remoteTimeout <= 0 {
		remoteTimeout = 10 * time.Second
	}
	return &ProfileSync{
		cache:   localCache,
		remote:  remote,
		log:     log,
		timeout: remoteTimeout,
	}
}

// Load returns the cached profile at once and refreshes it in the background. Wait fails
// only when there is neither a cached nor a remote profile.
func (s *ProfileSync) Load(ctx context.Context, userID string) *PendingLoad[domain.User] {
	var local domain.User
	ok := s.cache.Get(ctx, userID, cache.KindUserData, &local)
	pending := newPendingLoad(local, ok)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		remoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		user, err := s.remote.GetUser(remoteCtx, userID)
		if err != nil {
			s.log.Warn("remote profile unavailable", zap.String("user_id", userID), zap.Error(err))
			if ok {
				pending.complete(local, nil)
				return
			}
			pending.complete(domain.User{}, fmt.Errorf("failed to load profile: %w", err))
			return
		}

		user.Password = ""
		s.cache.Put(ctx, userID, cache.KindUserData, user)
		pending.complete(*user, nil)
	}()

	return pending
}

// Update writes through the remote store and caches the accepted profile.
func (s *ProfileSync) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	user, err := s.remote.UpdateUser(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	user.Password = ""
	s.cache.Put(ctx, userID, cache.KindUserData, user)

	return user, nil
}

// Forget drops the cached profile, e.g. on logout.
func (s *ProfileSync) Forget(ctx context.Context, userID string) {
	s.cache.Remove(ctx, userID, cache.KindUserData)
}

func (s *ProfileSync) Flush(ctx context.Context) error {
	return waitGroup(ctx, &s.wg)
}
