package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"course-planner-sync/internal/cache"
	"course-planner-sync/internal/domain"
)

// PreferenceSync arbitrates a user's preferences between the local cache and the remote
// store. Local edits always win; remote failures are logged and never returned.
type PreferenceSync struct {
	cache    LocalCache
	remote   PreferenceStore
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	timeout  time.Duration

	// mu serialises every read-modify-write of the cached record.
	mu sync.Mutex
	wg sync.WaitGroup

	latestMu sync.Mutex
	latest   map[string]time.Time
	// sendMu keeps at most one remote write in flight.
	sendMu sync.Mutex
}

func NewPreferenceSync(localCache LocalCache, remote PreferenceStore, log *zap.Logger, remoteTimeout time.Duration) *PreferenceSync {
	if log == nil {
		log = zap.NewNop()
	}
	if remoteTimeout <= 0 {
		remoteTimeout = 10 * time.Second
	}
	return &PreferenceSync{
		cache:    localCache,
		remote:   remote,
		log:      log,
		validate: validator.New(),
		now:      time.Now,
		timeout:  remoteTimeout,
		latest:   make(map[string]time.Time),
	}
}

// Load returns immediately with whatever the cache holds and reconciles against the
// remote copy in the background.
func (s *PreferenceSync) Load(ctx context.Context, userID string) *PendingLoad[domain.PreferenceRecord] {
	s.mu.Lock()
	local, ok := s.cached(ctx, userID)
	s.mu.Unlock()

	pending := newPendingLoad(local, ok)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pending.complete(s.reconcile(ctx, userID), nil)
	}()

	return pending
}

// Save merges update into the current record, stores it locally and pushes it to the
// remote store in the background. It fails only when the update itself is invalid.
func (s *PreferenceSync) Save(ctx context.Context, userID string, update domain.PreferenceUpdate) (domain.PreferenceRecord, error) {
	if err := s.validate.Struct(update); err != nil {
		return domain.PreferenceRecord{}, fmt.Errorf("invalid preference update: %w", err)
	}

	s.mu.Lock()
	current, ok := s.cached(ctx, userID)
	if !ok {
		current = domain.PreferenceRecord{Preferences: domain.DefaultPreferences()}
	}

	rec := domain.PreferenceRecord{
		Preferences:  update.Apply(current.Preferences),
		LastModified: domain.NextModified(current.LastModified, s.now()),
		Origin:       domain.OriginLocal,
	}
	s.cache.Put(ctx, userID, cache.KindUserPreferences, rec)
	s.pushLocked(ctx, userID, rec)
	s.mu.Unlock()

	s.log.Debug("preferences saved locally",
		zap.String("user_id", userID),
		zap.Time("last_modified", rec.LastModified),
	)

	return rec, nil
}

// Flush waits for background reconciliations and remote writes to finish.
func (s *PreferenceSync) Flush(ctx context.Context) error {
	return waitGroup(ctx, &s.wg)
}

func (s *PreferenceSync) cached(ctx context.Context, userID string) (domain.PreferenceRecord, bool) {
	var rec domain.PreferenceRecord
	if !s.cache.Get(ctx, userID, cache.KindUserPreferences, &rec) {
		return domain.PreferenceRecord{}, false
	}
	return rec, true
}

func (s *PreferenceSync) reconcile(ctx context.Context, userID string) domain.PreferenceRecord {
	remoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	remote, err := s.remote.GetPreferences(remoteCtx, userID)
	cancel()
	if err != nil {
		s.log.Warn("remote preferences unavailable, using local state",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		remote = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-read: a save may have landed while the remote call was in flight.
	var local *domain.PreferenceRecord
	if rec, ok := s.cached(ctx, userID); ok {
		local = &rec
	}

	result := domain.Reconcile(local, remote, s.now())

	switch {
	case local == nil || local.Origin != result.Origin || !local.LastModified.Equal(result.LastModified):
		s.cache.Put(ctx, userID, cache.KindUserPreferences, result)
		s.log.Debug("preferences reconciled",
			zap.String("user_id", userID),
			zap.String("origin", string(result.Origin)),
		)
	case remote != nil && result.Origin == domain.OriginLocal:
		s.log.Info("local preferences diverge from remote, keeping local edit",
			zap.String("user_id", userID),
			zap.Time("local_modified", local.LastModified),
			zap.Time("remote_modified", remote.LastModified),
		)
		s.pushLocked(ctx, userID, result)
	}

	return result
}

// pushLocked must be called with mu held so that pushes are registered in save order.
func (s *PreferenceSync) pushLocked(ctx context.Context, userID string, rec domain.PreferenceRecord) {
	s.latestMu.Lock()
	if rec.LastModified.After(s.latest[userID]) {
		s.latest[userID] = rec.LastModified
	}
	s.latestMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.sendMu.Lock()
		defer s.sendMu.Unlock()

		if s.superseded(userID, rec) {
			return
		}

		remoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		if _, err := s.remote.PutPreferences(remoteCtx, userID, rec); err != nil {
			s.log.Warn("failed to push preferences, local copy kept",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return
		}
		s.log.Debug("preferences pushed", zap.String("user_id", userID))
	}()
}

func (s *PreferenceSync) superseded(userID string, rec domain.PreferenceRecord) bool {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	return s.latest[userID].After(rec.LastModified)
}
