// Package cache is the durable per-user store on the device. It is the fallback of record
// whenever the remote store cannot be reached.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"course-planner-sync/internal/domain"
)

type Kind string

const (
	KindUserData        Kind = "user_data"
	KindUserPreferences Kind = "user_preferences"
)

// Key derives the storage key for a (user, kind) pair.
func Key(userID string, kind Kind) string {
	return fmt.Sprintf("%s_%s", kind, userID)
}

// ErrMiss is returned by a Backend when the key holds nothing.
var ErrMiss = errors.New("cache miss")

// Backend stores opaque bytes under string keys.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

type Entry struct {
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"stored_at"`
}

// Cache serialises values into Entries on top of a Backend. None of its operations
// report errors to the caller: failed writes are logged and corrupt entries are dropped.
//
// Access is serialised within the process only; two processes sharing a backend race.
type Cache struct {
	backend Backend
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	written map[string][]byte
}

func New(backend Backend, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		backend: backend,
		log:     log,
		now:     time.Now,
		written: make(map[string][]byte),
	}
}

// Get decodes the entry for (userID, kind) into dst, which must be a non-nil pointer.
// It reports false when the entry is absent, unreadable or corrupt; dst is left untouched then.
func (c *Cache) Get(ctx context.Context, userID string, kind Kind, dst interface{}) bool {
	key := Key(userID, kind)

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		c.log.Error("cache destination must be a non-nil pointer", zap.String("key", key))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.written[key]
	if !ok {
		var err error
		raw, err = c.backend.Read(ctx, key)
		if errors.Is(err, ErrMiss) {
			return false
		}
		if err != nil {
			c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
			return false
		}
	}

	value, err := unwrap(raw)
	if err != nil {
		c.log.Warn("dropping corrupt cache entry",
			zap.String("key", key),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrCorruptCacheEntry, err)),
		)
		delete(c.written, key)
		if err := c.backend.Delete(ctx, key); err != nil {
			c.log.Warn("failed to delete corrupt cache entry", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	// A value that does not fit dst is the caller's mistake; the entry stays.
	if err := decode(value, rv); err != nil {
		c.log.Error("cache entry does not match destination", zap.String("key", key), zap.Error(err))
		return false
	}

	return true
}

// Put overwrites the entry for (userID, kind). The value is readable immediately even
// if the durable write fails.
func (c *Cache) Put(ctx context.Context, userID string, kind Kind, value interface{}) {
	key := Key(userID, kind)

	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Error("cannot encode cache value", zap.String("key", key), zap.Error(err))
		return
	}

	raw, err := json.Marshal(Entry{Key: key, Value: payload, StoredAt: c.now()})
	if err != nil {
		c.log.Error("cannot encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.written[key] = raw
	if err := c.backend.Write(ctx, key, raw); err != nil {
		c.log.Warn("cache write failed, keeping value in memory", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) Remove(ctx context.Context, userID string, kind Kind) {
	key := Key(userID, kind)

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.written, key)
	if err := c.backend.Delete(ctx, key); err != nil {
		c.log.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Load is a typed convenience over Cache.Get.
func Load[T any](ctx context.Context, c *Cache, userID string, kind Kind) (T, bool) {
	var v T
	ok := c.Get(ctx, userID, kind, &v)
	return v, ok
}

func unwrap(raw []byte) (json.RawMessage, error) {
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("invalid entry: %w", err)
	}
	if len(entry.Value) == 0 || string(entry.Value) == "null" {
		return nil, errors.New("entry has no value")
	}
	return entry.Value, nil
}

func decode(value json.RawMessage, rv reflect.Value) error {
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(value, fresh.Interface()); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	rv.Elem().Set(fresh.Elem())

	return nil
}
