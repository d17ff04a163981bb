package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"taskchain-dispatcher/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProfiles struct {
	profiles map[string]*domain.UserProfile
	lookups  int
}

func (m *memProfiles) Lookup(_ context.Context, userID string) (*domain.UserProfile, error) {
	m.lookups++
	p, ok := m.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return p, nil
}

func (m *memProfiles) SaveProfile(_ context.Context, userID string, profile *domain.UserProfile) error {
	m.profiles[userID] = profile
	return nil
}

// unreachableRedis points at a port nothing listens on, so every command fails fast.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRecipientCache_FallsThroughWhenRedisIsDown(t *testing.T) {
	store := &memProfiles{profiles: map[string]*domain.UserProfile{"u1": {FCMToken: "tok123"}}}
	cache := NewRecipientCache(store, unreachableRedis(t), time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	profile, err := cache.Lookup(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, "tok123", profile.FCMToken)
	assert.Equal(t, 1, store.lookups)
}

func TestRecipientCache_PropagatesProfileNotFound(t *testing.T) {
	store := &memProfiles{profiles: map[string]*domain.UserProfile{}}
	cache := NewRecipientCache(store, unreachableRedis(t), time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := cache.Lookup(context.Background(), "nobody")

	assert.True(t, errors.Is(err, domain.ErrProfileNotFound))
}

func TestRecipientCache_SaveProfileWritesThrough(t *testing.T) {
	store := &memProfiles{profiles: map[string]*domain.UserProfile{}}
	cache := NewRecipientCache(store, unreachableRedis(t), time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, cache.SaveProfile(context.Background(), "u1", &domain.UserProfile{FCMToken: "new"}))

	assert.Equal(t, "new", store.profiles["u1"].FCMToken)
}
