// Package redis caches recipient profiles in front of the profile store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taskchain-dispatcher/internal/domain"
	"taskchain-dispatcher/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "taskchain:profile:"

// NewClient opens a Redis client and pings it.
func NewClient(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RecipientCache is a read-through cache over a ProfileRepository.
// Only profiles carrying a token are cached, so a user who registers a device is
// picked up on the next lookup. Redis failures fall through to the store.
// SaveProfile invalidates the entry; a token rewritten directly in the store is
// served stale until the entry expires after ttl.
type RecipientCache struct {
	next   domain.ProfileRepository
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

var _ domain.ProfileRepository = (*RecipientCache)(nil)

// NewRecipientCache wraps next with a cache kept for ttl.
func NewRecipientCache(next domain.ProfileRepository, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RecipientCache {
	return &RecipientCache{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With("component", "recipient-cache"),
	}
}

func (c *RecipientCache) Lookup(ctx context.Context, userID string) (*domain.UserProfile, error) {
	key := keyPrefix + userID

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var profile domain.UserProfile
		if uerr := json.Unmarshal(raw, &profile); uerr == nil {
			metrics.RecipientCacheTotal.WithLabelValues("hit").Inc()
			return &profile, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "user_id", userID)
		metrics.RecipientCacheTotal.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.RecipientCacheTotal.WithLabelValues("miss").Inc()
	default:
		c.logger.Warn("cache read failed, falling back to store", "user_id", userID, "error", err)
		metrics.RecipientCacheTotal.WithLabelValues("error").Inc()
	}

	profile, err := c.next.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil && profile.FCMToken != "" {
		c.store(ctx, key, profile)
	}
	return profile, nil
}

// SaveProfile writes through to the store and evicts the cached copy.
func (c *RecipientCache) SaveProfile(ctx context.Context, userID string, profile *domain.UserProfile) error {
	if err := c.next.SaveProfile(ctx, userID, profile); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, keyPrefix+userID).Err(); err != nil {
		c.logger.Warn("failed to evict cached profile", "user_id", userID, "error", err)
	}
	return nil
}

func (c *RecipientCache) store(ctx context.Context, key string, profile *domain.UserProfile) {
	b, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
