package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"learner-chat/internal/observability"
)

// RosterCache wraps an Adapter with a short-lived redis cache for course
// rosters. Clients poll rooms every few seconds, so the roster would otherwise
// be re-fetched from the identity service on every list and post. Without
// redis it degrades to a passthrough.
type RosterCache struct {
	inner Adapter
	redis *redis.Client
	ttl   time.Duration
}

// NewRosterCache constructs a RosterCache. rdb may be nil.
func NewRosterCache(inner Adapter, rdb *redis.Client, ttl time.Duration) *RosterCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RosterCache{inner: inner, redis: rdb, ttl: ttl}
}

// CheckAccess is a passthrough; access decisions are never cached.
func (c *RosterCache) CheckAccess(ctx context.Context, courseID string, userID int) (Access, error) {
	return c.inner.CheckAccess(ctx, courseID, userID)
}

// CourseRoster returns the cached roster when fresh, fetching and re-caching
// otherwise. Cache failures are logged and treated as misses.
func (c *RosterCache) CourseRoster(ctx context.Context, courseID string) ([]User, error) {
	key := "chat:roster:" + courseID

	if c.redis != nil {
		val, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			var users []User
			if unmarshalErr := json.Unmarshal([]byte(val), &users); unmarshalErr == nil {
				observability.IncRosterCache("hit")
				return users, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("roster cache read failed: %v", err)
		}
	}
	observability.IncRosterCache("miss")

	users, err := c.inner.CourseRoster(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if c.redis != nil {
		if payload, marshalErr := json.Marshal(users); marshalErr == nil {
			if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
				log.Printf("roster cache write failed: %v", err)
			}
		}
	}
	return users, nil
}

var _ Adapter = (*RosterCache)(nil)
