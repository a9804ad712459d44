// Package rediscache puts a Redis read-through, write-through cache in
// front of any ProgressStore. The wrapped store stays authoritative; cache
// errors are logged and bypassed.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/studyquest/internal/domain"
)

// DefaultTTL bounds how long a cached snapshot lives without a write.
const DefaultTTL = 10 * time.Minute

// Cache is a domain.ProgressStore decorator.
type Cache struct {
	rdb    *goredis.Client
	next   domain.ProgressStore
	ttl    time.Duration
	prefix string
	log    *log.Entry
}

// Dial connects to addr and verifies it with PING.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// New wraps next with a cache on rdb. A ttl of zero uses DefaultTTL.
func New(rdb *goredis.Client, next domain.ProgressStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		rdb:    rdb,
		next:   next,
		ttl:    ttl,
		prefix: "studyquest:snapshot:",
		log:    log.WithField("component", "rediscache"),
	}
}

func (c *Cache) key(userID string) string { return c.prefix + userID }

// GetSnapshot serves from Redis when possible and fills the cache on a miss.
func (c *Cache) GetSnapshot(ctx context.Context, userID string) (domain.ProgressSnapshot, error) {
	raw, err := c.rdb.Get(ctx, c.key(userID)).Bytes()
	switch {
	case err == nil:
		var s domain.ProgressSnapshot
		if jerr := json.Unmarshal(raw, &s); jerr == nil {
			return s, nil
		}
		c.log.WithField("user", userID).Warn("dropping undecodable cache entry")
		c.rdb.Del(ctx, c.key(userID))
	case !errors.Is(err, goredis.Nil):
		c.log.WithField("user", userID).WithError(err).Warn("cache read failed")
	}

	s, err := c.next.GetSnapshot(ctx, userID)
	if err != nil {
		return s, err
	}
	c.set(ctx, s)
	return s, nil
}

// UpsertSnapshot writes to the wrapped store, then refreshes the cache.
func (c *Cache) UpsertSnapshot(ctx context.Context, s domain.ProgressSnapshot) error {
	if err := c.next.UpsertSnapshot(ctx, s); err != nil {
		return err
	}
	c.set(ctx, s)
	return nil
}

func (c *Cache) set(ctx context.Context, s domain.ProgressSnapshot) {
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(s.UserID), raw, c.ttl).Err(); err != nil {
		c.log.WithField("user", s.UserID).WithError(err).Warn("cache write failed")
		// A stale entry must not outlive a failed refresh.
		c.rdb.Del(ctx, c.key(s.UserID))
	}
}

// Invalidate removes a user's cached snapshot.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, c.key(userID)).Err()
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
