// Package cache provides an optional Redis cache for hot link lookups on the
// redirect path. A nil *Cache is valid and behaves as a permanent miss, so
// the service runs unchanged without Redis configured.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BotCoder254/URLBriefr/internal/models"
)

// ErrCacheMiss is returned when a code is not cached.
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "link:"

// Cache wraps a Redis client storing serialized ShortLink rows.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// cacheEntry is the wire form of a cached link. IntegrityHash carries
// json:"-" on the model so it never leaks into API responses, but a cache
// hit must behave exactly like a store read, so the hash is re-exposed here
// under a tag only this package uses.
type cacheEntry struct {
	models.ShortLink
	IntegrityHash *string `json:"integrity_hash,omitempty"`
}

func encodeLink(link *models.ShortLink) ([]byte, error) {
	return json.Marshal(cacheEntry{ShortLink: *link, IntegrityHash: link.IntegrityHash})
}

func decodeLink(raw []byte) (*models.ShortLink, error) {
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	link := entry.ShortLink
	link.IntegrityHash = entry.IntegrityHash
	return &link, nil
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(addr, password string, ttl time.Duration) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Cache{rdb: rdb, ttl: ttl}, nil
}

// GetLink returns the cached link for code, or ErrCacheMiss.
func (c *Cache) GetLink(ctx context.Context, code string) (*models.ShortLink, error) {
	if c == nil {
		return nil, ErrCacheMiss
	}
	raw, err := c.rdb.Get(ctx, keyPrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return decodeLink(raw)
}

// SetLink caches the link under its code for the configured TTL.
// Callers must not cache links whose state can change per request
// (one-time-use); the redirect service enforces that rule.
func (c *Cache) SetLink(ctx context.Context, link *models.ShortLink) error {
	if c == nil {
		return nil
	}
	raw, err := encodeLink(link)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyPrefix+link.Code, raw, c.ttl).Err()
}

// Invalidate drops the cached entry for code. Called after every mutation
// that changes redirect-relevant state.
func (c *Cache) Invalidate(ctx context.Context, code string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, keyPrefix+code).Err()
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
