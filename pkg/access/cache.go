package access

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/acredia/acredia/pkg/assignments"
)

// RoleCache stores resolved roles for a short TTL so repeated checks
// within a request window don't re-query the assignment tables.
type RoleCache interface {
	Get(ctx context.Context, userID int64, ref EntityRef) (assignments.Role, bool)
	Set(ctx context.Context, userID int64, ref EntityRef, role assignments.Role)
	InvalidateUser(ctx context.Context, userID int64)
}

func cacheKey(userID int64, ref EntityRef) string {
	return fmt.Sprintf("%d:%s:%d", userID, ref.Kind, ref.ID)
}

// MemoryRoleCache is an in-process LRU with TTL expiry
type MemoryRoleCache struct {
	cache *lru.LRU[string, assignments.Role]
}

// NewMemoryRoleCache creates an in-process role cache
func NewMemoryRoleCache(maxEntries int, ttl time.Duration) *MemoryRoleCache {
	if maxEntries < 16 {
		maxEntries = 16
	}
	return &MemoryRoleCache{
		cache: lru.NewLRU[string, assignments.Role](maxEntries, nil, ttl),
	}
}

func (c *MemoryRoleCache) Get(ctx context.Context, userID int64, ref EntityRef) (assignments.Role, bool) {
	return c.cache.Get(cacheKey(userID, ref))
}

func (c *MemoryRoleCache) Set(ctx context.Context, userID int64, ref EntityRef, role assignments.Role) {
	c.cache.Add(cacheKey(userID, ref), role)
}

// InvalidateUser drops every cached role for the user
func (c *MemoryRoleCache) InvalidateUser(ctx context.Context, userID int64) {
	prefix := fmt.Sprintf("%d:", userID)
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
}

// RedisRoleCache shares resolved roles across instances. Each user's
// roles live in one hash so invalidation is a single DEL.
type RedisRoleCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRoleCache creates a Redis-backed role cache
func NewRedisRoleCache(client *redis.Client, prefix string, ttl time.Duration) *RedisRoleCache {
	if prefix == "" {
		prefix = "roles"
	}
	return &RedisRoleCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisRoleCache) userKey(userID int64) string {
	return fmt.Sprintf("%s:%d", c.prefix, userID)
}

func (c *RedisRoleCache) Get(ctx context.Context, userID int64, ref EntityRef) (assignments.Role, bool) {
	val, err := c.client.HGet(ctx, c.userKey(userID), ref.String()).Result()
	if err != nil {
		// Treat any Redis error as a miss; the resolver is the source of
		// truth and a miss only costs a query.
		return assignments.RoleNone, false
	}
	role, err := assignments.ParseRole(val)
	if err != nil {
		return assignments.RoleNone, false
	}
	return role, true
}

func (c *RedisRoleCache) Set(ctx context.Context, userID int64, ref EntityRef, role assignments.Role) {
	key := c.userKey(userID)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, ref.String(), role.String())
	pipe.Expire(ctx, key, c.ttl)
	_, _ = pipe.Exec(ctx)
}

// InvalidateUser drops every cached role for the user
func (c *RedisRoleCache) InvalidateUser(ctx context.Context, userID int64) {
	_ = c.client.Del(ctx, c.userKey(userID)).Err()
}
