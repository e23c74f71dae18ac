package integrity

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/talentgate/exam-backend/internal/config"
)

// DefaultReloadFlagTTL bounds how long an unload is remembered.
const DefaultReloadFlagTTL = 6 * time.Hour

// ReloadFlagStore remembers that an exam page was unloaded.
type ReloadFlagStore interface {
	Mark(ctx context.Context, token string) error
	// Consume reports whether the flag was set and clears it.
	Consume(ctx context.Context, token string) (bool, error)
}

// RedisReloadFlags keeps reload flags in Redis.
type RedisReloadFlags struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisReloadFlags(rdb *redis.Client, ttl time.Duration) *RedisReloadFlags {
	if ttl <= 0 {
		ttl = DefaultReloadFlagTTL
	}
	return &RedisReloadFlags{rdb: rdb, ttl: ttl}
}

func (r *RedisReloadFlags) Mark(ctx context.Context, token string) error {
	return r.rdb.Set(ctx, config.CacheKey.AssignmentReloadKey(token), "1", r.ttl).Err()
}

func (r *RedisReloadFlags) Consume(ctx context.Context, token string) (bool, error) {
	_, err := r.rdb.GetDel(ctx, config.CacheKey.AssignmentReloadKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
