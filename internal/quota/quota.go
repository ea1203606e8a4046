// Package quota tracks the anonymous trial budget per client IP. Registered
// users carry their quota on the account row instead.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/viajai/server/internal/core/errx"
	"github.com/viajai/server/internal/entitlement"
	logx "github.com/viajai/server/pkg/logger"
)

// AnonStore counts trial uses for anonymous visitors in Redis. The counter
// records uses consumed, not uses left, so a missing key means a full budget.
type AnonStore struct {
	rdb   redis.Cmdable
	limit int
	ttl   time.Duration
}

// NewAnonStore returns a store with the given trial budget. A non-positive
// limit falls back to the default trial budget.
func NewAnonStore(rdb redis.Cmdable, limit int, ttl time.Duration) *AnonStore {
	if limit <= 0 {
		limit = entitlement.DefaultFreeUses
	}
	return &AnonStore{rdb: rdb, limit: limit, ttl: ttl}
}

func (s *AnonStore) key(clientIP string) string {
	return fmt.Sprintf("trial:ip:%s", clientIP)
}

// Remaining reports how many trial uses the client still has.
func (s *AnonStore) Remaining(ctx context.Context, clientIP string) (int, error) {
	used, err := s.rdb.Get(ctx, s.key(clientIP)).Int()
	if err != nil {
		if err == redis.Nil {
			return s.limit, nil
		}
		logx.Error().Err(err).Str("ip", clientIP).Msg("failed to read trial counter")
		return 0, errx.WrapRedis(err)
	}
	return entitlement.ClampUses(s.limit - used), nil
}

// Consume records one confirmed use and returns the remaining budget. It is
// called only after a successful dispatch; denials and failures never touch
// the counter.
func (s *AnonStore) Consume(ctx context.Context, clientIP string) (int, error) {
	key := s.key(clientIP)

	used, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		logx.Error().Err(err).Str("ip", clientIP).Msg("failed to increment trial counter")
		return 0, errx.WrapRedis(err)
	}
	if s.ttl > 0 {
		if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
			logx.Warn().Err(err).Str("key", key).Msg("failed to set TTL on trial counter")
		}
	}
	return entitlement.ClampUses(s.limit - int(used)), nil
}
