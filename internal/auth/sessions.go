package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/viajai/server/internal/core/errx"
	logx "github.com/viajai/server/pkg/logger"
)

// CookieName is the session cookie issued to every visitor.
const CookieName = "session"

// Sessions stores opaque session tokens in Redis. A token maps to a user id;
// anonymous visitors carry a token with no mapping, used only as a stable
// conversation key.
type Sessions struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewSessions returns a session store with the given token lifetime.
func NewSessions(rdb redis.Cmdable, ttl time.Duration) *Sessions {
	return &Sessions{rdb: rdb, ttl: ttl}
}

func (s *Sessions) key(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// NewToken mints an opaque token without binding it to an account.
func (s *Sessions) NewToken() string {
	return uuid.NewString()
}

// Bind associates a token with a user id, refreshing its lifetime. Login and
// register both bind the visitor's existing token so the conversation history
// carries across the authentication boundary.
func (s *Sessions) Bind(ctx context.Context, token string, userID int64) error {
	if err := s.rdb.Set(ctx, s.key(token), userID, s.ttl).Err(); err != nil {
		logx.Error().Err(err).Msg("failed to bind session token")
		return errx.WrapRedis(err)
	}
	return nil
}

// UserID resolves a token to its bound user id. The second return is false
// for anonymous or expired tokens.
func (s *Sessions) UserID(ctx context.Context, token string) (int64, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		logx.Error().Err(err).Msg("failed to resolve session token")
		return 0, false, errx.WrapRedis(err)
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt session value: %w", err)
	}
	return id, true, nil
}

// Unbind drops the token's account binding on logout. The token itself stays
// valid as an anonymous session key.
func (s *Sessions) Unbind(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, s.key(token)).Err(); err != nil {
		logx.Error().Err(err).Msg("failed to unbind session token")
		return errx.WrapRedis(err)
	}
	return nil
}
