package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrTooManyAttempts is returned once the failed-login budget is spent.
	ErrTooManyAttempts = errors.New("too many login attempts")
	// ErrLimiterUnavailable wraps Redis failures.
	ErrLimiterUnavailable = errors.New("login limiter unavailable")
)

// LoginLimiter counts failed dashboard logins per key in fixed Redis windows.
type LoginLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	window      time.Duration
}

// NewLoginLimiter creates a limiter. maxAttempts <= 0 disables limiting.
func NewLoginLimiter(client redis.UniversalClient, maxAttempts int, window time.Duration) *LoginLimiter {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginLimiter{redis: client, maxAttempts: maxAttempts, window: window}
}

// Check returns ErrTooManyAttempts when key has used up its attempts.
func (l *LoginLimiter) Check(ctx context.Context, key string) error {
	if l == nil || l.maxAttempts <= 0 {
		return nil
	}
	count, err := l.redis.Get(ctx, loginKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if count >= int64(l.maxAttempts) {
		return ErrTooManyAttempts
	}
	return nil
}

// Fail records a failed attempt. The window starts at the first failure.
func (l *LoginLimiter) Fail(ctx context.Context, key string) error {
	if l == nil || l.maxAttempts <= 0 {
		return nil
	}
	count, err := l.redis.Incr(ctx, loginKey(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, loginKey(key), l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}
	if count >= int64(l.maxAttempts) {
		return ErrTooManyAttempts
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	if l == nil || l.maxAttempts <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, loginKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}

func loginKey(key string) string {
	return "auth:login:" + key
}
