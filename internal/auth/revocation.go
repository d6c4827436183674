package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRevocationUnavailable wraps Redis failures in the revocation list.
var ErrRevocationUnavailable = errors.New("revocation list unavailable")

// Revoker keeps a Redis deny-list of token IDs until the tokens expire.
type Revoker struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRevoker returns a Redis-backed deny-list.
func NewRevoker(client redis.UniversalClient) *Revoker {
	return &Revoker{redis: client, prefix: "auth:revoked:"}
}

// Revoke deny-lists tokenID until expiresAt. Already expired tokens are skipped.
func (r *Revoker) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 || tokenID == "" {
		return nil
	}
	if err := r.redis.Set(ctx, r.prefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked.
func (r *Revoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return n > 0, nil
}
