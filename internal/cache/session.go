package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// revokedSessionPrefix is the Redis key prefix for revoked session fingerprints.
	revokedSessionPrefix = "session:revoked:"
	// defaultRevocationTTL applies to sessions without a known expiry.
	defaultRevocationTTL = 7 * 24 * time.Hour
	// minRevocationTTL covers clock skew between replicas for tokens about to expire.
	minRevocationTTL = time.Minute
)

// RevokeSession marks the session identified by fingerprint as signed out
// until expiresAt. The entry never expires before the token does.
// A zero expiresAt keeps the entry for defaultRevocationTTL.
func (c *Cache) RevokeSession(ctx context.Context, fingerprint string, expiresAt time.Time) error {
	ttl := revocationTTL(time.Now(), expiresAt)
	if err := c.client.Set(ctx, revokedSessionPrefix+fingerprint, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether the session was signed out.
// Errors are returned to the caller; a revocation list that cannot be read
// must not be treated as empty.
func (c *Cache) IsSessionRevoked(ctx context.Context, fingerprint string) (bool, error) {
	err := c.client.Get(ctx, revokedSessionPrefix+fingerprint).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session revocation: %w", err)
	}
	return true, nil
}

func revocationTTL(now, expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return defaultRevocationTTL
	}
	ttl := expiresAt.Sub(now)
	if ttl < minRevocationTTL {
		return minRevocationTTL
	}
	return ttl
}
