package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "session:revoked:"

// RevocationList remembers logged-out session ids until their artifacts would
// have expired anyway.
// Key format: session:revoked:<session_id>
type RevocationList struct {
	client *redis.Client
	now    func() time.Time
}

// NewRevocationList creates a RevocationList wrapping the given Redis client.
func NewRevocationList(client *redis.Client) *RevocationList {
	return &RevocationList{client: client, now: time.Now}
}

// Revoke marks sessionID as cleared. Artifacts already past until are not
// recorded since they no longer verify.
func (r *RevocationList) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.SetNX(ctx, r.key(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether sessionID has been cleared.
func (r *RevocationList) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return n > 0, nil
}

func (r *RevocationList) key(sessionID string) string {
	return revokedPrefix + sessionID
}
