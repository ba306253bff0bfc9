package session

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/99minutos/admin-console/internal/core/ports"
)

// MemoryRevocationList keeps revoked session ids in process memory. It is the
// fallback when no Redis is configured, so revocations do not survive a restart
// and are not shared between replicas.
type MemoryRevocationList struct {
	cache *ttlcache.Cache[string, struct{}]
	now   func() time.Time
}

var _ ports.RevocationList = (*MemoryRevocationList)(nil)

// NewMemoryRevocationList starts the cache's expiry loop. Call Stop on shutdown.
func NewMemoryRevocationList() *MemoryRevocationList {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go cache.Start()
	return &MemoryRevocationList{cache: cache, now: time.Now}
}

// Revoke remembers sessionID until until.
func (m *MemoryRevocationList) Revoke(_ context.Context, sessionID string, until time.Time) error {
	ttl := until.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	m.cache.Set(sessionID, struct{}{}, ttl)
	return nil
}

// IsRevoked reports whether sessionID was revoked and has not yet expired.
func (m *MemoryRevocationList) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	return m.cache.Get(sessionID) != nil, nil
}

// Stop ends the expiry loop.
func (m *MemoryRevocationList) Stop() {
	m.cache.Stop()
}
