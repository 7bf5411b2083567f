package enrich

import (
	"fmt"
	"time"

	"github.com/RichardKnop/redsync"
	"github.com/gomodule/redigo/redis"
)

// DistLock guards per-NFT enrichment across replicas with a short-lived TTL
// lock, per spec.md §5: two replicas racing the same EnrichmentJob must not
// both fetch the same URI.
type DistLock struct {
	rs *redsync.Redsync
}

// NewDistLock builds a DistLock over a single Redis address.
func NewDistLock(redisAddr string) *DistLock {
	pool := &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", redisAddr)
		},
	}
	return &DistLock{rs: redsync.New([]redsync.Pool{pool})}
}

// Lock is a held mutex; callers must call Release exactly once.
type Lock struct {
	mutex *redsync.Mutex
}

// Acquire blocks briefly (redsync's own internal retry) to take the
// per-NFT lock with a 30s TTL, matching spec.md §5's "short-lived, TTL'd"
// requirement. Returns an error if another replica currently holds it.
func (d *DistLock) Acquire(nftID string) (*Lock, error) {
	mutex := d.rs.NewMutex(
		"enrich-lock:"+nftID,
		redsync.SetExpiry(30*time.Second),
		redsync.SetTries(3),
	)
	if err := mutex.Lock(); err != nil {
		return nil, fmt.Errorf("acquiring enrichment lock for %s: %w", nftID, err)
	}
	return &Lock{mutex: mutex}, nil
}

// Release gives up the lock early (normal completion); if left unreleased
// it still expires after the TTL, so a crashed holder never wedges the NFT.
func (l *Lock) Release() {
	if l == nil || l.mutex == nil {
		return
	}
	l.mutex.Unlock()
}
