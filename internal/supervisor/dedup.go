package supervisor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// seenRing is the supervisor-level dedup ring spec.md §4.1 describes: the
// last N ledgers' transaction hashes, sized generously so that the same
// ledger observed from two nodes during a failover is only forwarded once.
// This is purely an optimization to avoid waking downstream stages twice in
// the common case — the classifier's dedupe hash and the database's unique
// index remain the true authority, per spec.md §9.
type seenRing struct {
	cache *lru.Cache[string, struct{}]
}

func newSeenRing(ledgerCapacity int, avgTxPerLedger int) (*seenRing, error) {
	size := ledgerCapacity * avgTxPerLedger * 4
	if size < 1024 {
		size = 1024
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("creating dedup ring: %w", err)
	}
	return &seenRing{cache: cache}, nil
}

// seenKey builds the ring key for a (ledgerIndex, txHash) pair.
func seenKey(ledgerIndex uint32, txHash string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", ledgerIndex, txHash)))
	return hex.EncodeToString(sum[:])
}

// seenBefore reports whether this transaction has already passed through
// the ring, marking it seen as a side effect if not.
func (r *seenRing) seenBefore(ledgerIndex uint32, txHash string) bool {
	key := seenKey(ledgerIndex, txHash)
	if _, ok := r.cache.Get(key); ok {
		return true
	}
	r.cache.Add(key, struct{}{})
	return false
}
