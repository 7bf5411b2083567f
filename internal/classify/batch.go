package classify

import (
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/xrplnotify/xrplnotify/internal/metrics"
	"github.com/xrplnotify/xrplnotify/internal/store"
)

// EnrichEnqueuer is invoked once per freshly-minted NFT that needs metadata
// fetched, decoupling the classifier from the enrich package to avoid an
// import cycle.
type EnrichEnqueuer func(nftID string)

// Batcher accumulates Classified rows and flushes them in one transaction
// per spec.md §4.2: upsert Collections, upsert NFTs, insert Activities,
// advance LedgerSyncStatus — triggered by batch size, a flush interval, or
// an explicit Flush call (graceful shutdown).
//
// The size/time dual-trigger and mutex-guarded accumulator mirror the
// teacher's BackupManager.SyncProgress bookkeeping, generalized from a
// per-wallet sync counter to a cross-ledger write batch.
type Batcher struct {
	store         *store.Store
	log           *zap.SugaredLogger
	enqueueEnrich EnrichEnqueuer

	maxSize  int
	maxDelay time.Duration

	mu      sync.Mutex
	pending []Classified
	timer   *time.Timer
}

// NewBatcher builds a Batcher that flushes at maxSize rows or maxDelay,
// whichever comes first.
func NewBatcher(st *store.Store, log *zap.SugaredLogger, enqueueEnrich EnrichEnqueuer, maxSize int, maxDelay time.Duration) *Batcher {
	return &Batcher{
		store:         st,
		log:           log,
		enqueueEnrich: enqueueEnrich,
		maxSize:       maxSize,
		maxDelay:      maxDelay,
	}
}

// Add queues one classified row, flushing immediately if the batch is full.
func (b *Batcher) Add(c Classified) {
	b.mu.Lock()
	b.pending = append(b.pending, c)
	full := len(b.pending) >= b.maxSize
	if b.timer == nil {
		b.timer = time.AfterFunc(b.maxDelay, b.flushOnTimer)
	}
	b.mu.Unlock()

	if full {
		b.Flush()
	}
}

func (b *Batcher) flushOnTimer() {
	b.Flush()
}

// Flush writes the accumulated batch transactionally and resets the timer.
// Called both by the size/time triggers and by callers that need a forced
// drain (graceful shutdown, tests).
func (b *Batcher) Flush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	maxLedger := uint32(0)
	var newMints []string

	err := b.store.Transaction(func(tx *store.Store) error {
		seenCollections := make(map[string]bool)
		seenNFTs := make(map[string]bool)

		for _, c := range batch {
			if !seenCollections[c.Collection.ID] {
				if err := tx.UpsertCollection(&c.Collection); err != nil {
					return err
				}
				seenCollections[c.Collection.ID] = true
			}
			if !seenNFTs[c.NFT.NFTokenID] {
				if err := tx.UpsertNFT(&c.NFT); err != nil {
					return err
				}
				seenNFTs[c.NFT.NFTokenID] = true
			}
			if err := tx.InsertActivity(&c.Activity); err != nil {
				if store.IsDuplicateDedupeHash(err) {
					metrics.ActivitiesDeduped.Inc()
					continue // already recorded: the unique index is the dedup authority
				}
				return err
			}
			metrics.ActivitiesClassified.WithLabelValues(c.Activity.ActivityType).Inc()
			if c.Activity.LedgerIndex > maxLedger {
				maxLedger = c.Activity.LedgerIndex
			}
			if c.NeedsEnrich {
				newMints = append(newMints, c.NFT.NFTokenID)
			}
		}

		if maxLedger > 0 {
			return tx.AdvanceLedgerSyncStatus(maxLedger)
		}
		return nil
	})

	if err != nil {
		if b.log != nil {
			b.log.Errorw("batch flush failed", "rows", len(batch), "error", err)
		}
		return
	}

	if b.log != nil {
		b.log.Infow("batch flushed", "rows", len(batch), "lastLedgerIndex", maxLedger)
	}

	if b.enqueueEnrich != nil {
		for _, nftID := range lo.Uniq(newMints) {
			b.enqueueEnrich(nftID)
		}
	}
}
