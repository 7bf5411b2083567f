package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Store wraps *gorm.DB with the pipeline's query and upsert helpers, the
// same shape as the teacher's db.Database wrapper.
type Store struct {
	*gorm.DB
}

// Open connects to the database named by url, dispatching on its scheme
// (sqlite:// for dev/test, mysql:// for production) and runs AutoMigrate.
func Open(url string) (*Store, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(url, "sqlite://"))
	case strings.HasPrefix(url, "mysql://"):
		dsn := strings.TrimPrefix(url, "mysql://")
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %s", url)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.AutoMigrate(
		&Collection{}, &NFT{}, &NftActivity{},
		&AlertConfig{}, &TraitFilter{}, &NotificationChannel{}, &Notification{},
		&LedgerSyncStatus{}, &EnrichmentJob{}, &ProcessedLedgerGap{},
	); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return s.DB.FirstOrCreate(&LedgerSyncStatus{ID: 1}).Error
}

// Transaction runs fn inside a single SQL transaction, passing it a *Store
// scoped to that transaction's *gorm.DB so callers can reuse the same
// upsert/insert helpers inside and outside a transaction.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	return s.DB.Transaction(func(gtx *gorm.DB) error {
		return fn(&Store{DB: gtx})
	})
}

// IsDuplicateDedupeHash reports whether err is a unique-constraint violation
// on NftActivity.DedupeHash, the dedup authority spec.md §9 requires the
// database (not the in-memory LRU ring) to enforce.
func IsDuplicateDedupeHash(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") && strings.Contains(msg, "dedupe_hash")
}

// UpsertCollection finds-or-creates a Collection by its natural key (id),
// following the teacher's SaveNFT find-by-natural-key-then-save pattern.
func (s *Store) UpsertCollection(c *Collection) error {
	var existing Collection
	err := s.Where("id = ?", c.ID).First(&existing).Error
	if err == nil {
		c.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.Save(c).Error
}

// UpsertNFT finds-or-creates an NFT by token id, preserving Traits/EnrichedAt
// if already set (metadata is immutable once fetched, per spec.md §4.3).
func (s *Store) UpsertNFT(n *NFT) error {
	var existing NFT
	err := s.Where("nftoken_id = ?", n.NFTokenID).First(&existing).Error
	if err == nil {
		n.CreatedAt = existing.CreatedAt
		if existing.EnrichedAt != nil {
			n.Traits = existing.Traits
			n.MetadataJSON = existing.MetadataJSON
			n.ImageURL = existing.ImageURL
			n.EnrichedAt = existing.EnrichedAt
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.Save(n).Error
}

// InsertActivity inserts one classified activity. The unique index on
// DedupeHash is the true dedup authority: a duplicate insert returns a
// constraint error the classifier treats as "already recorded", never a
// fatal failure (spec.md §9 design note).
func (s *Store) InsertActivity(a *NftActivity) error {
	return s.Create(a).Error
}

// AdvanceLedgerSyncStatus persists the high-water mark after a batch commits.
func (s *Store) AdvanceLedgerSyncStatus(ledgerIndex uint32) error {
	return s.Model(&LedgerSyncStatus{}).Where("id = ?", 1).Updates(map[string]interface{}{
		"last_processed_ledger": ledgerIndex,
		"updated_at":            time.Now(),
	}).Error
}

// LastProcessedLedger returns the persisted watermark.
func (s *Store) LastProcessedLedger() (uint32, error) {
	var row LedgerSyncStatus
	if err := s.First(&row, 1).Error; err != nil {
		return 0, err
	}
	return row.LastProcessedLedger, nil
}

// EnqueueEnrichment creates or resets the durable enrichment job for an NFT.
func (s *Store) EnqueueEnrichment(nftID string) error {
	job := EnrichmentJob{
		NFTokenID:   nftID,
		Status:      EnrichmentPending,
		NextRetryAt: time.Now(),
	}
	var existing EnrichmentJob
	err := s.Where("nftoken_id = ?", nftID).First(&existing).Error
	if err == nil {
		if existing.Status == EnrichmentCompleted {
			return nil
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.Create(&job).Error
}

// DueEnrichmentJobs returns pending jobs whose NextRetryAt has passed; a
// failed job has used up its retry budget and is not returned.
func (s *Store) DueEnrichmentJobs(limit int) ([]EnrichmentJob, error) {
	var jobs []EnrichmentJob
	err := s.Where("status = ? AND next_retry_at <= ?", EnrichmentPending, time.Now()).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// MarkEnrichmentResult records the outcome of an enrichment attempt and, on
// failure, schedules the next retry per the supplied backoff schedule.
func (s *Store) MarkEnrichmentResult(nftID string, ok bool, errMsg string, backoff []time.Duration, maxRetry int) error {
	var job EnrichmentJob
	if err := s.Where("nftoken_id = ?", nftID).First(&job).Error; err != nil {
		return err
	}
	now := time.Now()
	job.LastAttemptAt = &now
	if ok {
		job.Status = EnrichmentCompleted
		job.LastError = ""
	} else {
		job.RetryCount++
		job.LastError = errMsg
		if job.RetryCount >= maxRetry {
			job.Status = EnrichmentFailed
		} else {
			idx := job.RetryCount - 1
			if idx >= len(backoff) {
				idx = len(backoff) - 1
			}
			job.NextRetryAt = now.Add(backoff[idx])
		}
	}
	return s.Save(&job).Error
}

// ActiveAlertConfigsForCollection returns enabled alerts whose CollectionID
// is either nil (matches any collection) or equal to collectionID — the
// corrected form of the Open Question §9 flags: never the inverted branch.
func (s *Store) ActiveAlertConfigsForCollection(collectionID string) ([]AlertConfig, error) {
	var configs []AlertConfig
	err := s.Preload("TraitFilters").Preload("Channels").
		Where("enabled = ? AND (collection_id IS NULL OR collection_id = ?)", true, collectionID).
		Find(&configs).Error
	return configs, err
}

// RecordOpenGap persists a newly detected ledger gap.
func (s *Store) RecordOpenGap(start, end uint32) error {
	return s.Create(&ProcessedLedgerGap{
		StartIndex: start,
		EndIndex:   end,
		Status:     GapOpen,
		DetectedAt: time.Now(),
	}).Error
}

// OpenGaps returns gaps not yet closed by a completed backfill.
func (s *Store) OpenGaps() ([]ProcessedLedgerGap, error) {
	var gaps []ProcessedLedgerGap
	err := s.Where("status != ?", GapClosed).Order("start_index ASC").Find(&gaps).Error
	return gaps, err
}

// CloseGap marks a gap as backfilled.
func (s *Store) CloseGap(id uint64) error {
	now := time.Now()
	return s.Model(&ProcessedLedgerGap{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":    GapClosed,
		"closed_at": now,
	}).Error
}

// CreateNotification inserts a new pending notification row for a matched
// pair, due immediately (spec.md §4.5's `enqueue` contract: scheduledAt=now).
func (s *Store) CreateNotification(n *Notification) error {
	if n.ScheduledAt.IsZero() {
		n.ScheduledAt = time.Now()
	}
	return s.Create(n).Error
}

// DueNotifications returns pending/failed notifications whose ScheduledAt
// has passed, oldest first, for the dispatcher worker pool to claim.
func (s *Store) DueNotifications(limit int) ([]Notification, error) {
	var rows []Notification
	err := s.Where("status IN (?, ?) AND scheduled_at <= ?", NotificationPending, NotificationFailed, time.Now()).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkNotificationResult records a delivery attempt outcome. On failure it
// schedules the next attempt per spec.md §4.5 step 5: retryAfter (sender-
// reported, e.g. a 429's Retry-After) takes priority over retryDelays, whose
// last entry is reused for any retry beyond its length.
func (s *Store) MarkNotificationResult(id uint64, ok bool, errMsg string, retryAfter time.Duration, retryDelays []time.Duration, maxAttempts int) error {
	var n Notification
	if err := s.First(&n, id).Error; err != nil {
		return err
	}
	now := time.Now()
	n.LastAttemptAt = &now
	if ok {
		n.Status = NotificationSent
		n.SentAt = &now
		n.LastError = ""
	} else {
		n.LastError = errMsg
		n.RetryCount++
		if n.RetryCount >= maxAttempts {
			n.Status = NotificationExhausted
		} else {
			n.Status = NotificationFailed
			n.ScheduledAt = now.Add(nextRetryDelay(retryAfter, retryDelays, n.RetryCount-1))
		}
	}
	return s.Save(&n).Error
}

func nextRetryDelay(retryAfter time.Duration, retryDelays []time.Duration, retryCount int) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	if len(retryDelays) == 0 {
		return 5 * time.Second
	}
	idx := retryCount
	if idx >= len(retryDelays) {
		idx = len(retryDelays) - 1
	}
	return retryDelays[idx]
}

// Stats mirrors the teacher's GetAssetStats: counts keyed by status plus a
// couple of headline totals, serialized directly by the /stats endpoint.
func (s *Store) Stats() (map[string]int64, error) {
	stats := make(map[string]int64)

	var nftCount int64
	if err := s.Model(&NFT{}).Count(&nftCount).Error; err != nil {
		return nil, err
	}
	stats["nft_count"] = nftCount

	var activityCount int64
	if err := s.Model(&NftActivity{}).Count(&activityCount).Error; err != nil {
		return nil, err
	}
	stats["activity_count"] = activityCount

	for _, status := range []string{NotificationPending, NotificationSent, NotificationFailed, NotificationExhausted} {
		var count int64
		if err := s.Model(&Notification{}).Where("status = ?", status).Count(&count).Error; err != nil {
			return nil, err
		}
		stats["notifications_"+status] = count
	}

	var openGaps int64
	if err := s.Model(&ProcessedLedgerGap{}).Where("status != ?", GapClosed).Count(&openGaps).Error; err != nil {
		return nil, err
	}
	stats["open_ledger_gaps"] = openGaps

	return stats, nil
}
