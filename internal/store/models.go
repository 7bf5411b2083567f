// Package store is the relational persistence layer: gorm models and the
// upsert/query helpers the pipeline stages use. It is grounded on the
// teacher's db.Database wrapper (find-by-natural-key-then-save upserts,
// a thin struct embedding *gorm.DB) generalized from wallet/NFT/asset
// tracking to XRPL NFT activity tracking.
package store

import (
	"time"
)

// Activity type constants, matching spec.md's classification table.
const (
	ActivityMint         = "mint"
	ActivityAcceptOffer  = "accept_offer"
	ActivityCreateOffer  = "create_offer"
	ActivityCancelOffer  = "cancel_offer"
	ActivityBurn         = "burn"
)

// Notification delivery status.
const (
	NotificationPending   = "pending"
	NotificationSent      = "sent"
	NotificationFailed    = "failed"
	NotificationExhausted = "exhausted"
)

// Enrichment job status, the durable per-NFT retry queue row spec.md §4.3
// requires but does not name as a top-level entity.
const (
	EnrichmentPending   = "pending"
	EnrichmentCompleted = "completed"
	EnrichmentFailed    = "failed"
)

// Ledger gap status for the persisted form of detectLedgerGaps().
const (
	GapOpen        = "open"
	GapBackfilling = "backfilling"
	GapClosed      = "closed"
)

// Collection groups NFTs minted under one issuer+taxon pair.
type Collection struct {
	ID             string `gorm:"primaryKey"` // issuerAddress:taxon
	IssuerAddress  string `gorm:"index"`
	Taxon          uint32
	Name           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NFT is the current known state of one XRPL NFToken.
type NFT struct {
	NFTokenID       string `gorm:"column:nftoken_id;primaryKey"`
	CollectionID    string `gorm:"index"`
	OwnerAddress    string `gorm:"index"`
	MetadataURI     string
	MetadataJSON    string // normalized JSON blob, see enrich.NormalizedMetadata
	ImageURL        string // cached object-store URL, empty until enriched
	Traits          string // JSON array of {trait_type, value}, immutable once fetched per spec.md §4.3
	MintedAt        *time.Time
	EnrichedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NftActivity is one classified, deduplicated ledger event against an NFT.
type NftActivity struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	DedupeHash    string `gorm:"uniqueIndex"` // sha256(txHash||activityType||nftId), the true dedup authority
	NFTokenID     string `gorm:"index"`
	CollectionID  string `gorm:"index"`
	ActivityType  string `gorm:"index"`
	TxHash        string `gorm:"index"`
	LedgerIndex   uint32 `gorm:"index"`
	PriceDrops    string // decimal string, parsed into uint256.Int at use sites
	Currency      string // "XRP" for a bare drops Amount, else the issued-currency code
	Issuer        string // issued-currency issuer address; empty for XRP
	FromAddress   string
	ToAddress     string
	OccurredAt    time.Time
	CreatedAt     time.Time
}

// TraitFilter is one trait_type/value predicate belonging to an AlertConfig.
type TraitFilter struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	AlertConfigID uint64 `gorm:"index"`
	TraitType     string
	TraitValue    string
}

// NotificationChannel is one delivery target belonging to an AlertConfig.
// The Type discriminates which of the Discord/Email/Webhook fields apply,
// mirroring the tagged-variant polymorphism spec.md's dispatcher uses.
type NotificationChannel struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	AlertConfigID   uint64 `gorm:"index"`
	Type            string // "discord", "email", "webhook"
	DiscordWebhook  string
	DiscordMentions string // comma-separated raw mention tokens, e.g. "<@123>,<@&456>"
	EmailRecipients string // comma-separated addresses; each validated by ValidateChannel
	EmailSubject    string // optional override; empty uses the default "🚨 <TYPE> Alert: ..." format
	WebhookURL      string
	WebhookMethod   string // POST, PUT, PATCH
	WebhookAuthType  string // "", "bearer", "basic", "api_key"
	WebhookAuthValue string
}

// AlertConfig is one user-defined filter: a conjunction of activity type,
// optional collection scope, price bounds and trait filters.
type AlertConfig struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	UserID         string `gorm:"index"`
	CollectionID   *string `gorm:"index"` // nil matches any collection
	ActivityTypes  string  // comma-separated subset of the Activity* constants
	MinPriceDrops  *string // decimal string, nil means unbounded
	MaxPriceDrops  *string
	Enabled        bool `gorm:"index"`
	TraitFilters   []TraitFilter        `gorm:"foreignKey:AlertConfigID"`
	Channels       []NotificationChannel `gorm:"foreignKey:AlertConfigID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Notification is one attempted delivery of a matched (activity, alert) pair.
type Notification struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	AlertConfigID   uint64 `gorm:"index"`
	ActivityID      uint64 `gorm:"index"`
	ChannelID       uint64
	Status          string    `gorm:"index"`
	RetryCount      int
	ScheduledAt     time.Time `gorm:"index"` // next eligible dispatch time; DueNotifications gates on this
	LastError       string
	LastAttemptAt   *time.Time
	SentAt          *time.Time
	CreatedAt       time.Time
}

// LedgerSyncStatus is the single row tracking how far the pipeline has
// consumed the ledger stream, the persisted counterpart to the Connection
// Supervisor's in-memory watermark.
type LedgerSyncStatus struct {
	ID                  uint8 `gorm:"primaryKey"` // always 1, singleton row
	LastProcessedLedger uint32
	UpdatedAt           time.Time
}

// EnrichmentJob is the durable retry-queue row per NFT spec.md §4.3 requires.
type EnrichmentJob struct {
	NFTokenID     string `gorm:"column:nftoken_id;primaryKey"`
	Status        string `gorm:"index"`
	RetryCount    int
	LastAttemptAt *time.Time
	NextRetryAt   time.Time `gorm:"index"`
	LastError     string
}

// ProcessedLedgerGap is the persisted form of a gap detectLedgerGaps() found,
// so a Connection Supervisor restart does not lose track of an open gap.
type ProcessedLedgerGap struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	StartIndex uint32
	EndIndex   uint32
	Status     string `gorm:"index"`
	DetectedAt time.Time
	ClosedAt   *time.Time
}
