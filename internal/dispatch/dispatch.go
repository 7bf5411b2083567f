// Package dispatch is the Notification Dispatcher: a worker pool that
// claims due Notification rows, renders a message for the matched activity,
// sends it over the channel's configured transport (Discord, Email,
// generic Webhook) and records the outcome with bounded retry, giving
// at-least-once delivery (spec.md P5).
//
// The worker-pool/claim-and-record loop is grounded on the teacher's
// BackupService.retryWorker + ProcessPendingAssets (periodic ticker claims
// a bounded batch, each item processed independently, outcome recorded).
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xrplnotify/xrplnotify/internal/metrics"
	"github.com/xrplnotify/xrplnotify/internal/store"
)

// Payload is the joined view of a Notification with its Activity, NFT,
// Collection and AlertConfig, assembled once per attempt per spec.md §4.5
// step 2 and handed to whichever channel-specific sender runs.
type Payload struct {
	NotificationID uint64
	Activity       store.NftActivity
	NFT            store.NFT
	Collection     store.Collection
	AlertConfig    store.AlertConfig
	TriggeredAt    time.Time
}

// SendResult is the uniform outcome every channel sender returns (spec.md
// §4.5 step 3: `{success, messageId?, error?, retryAfter?}`), so the
// dispatcher's retry loop — not the sender — owns rescheduling.
type SendResult struct {
	Success    bool
	MessageID  string
	Err        error
	RetryAfter time.Duration
}

// Dispatcher owns the notification worker pool.
type Dispatcher struct {
	store         *store.Store
	log           *zap.SugaredLogger
	httpc         *http.Client
	mailAPIKey    string
	mailFromEmail string
	maxAttempts   int
	retryDelays   []time.Duration
	workers       int
}

// Config configures a Dispatcher.
type Config struct {
	MailAPIKey    string
	MailFromEmail string
	MaxAttempts   int
	// RetryDelays is the default backoff schedule applied when a sender does
	// not report a retryAfter (spec.md §4.5 step 5); defaults to {1s,5s,15s}.
	RetryDelays []time.Duration
	Workers     int
	Timeout     time.Duration
}

// New builds a Dispatcher. Sender network calls intentionally use a plain
// *http.Client rather than go-retryablehttp: the per-sender status-code
// handling (Discord's 429/Retry-After, webhook 2xx/4xx/5xx mapping) needs
// direct control over the single request/response, and the outer
// Notification retry loop already owns the attempt/backoff schedule.
func New(st *store.Store, log *zap.SugaredLogger, cfg Config) *Dispatcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	retryDelays := cfg.RetryDelays
	if len(retryDelays) == 0 {
		retryDelays = []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}
	}

	return &Dispatcher{
		store:         st,
		log:           log,
		httpc:         &http.Client{Timeout: timeout},
		mailAPIKey:    cfg.MailAPIKey,
		mailFromEmail: cfg.MailFromEmail,
		maxAttempts:   maxAttempts,
		retryDelays:   retryDelays,
		workers:       workers,
	}
}

// Enqueue validates the channel and creates a pending Notification row for
// one matched (activity, config, channel) triple. Validation happens here,
// before the row ever reaches a worker, so a malformed channel is rejected
// without ever attempting a network call (spec.md P7).
func (d *Dispatcher) Enqueue(activity store.NftActivity, cfg store.AlertConfig, ch store.NotificationChannel) error {
	if err := ValidateChannel(ch); err != nil {
		return fmt.Errorf("rejecting notification for invalid channel: %w", err)
	}
	return d.store.CreateNotification(&store.Notification{
		AlertConfigID: cfg.ID,
		ActivityID:    activity.ID,
		ChannelID:     ch.ID,
		Status:        store.NotificationPending,
	})
}

// RunOnce claims up to limit due notifications and dispatches them across
// d.workers concurrent goroutines, returning once all claimed rows have
// been attempted.
func (d *Dispatcher) RunOnce(ctx context.Context, limit int) int {
	due, err := d.store.DueNotifications(limit)
	if err != nil {
		if d.log != nil {
			d.log.Errorw("failed to load due notifications", "error", err)
		}
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	sem := make(chan struct{}, d.workers)
	done := make(chan struct{}, len(due))

	for _, n := range due {
		n := n
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			d.process(ctx, n)
		}()
	}

	for range due {
		<-done
	}
	return len(due)
}

func (d *Dispatcher) process(ctx context.Context, n store.Notification) {
	payload, ch, ok := d.load(n)
	if !ok {
		return
	}

	var result SendResult
	switch ch.Type {
	case "discord":
		result = d.sendDiscord(ch, payload)
	case "email":
		result = d.sendEmail(ch, payload)
	case "webhook":
		result = d.sendWebhook(ch, payload)
	default:
		result = SendResult{Err: fmt.Errorf("unknown channel type %q", ch.Type)}
	}

	errMsg := ""
	outcome := "success"
	if !result.Success {
		outcome = "failure"
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
	}
	metrics.NotificationsDispatched.WithLabelValues(ch.Type, outcome).Inc()
	if markErr := d.store.MarkNotificationResult(n.ID, result.Success, errMsg, result.RetryAfter, d.retryDelays, d.maxAttempts); markErr != nil && d.log != nil {
		d.log.Errorw("failed to record notification result", "notificationId", n.ID, "error", markErr)
	}
}

// load joins a Notification with its Activity, NFT, Collection and
// AlertConfig per spec.md §4.5 step 2. The NFT and Collection lookups are
// best-effort: a notification whose NFT row has not yet been enriched (or
// whose collection row lags behind) still dispatches, just with those
// fields left zero-valued.
func (d *Dispatcher) load(n store.Notification) (Payload, store.NotificationChannel, bool) {
	var activity store.NftActivity
	if err := d.store.First(&activity, n.ActivityID).Error; err != nil {
		if d.log != nil {
			d.log.Errorw("notification references missing activity", "notificationId", n.ID, "activityId", n.ActivityID, "error", err)
		}
		return Payload{}, store.NotificationChannel{}, false
	}
	var ch store.NotificationChannel
	if err := d.store.First(&ch, n.ChannelID).Error; err != nil {
		if d.log != nil {
			d.log.Errorw("notification references missing channel", "notificationId", n.ID, "channelId", n.ChannelID, "error", err)
		}
		return Payload{}, store.NotificationChannel{}, false
	}

	var nft store.NFT
	_ = d.store.Where("nftoken_id = ?", activity.NFTokenID).First(&nft).Error
	var collection store.Collection
	_ = d.store.Where("id = ?", activity.CollectionID).First(&collection).Error
	var cfg store.AlertConfig
	_ = d.store.First(&cfg, n.AlertConfigID).Error

	return Payload{
		NotificationID: n.ID,
		Activity:       activity,
		NFT:            nft,
		Collection:     collection,
		AlertConfig:    cfg,
		TriggeredAt:    n.CreatedAt,
	}, ch, true
}
