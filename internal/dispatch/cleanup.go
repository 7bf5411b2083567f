package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xrplnotify/xrplnotify/internal/store"
)

// CleanupTask periodically removes exhausted/sent notifications older than
// a retention window, keeping the Notification table from growing
// unbounded. Grounded on the teacher's retryWorker ticker loop.
type CleanupTask struct {
	store     *store.Store
	log       *zap.SugaredLogger
	retention time.Duration
	interval  time.Duration
}

// NewCleanupTask builds a CleanupTask with the given retention window.
func NewCleanupTask(st *store.Store, log *zap.SugaredLogger, retention time.Duration) *CleanupTask {
	return &CleanupTask{store: st, log: log, retention: retention, interval: time.Hour}
}

// Run blocks, sweeping on a fixed interval until ctx is cancelled.
func (c *CleanupTask) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *CleanupTask) sweep() {
	cutoff := time.Now().Add(-c.retention)
	err := c.store.Where("status IN (?, ?) AND created_at < ?",
		store.NotificationSent, store.NotificationExhausted, cutoff).
		Delete(&store.Notification{}).Error
	if err != nil && c.log != nil {
		c.log.Errorw("notification cleanup sweep failed", "error", err)
	}
}
