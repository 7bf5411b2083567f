// Package metrics registers the pipeline's prometheus/client_golang
// collectors. Grounded on the teacher's use of a single package-level
// registry exposed under /metrics; generalized from backup-job counters to
// pipeline-stage counters (SPEC_FULL.md §6's internal HTTP surface).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgersProcessed counts ledger-close messages the supervisor accepted.
	LedgersProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xrplnotify_ledgers_processed_total",
		Help: "Total ledger-close messages accepted by the connection supervisor.",
	})

	// LedgerGapsDetected counts sequence jumps the supervisor had to backfill.
	LedgerGapsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xrplnotify_ledger_gaps_detected_total",
		Help: "Total ledger index gaps detected by the connection supervisor.",
	})

	// ActivitiesClassified counts NFT activities the classifier accepted,
	// labeled by activity type.
	ActivitiesClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrplnotify_activities_classified_total",
		Help: "Total classified NFT activities, by activity type.",
	}, []string{"activity_type"})

	// ActivitiesDeduped counts activities rejected as already-recorded by
	// the DedupeHash unique index.
	ActivitiesDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xrplnotify_activities_deduped_total",
		Help: "Total classified activities rejected as duplicates by the database's unique index.",
	})

	// EnrichmentAttempts counts enrichment job attempts, labeled by outcome.
	EnrichmentAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrplnotify_enrichment_attempts_total",
		Help: "Total metadata/image enrichment attempts, by outcome (success, failure).",
	}, []string{"outcome"})

	// NotificationsDispatched counts delivery attempts, labeled by channel
	// type and outcome.
	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrplnotify_notifications_dispatched_total",
		Help: "Total notification delivery attempts, by channel type and outcome.",
	}, []string{"channel_type", "outcome"})

	// QueueDepth reports the last-observed pending count per stage queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xrplnotify_queue_depth",
		Help: "Last-observed pending item count per stage queue.",
	}, []string{"queue"})
)
