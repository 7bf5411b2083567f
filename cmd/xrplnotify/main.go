// Command xrplnotify runs the NFT activity monitoring pipeline: it wires
// together the connection supervisor, classifier, enricher, matcher and
// dispatcher stages described by SPEC_FULL.md and drives them from a
// urfave/cli/v2 entrypoint with start/backfill/stats subcommands.
//
// Grounded on the teacher's cmd/headless/main.go: flag/subcommand-driven
// bootstrap, signal-handled graceful shutdown, a status ticker logging
// periodic health, restructured here as urfave/cli/v2 Commands (the pattern
// the pack's klaytn cmd tree also uses for its node subcommands).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/xrplnotify/xrplnotify/internal/adminapi"
	"github.com/xrplnotify/xrplnotify/internal/classify"
	"github.com/xrplnotify/xrplnotify/internal/config"
	"github.com/xrplnotify/xrplnotify/internal/dispatch"
	"github.com/xrplnotify/xrplnotify/internal/enrich"
	"github.com/xrplnotify/xrplnotify/internal/logging"
	"github.com/xrplnotify/xrplnotify/internal/match"
	"github.com/xrplnotify/xrplnotify/internal/objectstore"
	"github.com/xrplnotify/xrplnotify/internal/store"
	"github.com/xrplnotify/xrplnotify/internal/supervisor"
	"github.com/xrplnotify/xrplnotify/internal/version"
	"github.com/xrplnotify/xrplnotify/internal/xrpl"
)

func main() {
	app := &cli.App{
		Name:    "xrplnotify",
		Usage:   "XRPL NFT activity monitoring and notification pipeline",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config YAML file", EnvVars: []string{"XRPLNOTIFY_CONFIG"}},
		},
		Commands: []*cli.Command{
			{
				Name:   "start",
				Usage:  "run the full pipeline (supervisor, enricher, matcher, dispatcher, admin api)",
				Action: runStart,
			},
			{
				Name:  "backfill",
				Usage: "backfill a closed ledger index range and exit",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "start", Required: true},
					&cli.Uint64Flag{Name: "end", Required: true},
					&cli.StringFlag{Name: "rpc-url", Required: true, Usage: "node JSON-RPC endpoint"},
				},
				Action: runBackfill,
			},
			{
				Name:   "stats",
				Usage:  "print store stats and exit",
				Action: runStats,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String("config"))
}

func runStart(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		FilePath:   cfg.Log.FilePath,
		JSON:       cfg.Log.JSON,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	log.Infow("starting xrplnotify", "version", version.String())

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	var objects objectstore.Store
	if cfg.Objects.Bucket != "" {
		s3Store, err := objectstore.NewS3Store(context.Background(), objectstore.S3Config{
			Bucket:          cfg.Objects.Bucket,
			Region:          cfg.Objects.Region,
			Endpoint:        cfg.Objects.Endpoint,
			AccessKeyID:     cfg.Objects.AccessKeyID,
			SecretAccessKey: cfg.Objects.SecretAccessKey,
			Prefix:          cfg.Objects.Prefix,
		})
		if err != nil {
			return fmt.Errorf("initializing object store: %w", err)
		}
		objects = s3Store
	} else {
		log.Warnw("no object store bucket configured, images will not be cached")
	}

	enricher := enrich.New(st, log, nil, objects, enrich.Config{
		Gateways: cfg.IPFS.Gateways,
		Backoff:  cfg.Retry.Intervals,
		MaxRetry: cfg.Retry.MaxRetry,
	})

	matcher := match.New(st, log)

	dispatcher := dispatch.New(st, log, dispatch.Config{
		MailAPIKey:    cfg.Mail.APIKey,
		MailFromEmail: cfg.Mail.FromEmail,
		MaxAttempts:   cfg.Retry.MaxRetry,
	})

	batcher := classify.NewBatcher(st, log, enricher.Enqueue, 50, 2*time.Second)

	onLedger := func(msg xrpl.LedgerStreamMessage) {}

	onTx := func(ledgerIndex uint32, tx xrpl.Transaction, meta xrpl.Meta) {
		classified, ok := classify.Classify(ledgerIndex, tx, meta, time.Now())
		if !ok {
			return
		}
		batcher.Add(classified)
	}

	backfiller := xrpl.NewRPCBackfiller(rpcURLFromNodes(cfg.Nodes.URLs), onTx, log)

	sup, err := supervisor.New(cfg.Nodes.URLs, st, log, onLedger, onTx, backfiller)
	if err != nil {
		return fmt.Errorf("building supervisor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx)

	admin := adminapi.New(adminapi.Config{Addr: cfg.API.BindAddress}, log, sup, st)
	go func() {
		if err := admin.Start(ctx); err != nil {
			log.Errorw("admin api exited", "error", err)
		}
	}()

	cleanup := dispatch.NewCleanupTask(st, log, 30*24*time.Hour)
	go cleanup.Run(ctx)

	go matchAndDispatchLoop(ctx, st, matcher, dispatcher, log)
	go enrichLoop(ctx, enricher)
	go dispatchLoop(ctx, dispatcher)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	statusTicker := time.NewTicker(30 * time.Second)
	defer statusTicker.Stop()

	for {
		select {
		case <-sigCh:
			log.Infow("shutting down")
			batcher.Flush()
			sup.Stop()
			return nil
		case <-statusTicker.C:
			status := sup.GetStatus()
			log.Infow("status", "activeNode", status.ActiveNode, "lastLedgerIndex", status.LastLedgerIndex, "connectedNodes", status.ConnectedNodes, "openGaps", status.OpenGaps)
		}
	}
}

// matchAndDispatchLoop polls newly inserted activities for alert matches and
// enqueues a Notification per matched channel. A production deployment
// would drive this off the queue.Broker rather than a timer; the polling
// shape here keeps the demo self-contained while exercising the same
// Matcher/Dispatcher contract a broker-driven consumer would.
func matchAndDispatchLoop(ctx context.Context, st *store.Store, matcher *match.Matcher, dispatcher *dispatch.Dispatcher, log interface {
	Errorw(string, ...interface{})
}) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	var lastSeenID uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var activities []store.NftActivity
			if err := st.Where("id > ?", lastSeenID).Order("id ASC").Limit(100).Find(&activities).Error; err != nil {
				log.Errorw("polling activities for matching failed", "error", err)
				continue
			}
			for _, activity := range activities {
				lastSeenID = activity.ID
				var nft store.NFT
				if err := st.Where("nftoken_id = ?", activity.NFTokenID).First(&nft).Error; err != nil {
					continue
				}
				matched, err := matcher.Match(nft, activity)
				if err != nil {
					log.Errorw("matching failed", "activityId", activity.ID, "error", err)
					continue
				}
				for _, m := range matched {
					if err := dispatcher.Enqueue(m.Activity, m.Config, m.Channel); err != nil {
						log.Errorw("enqueueing notification failed", "activityId", activity.ID, "channelId", m.Channel.ID, "error", err)
					}
				}
			}
		}
	}
}

func enrichLoop(ctx context.Context, enricher *enrich.Enricher) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enricher.RunOnce(ctx, 20)
		}
	}
}

func dispatchLoop(ctx context.Context, dispatcher *dispatch.Dispatcher) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dispatcher.RunOnce(ctx, 20)
		}
	}
}

func runBackfill(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log, err := logging.New(logging.Config{Level: cfg.Log.Level})
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	batcher := classify.NewBatcher(st, log, nil, 50, 2*time.Second)
	onTx := func(ledgerIndex uint32, tx xrpl.Transaction, meta xrpl.Meta) {
		classified, ok := classify.Classify(ledgerIndex, tx, meta, time.Now())
		if !ok {
			return
		}
		batcher.Add(classified)
	}

	backfiller := xrpl.NewRPCBackfiller(c.String("rpc-url"), onTx, log)

	start := uint32(c.Uint64("start"))
	end := uint32(c.Uint64("end"))
	if err := backfiller.Backfill(context.Background(), start, end); err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	batcher.Flush()

	fmt.Printf("backfilled ledgers %d-%d\n", start, end)
	return nil
}

func runStats(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	stats, err := st.Stats()
	if err != nil {
		return fmt.Errorf("loading stats: %w", err)
	}
	for k, v := range stats {
		fmt.Printf("%-30s %d\n", k, v)
	}
	return nil
}

// rpcURLFromNodes derives the highest-priority node's HTTP JSON-RPC endpoint
// from its WebSocket URL (wss:// -> https://), the convention XRPL public
// nodes follow for exposing both protocols on the same host.
func rpcURLFromNodes(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	url := urls[0]
	switch {
	case len(url) > 6 && url[:6] == "wss://":
		return "https://" + url[6:]
	case len(url) > 5 && url[:5] == "ws://":
		return "http://" + url[5:]
	default:
		return url
	}
}
