// Package enrich is the Metadata & Image Enricher: it fetches an NFT's
// metadata JSON (trying the configured IPFS gateway fallback chain for
// ipfs:// URIs), normalizes it, optionally caches its image to an object
// store, and persists the result once per NFT — metadata is immutable
// after the first successful fetch, per spec.md §4.3.
//
// The worker-pool/retry-queue shape is grounded on the teacher's
// core.BackupManager.ProcessPendingAssets: claim a bounded batch of due
// rows, process each with a bounded retry budget, record the outcome.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/xrplnotify/xrplnotify/internal/metrics"
	"github.com/xrplnotify/xrplnotify/internal/objectstore"
	"github.com/xrplnotify/xrplnotify/internal/store"
)

// fetchCache holds recently fetched gateway responses keyed by resolved URL,
// so a retried enrichment job (after a crash or a lock contention skip)
// doesn't re-hit a rate-limited IPFS gateway for bytes it already has.
var fetchCache = fastcache.New(32 * 1024 * 1024)

// Enricher drives the durable EnrichmentJob queue.
type Enricher struct {
	store    *store.Store
	log      *zap.SugaredLogger
	lock     *DistLock // nil disables distributed locking (single-replica deployments)
	objects  objectstore.Store
	gateways []string
	httpc    *retryablehttp.Client

	backoff  []time.Duration
	maxRetry int

	jsonTimeout  time.Duration
	imageTimeout time.Duration
}

// Config configures an Enricher.
type Config struct {
	Gateways     []string
	Backoff      []time.Duration
	MaxRetry     int
	JSONTimeout  time.Duration
	ImageTimeout time.Duration
}

// New builds an Enricher. lock and objects may both be nil, in which case
// enrichment runs single-replica and metadata-only respectively.
func New(st *store.Store, log *zap.SugaredLogger, lock *DistLock, objects objectstore.Store, cfg Config) *Enricher {
	httpc := retryablehttp.NewClient()
	httpc.RetryMax = 2
	httpc.Logger = nil

	jsonTimeout := cfg.JSONTimeout
	if jsonTimeout == 0 {
		jsonTimeout = 15 * time.Second
	}
	imageTimeout := cfg.ImageTimeout
	if imageTimeout == 0 {
		imageTimeout = 30 * time.Second
	}

	return &Enricher{
		store:        st,
		log:          log,
		lock:         lock,
		objects:      objects,
		gateways:     cfg.Gateways,
		httpc:        httpc,
		backoff:      cfg.Backoff,
		maxRetry:     cfg.MaxRetry,
		jsonTimeout:  jsonTimeout,
		imageTimeout: imageTimeout,
	}
}

// Enqueue creates the durable job for a freshly minted NFT. Wired as the
// classify.EnrichEnqueuer callback.
func (e *Enricher) Enqueue(nftID string) {
	if err := e.store.EnqueueEnrichment(nftID); err != nil && e.log != nil {
		e.log.Errorw("failed to enqueue enrichment job", "nftId", nftID, "error", err)
	}
}

// RunOnce claims up to limit due jobs and processes them, returning the
// count processed. Intended to be called on a ticker by the caller's
// process loop (cmd/xrplnotify wires the ticker).
func (e *Enricher) RunOnce(ctx context.Context, limit int) int {
	jobs, err := e.store.DueEnrichmentJobs(limit)
	if err != nil {
		if e.log != nil {
			e.log.Errorw("failed to load due enrichment jobs", "error", err)
		}
		return 0
	}

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return len(jobs)
		default:
		}
		e.processOne(ctx, job.NFTokenID)
	}
	return len(jobs)
}

func (e *Enricher) processOne(ctx context.Context, nftID string) {
	if e.lock != nil {
		held, err := e.lock.Acquire(nftID)
		if err != nil {
			// another replica is already enriching this NFT; not an error.
			return
		}
		defer held.Release()
	}

	nft, err := e.fetchNFT(nftID)
	if err != nil {
		e.markResult(nftID, false, err.Error())
		return
	}
	if nft.EnrichedAt != nil {
		e.markResult(nftID, true, "")
		return
	}

	metaJSON, fetchErr := e.fetchMetadataJSON(ctx, nft.MetadataURI)
	if fetchErr != nil {
		e.markResult(nftID, false, fetchErr.Error())
		return
	}

	normalized, parseErr := Normalize(metaJSON)
	if parseErr != nil {
		e.markResult(nftID, false, fmt.Sprintf("parsing metadata: %v", parseErr))
		return
	}

	imageURL := ""
	if normalized.Image != "" {
		imageURL, err = e.fetchAndCacheImage(ctx, nftID, normalized.Image)
		if err != nil && e.log != nil {
			// image failures don't fail the whole enrichment: metadata-only
			// is an accepted degraded state per spec.md §4.3.
			e.log.Warnw("image cache failed, continuing metadata-only", "nftId", nftID, "error", err)
		}
	}

	traitsJSON, _ := json.Marshal(normalized.Attributes)
	normalizedJSON, _ := json.Marshal(normalized)
	now := time.Now()
	nft.MetadataJSON = string(normalizedJSON)
	nft.Traits = string(traitsJSON)
	nft.ImageURL = imageURL
	nft.EnrichedAt = &now

	if err := e.store.UpsertNFT(nft); err != nil {
		e.markResult(nftID, false, fmt.Sprintf("persisting enrichment: %v", err))
		return
	}

	e.markResult(nftID, true, "")
}

func (e *Enricher) fetchNFT(nftID string) (*store.NFT, error) {
	var nft store.NFT
	if err := e.store.Where("nftoken_id = ?", nftID).First(&nft).Error; err != nil {
		return nil, fmt.Errorf("loading nft %s: %w", nftID, err)
	}
	return &nft, nil
}

// fetchMetadataJSON resolves uri (through the IPFS gateway fallback chain
// when it is an ipfs:// URI) and returns the raw response body.
func (e *Enricher) fetchMetadataJSON(ctx context.Context, uri string) ([]byte, error) {
	if !IsIPFSURI(uri) {
		return e.fetchURL(ctx, uri, e.jsonTimeout)
	}

	var lastErr error
	for _, gw := range e.gateways {
		body, err := e.fetchURL(ctx, ResolveGateway(uri, gw), e.jsonTimeout)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all gateways failed for %s: %w", uri, lastErr)
}

func (e *Enricher) fetchAndCacheImage(ctx context.Context, nftID, imageURI string) (string, error) {
	var body []byte
	var err error
	if IsIPFSURI(imageURI) {
		for _, gw := range e.gateways {
			body, err = e.fetchURL(ctx, ResolveGateway(imageURI, gw), e.imageTimeout)
			if err == nil {
				break
			}
		}
	} else {
		body, err = e.fetchURL(ctx, imageURI, e.imageTimeout)
	}
	if err != nil {
		return "", err
	}
	return CacheImage(e.objects, nftID, body, "")
}

func (e *Enricher) fetchURL(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if cached, ok := fetchCache.HasGet(nil, []byte(url)); ok {
		return cached, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	fetchCache.Set([]byte(url), body)
	return body, nil
}

func (e *Enricher) markResult(nftID string, ok bool, errMsg string) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	metrics.EnrichmentAttempts.WithLabelValues(outcome).Inc()
	if err := e.store.MarkEnrichmentResult(nftID, ok, errMsg, e.backoff, e.maxRetry); err != nil && e.log != nil {
		e.log.Errorw("failed to record enrichment result", "nftId", nftID, "error", err)
	}
}
