package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xrplnotify/xrplnotify/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return st
}

func seedActivityAndChannel(t *testing.T, st *store.Store, webhookURL string) (store.NftActivity, store.NotificationChannel) {
	t.Helper()

	activity := store.NftActivity{DedupeHash: "dh1", NFTokenID: "NFT1", ActivityType: store.ActivityMint, TxHash: "TX1", LedgerIndex: 10, PriceDrops: "1000"}
	require.NoError(t, st.InsertActivity(&activity))

	cfg := store.AlertConfig{UserID: "user1", Enabled: true}
	require.NoError(t, st.Create(&cfg).Error)

	ch := store.NotificationChannel{AlertConfigID: cfg.ID, Type: "webhook", WebhookURL: webhookURL, WebhookMethod: "POST"}
	require.NoError(t, st.Create(&ch).Error)

	return activity, ch
}

// TestAtLeastOnceDeliveryWithBoundedRetry is the P5 property: a channel
// that fails transiently is retried, a notification eventually marked sent
// once the endpoint recovers, and permanently failing deliveries stop after
// maxAttempts rather than retrying forever.
func TestAtLeastOnceDeliveryWithBoundedRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	st := newTestStore(t)
	activity, ch := seedActivityAndChannel(t, st, server.URL)

	var cfg store.AlertConfig
	require.NoError(t, st.First(&cfg, ch.AlertConfigID).Error)

	d := New(st, nil, Config{MaxAttempts: 5, Workers: 1, RetryDelays: []time.Duration{5 * time.Millisecond}})
	require.NoError(t, d.Enqueue(activity, cfg, ch))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d.RunOnce(ctx, 10)
		time.Sleep(10 * time.Millisecond)
	}

	var n store.Notification
	require.NoError(t, st.First(&n).Error)
	require.Equal(t, store.NotificationSent, n.Status)
	require.EqualValues(t, 3, calls)
}

func TestDeliveryGivesUpAfterMaxAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	st := newTestStore(t)
	activity, ch := seedActivityAndChannel(t, st, server.URL)

	var cfg store.AlertConfig
	require.NoError(t, st.First(&cfg, ch.AlertConfigID).Error)

	d := New(st, nil, Config{MaxAttempts: 2, Workers: 1, RetryDelays: []time.Duration{5 * time.Millisecond}})
	require.NoError(t, d.Enqueue(activity, cfg, ch))

	ctx := context.Background()
	d.RunOnce(ctx, 10)
	time.Sleep(10 * time.Millisecond)
	d.RunOnce(ctx, 10)
	// a third run should find nothing left to claim: the row is exhausted.
	processed := d.RunOnce(ctx, 10)
	require.Equal(t, 0, processed)

	var n store.Notification
	require.NoError(t, st.First(&n).Error)
	require.Equal(t, store.NotificationExhausted, n.Status)
	require.Equal(t, 2, n.RetryCount)
}
