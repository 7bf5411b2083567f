package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xrplnotify/xrplnotify/internal/store"
	"github.com/xrplnotify/xrplnotify/internal/xrpl"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return st
}

type fakeBackfiller struct {
	calledStart, calledEnd uint32
	fail                   bool
	done                   chan struct{}
}

func (f *fakeBackfiller) Backfill(ctx context.Context, start, end uint32) error {
	f.calledStart, f.calledEnd = start, end
	close(f.done)
	if f.fail {
		return errBackfillFailed
	}
	return nil
}

var errBackfillFailed = &testErr{"backfill failed"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

// TestLedgerGapDetectionAndBackfill is the P4 property: a jump of more than
// one ledger index records a gap and triggers an asynchronous backfill that
// closes it once successful.
func TestLedgerGapDetectionAndBackfill(t *testing.T) {
	st := newTestStore(t)
	bf := &fakeBackfiller{done: make(chan struct{})}

	s, err := New([]string{"wss://node1"}, st, nil, nil, nil, bf)
	require.NoError(t, err)

	s.lastLedgerIndex = 100
	s.checkGap(105)

	select {
	case <-bf.done:
	case <-time.After(2 * time.Second):
		t.Fatal("backfill was not invoked")
	}

	require.Equal(t, uint32(101), bf.calledStart)
	require.Equal(t, uint32(104), bf.calledEnd)

	// checkGap's runBackfill goroutine closes the gap shortly after Backfill
	// returns; poll briefly rather than asserting on a hard race.
	require.Eventually(t, func() bool {
		gaps, err := st.OpenGaps()
		return err == nil && len(gaps) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// TestConsecutiveLedgerDoesNotRecordGap asserts the continuity fast path: a
// ledger index exactly one greater than the last seen is not a gap.
func TestConsecutiveLedgerDoesNotRecordGap(t *testing.T) {
	st := newTestStore(t)
	s, err := New([]string{"wss://node1"}, st, nil, nil, nil, nil)
	require.NoError(t, err)

	s.lastLedgerIndex = 100
	s.checkGap(101)

	gaps, err := st.OpenGaps()
	require.NoError(t, err)
	require.Empty(t, gaps)
}

// TestSharedDedupRingDropsDuplicatesAcrossNodes is the multiplexed-
// redundancy half of P1/spec.md §4.1: every configured node feeds the same
// TransactionSink through the same shared ring, so the same (ledgerIndex,
// txHash) arriving from two different nodes' read pumps is forwarded only
// once, regardless of which node's handler observes it first.
func TestSharedDedupRingDropsDuplicatesAcrossNodes(t *testing.T) {
	st := newTestStore(t)
	var seen []string
	onTx := func(ledgerIndex uint32, tx xrpl.Transaction, meta xrpl.Meta) {
		seen = append(seen, tx.Hash)
	}

	s, err := New([]string{"wss://node1", "wss://node2", "wss://node3"}, st, nil, nil, onTx, nil)
	require.NoError(t, err)
	require.Len(t, s.nodes, 3)

	handler := s.wrapTxHandler()
	tx := xrpl.Transaction{Hash: "SAMEHASH"}

	// Three nodes each observing the identical ledger/tx pair must forward
	// it exactly once.
	handler(500, tx, xrpl.Meta{})
	handler(500, tx, xrpl.Meta{})
	handler(500, tx, xrpl.Meta{})

	require.Equal(t, []string{"SAMEHASH"}, seen)
}

// TestGetStatusReportsConnectedNodeCount verifies the status snapshot counts
// actually-connected nodes rather than a single failover-style active node,
// and that ActiveNode prefers the lowest-priority connected one.
func TestGetStatusReportsConnectedNodeCount(t *testing.T) {
	st := newTestStore(t)
	s, err := New([]string{"wss://primary", "wss://secondary"}, st, nil, nil, nil, nil)
	require.NoError(t, err)

	s.nodes[1].setConnected(true)
	status := s.GetStatus()
	require.Equal(t, 1, status.ConnectedNodes)
	require.Equal(t, 2, status.TotalNodes)
	require.Equal(t, "wss://secondary", status.ActiveNode)

	s.nodes[0].setConnected(true)
	status = s.GetStatus()
	require.Equal(t, 2, status.ConnectedNodes)
	require.Equal(t, "wss://primary", status.ActiveNode) // lowest priority wins
}
