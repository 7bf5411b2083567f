package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return st
}

func TestUpsertNFTPreservesEnrichmentOnReupsert(t *testing.T) {
	st := newTestStore(t)

	n := &NFT{NFTokenID: "NFT1", CollectionID: "col1", OwnerAddress: "rOwner1"}
	require.NoError(t, st.UpsertNFT(n))

	enrichedAt := n.CreatedAt
	n2 := &NFT{NFTokenID: "NFT1", CollectionID: "col1", OwnerAddress: "rOwner1"}
	require.NoError(t, st.UpsertNFT(n2))
	n2.Traits = `[{"trait_type":"Background","value":"Blue"}]`
	n2.MetadataJSON = `{"name":"Foo"}`
	n2.EnrichedAt = &enrichedAt
	require.NoError(t, st.UpsertNFT(n2))

	// a later upsert (e.g. an ownership change from a new AcceptOffer) must
	// not clobber already-fetched metadata.
	n3 := &NFT{NFTokenID: "NFT1", CollectionID: "col1", OwnerAddress: "rOwner2"}
	require.NoError(t, st.UpsertNFT(n3))

	var fetched NFT
	require.NoError(t, st.Where("nftoken_id = ?", "NFT1").First(&fetched).Error)
	require.Equal(t, "rOwner2", fetched.OwnerAddress)
	require.Equal(t, n2.Traits, fetched.Traits)
	require.Equal(t, n2.MetadataJSON, fetched.MetadataJSON)
	require.NotNil(t, fetched.EnrichedAt)
}

func TestInsertActivityDuplicateDedupeHashIsDetectable(t *testing.T) {
	st := newTestStore(t)

	a := &NftActivity{DedupeHash: "dh-1", NFTokenID: "NFT1", ActivityType: ActivityMint, TxHash: "TX1", LedgerIndex: 5}
	require.NoError(t, st.InsertActivity(a))

	dup := &NftActivity{DedupeHash: "dh-1", NFTokenID: "NFT1", ActivityType: ActivityMint, TxHash: "TX1", LedgerIndex: 5}
	err := st.InsertActivity(dup)
	require.Error(t, err)
	require.True(t, IsDuplicateDedupeHash(err))
}

func TestActiveAlertConfigsForCollectionMatchesWildcardAndSpecific(t *testing.T) {
	st := newTestStore(t)

	wildcard := AlertConfig{UserID: "u1", Enabled: true, CollectionID: nil}
	require.NoError(t, st.Create(&wildcard).Error)

	colID := "issuer1:7"
	specific := AlertConfig{UserID: "u2", Enabled: true, CollectionID: &colID}
	require.NoError(t, st.Create(&specific).Error)

	otherCol := "issuer2:3"
	other := AlertConfig{UserID: "u3", Enabled: true, CollectionID: &otherCol}
	require.NoError(t, st.Create(&other).Error)

	disabled := AlertConfig{UserID: "u4", Enabled: false, CollectionID: nil}
	require.NoError(t, st.Create(&disabled).Error)

	configs, err := st.ActiveAlertConfigsForCollection(colID)
	require.NoError(t, err)

	ids := make(map[uint64]bool)
	for _, c := range configs {
		ids[c.ID] = true
	}
	require.True(t, ids[wildcard.ID], "wildcard (nil collection) config must match any collection")
	require.True(t, ids[specific.ID], "config scoped to this collection must match")
	require.False(t, ids[other.ID], "config scoped to a different collection must not match")
	require.False(t, ids[disabled.ID], "disabled config must never match")
}

func TestMarkEnrichmentResultSchedulesBackoffThenFails(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.EnqueueEnrichment("NFT1"))

	backoff := []time.Duration{time.Minute, 5 * time.Minute}

	require.NoError(t, st.MarkEnrichmentResult("NFT1", false, "gateway timeout", backoff, 3))
	var job EnrichmentJob
	require.NoError(t, st.Where("nftoken_id = ?", "NFT1").First(&job).Error)
	require.Equal(t, EnrichmentPending, job.Status)
	require.Equal(t, 1, job.RetryCount)

	require.NoError(t, st.MarkEnrichmentResult("NFT1", false, "gateway timeout", backoff, 3))
	require.NoError(t, st.MarkEnrichmentResult("NFT1", false, "gateway timeout", backoff, 3))

	require.NoError(t, st.Where("nftoken_id = ?", "NFT1").First(&job).Error)
	require.Equal(t, EnrichmentFailed, job.Status)
	require.Equal(t, 3, job.RetryCount)
}
