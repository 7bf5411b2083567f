package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xrplnotify/xrplnotify/internal/store"
	"github.com/xrplnotify/xrplnotify/internal/xrpl"
)

func TestClassifyDiscardsNonSuccessResult(t *testing.T) {
	tx := xrpl.Transaction{TransactionType: xrpl.TxNFTokenMint, Hash: "H1"}
	meta := xrpl.Meta{TransactionResult: "tecNO_PERMISSION"}

	_, ok := Classify(100, tx, meta, time.Now())
	require.False(t, ok)
}

func TestClassifyDiscardsNonNFTokenTransactions(t *testing.T) {
	tx := xrpl.Transaction{TransactionType: "Payment", Hash: "H2"}
	meta := xrpl.Meta{TransactionResult: xrpl.EngineResultSuccess}

	_, ok := Classify(100, tx, meta, time.Now())
	require.False(t, ok)
}

func TestClassifyMintProducesActivityAndEnrichFlag(t *testing.T) {
	tx := xrpl.Transaction{
		TransactionType: xrpl.TxNFTokenMint,
		Hash:            "H3",
		Account:         "rMinter",
		NFTokenID:       "000800000...NFT1",
		Issuer:          "rIssuer",
		NFTokenTaxon:    7,
		URI:             "697066733a2f2f6261666b", // hex "ipfs://bafk"
	}
	meta := xrpl.Meta{TransactionResult: xrpl.EngineResultSuccess}

	c, ok := Classify(500, tx, meta, time.Now())
	require.True(t, ok)
	require.True(t, c.NeedsEnrich)
	require.Equal(t, store.ActivityMint, c.Activity.ActivityType)
	require.Equal(t, "ipfs://bafk", c.NFT.MetadataURI)
	require.Equal(t, "rMinter", c.NFT.OwnerAddress)
}

// TestDedupeHashIsStableAndUniquePerComponent is the P1 property at the
// classifier level: identical (txHash, activityType, nftId) tuples must
// produce identical hashes, and varying any one component must change it.
func TestDedupeHashIsStableAndUniquePerComponent(t *testing.T) {
	base := DedupeHash("TXHASH", store.ActivityMint, "NFT1")
	require.Equal(t, base, DedupeHash("TXHASH", store.ActivityMint, "NFT1"))
	require.NotEqual(t, base, DedupeHash("TXHASH2", store.ActivityMint, "NFT1"))
	require.NotEqual(t, base, DedupeHash("TXHASH", store.ActivityAcceptOffer, "NFT1"))
	require.NotEqual(t, base, DedupeHash("TXHASH", store.ActivityMint, "NFT2"))
}

// TestExtractPriceDropsBoundary is the P3 property: price values at and
// around the uint64 boundary (2^64-1) must remain exact decimal strings,
// never truncated or rounded through a native int64/uint64 conversion.
func TestExtractPriceDropsBoundary(t *testing.T) {
	const boundary = "18446744073709551615" // 2^64 - 1
	drops, currency, issuer := extractPrice(boundary)
	require.Equal(t, boundary, drops)
	require.Equal(t, "XRP", currency)
	require.Empty(t, issuer)

	const beyond = "18446744073709551616" // 2^64
	drops, _, _ = extractPrice(beyond)
	require.Equal(t, beyond, drops)
}

// TestExtractPriceDropsPreservesIssuedCurrency is the corrected form of a
// prior bug: an issued-currency Amount object must preserve value/currency/
// issuer verbatim rather than collapsing to a zero price (spec.md §4.2).
func TestExtractPriceDropsPreservesIssuedCurrency(t *testing.T) {
	issued := map[string]interface{}{"currency": "USD", "issuer": "rIssuer", "value": "10"}
	drops, currency, issuer := extractPrice(issued)
	require.Equal(t, "10", drops)
	require.Equal(t, "USD", currency)
	require.Equal(t, "rIssuer", issuer)
}
