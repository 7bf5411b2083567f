// Package classify turns raw validated XRPL transactions into NftActivity
// rows: it classifies the transaction type, extracts the NFT/collection/
// price fields, computes the dedupe hash, and batches rows for a single
// transactional upsert-then-insert write per spec.md §4.2.
package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/xrplnotify/xrplnotify/internal/store"
	"github.com/xrplnotify/xrplnotify/internal/xrpl"
)

// Classified is one transaction that survived classification, ready to be
// queued into a Batcher.
type Classified struct {
	Activity     store.NftActivity
	NFT          store.NFT
	Collection   store.Collection
	NeedsEnrich  bool // true only for NFTokenMint, where metadata has never been fetched
}

// Classify maps a validated transaction + its engine result to a
// Classified row, or returns ok=false for transaction types and results
// outside spec.md §4.2's table (non-NFToken transactions, and any engine
// result other than tesSUCCESS).
func Classify(ledgerIndex uint32, tx xrpl.Transaction, meta xrpl.Meta, occurredAt time.Time) (Classified, bool) {
	if meta.TransactionResult != xrpl.EngineResultSuccess {
		return Classified{}, false
	}

	var activityType string
	switch tx.TransactionType {
	case xrpl.TxNFTokenMint:
		activityType = store.ActivityMint
	case xrpl.TxNFTokenAcceptOffer:
		activityType = store.ActivityAcceptOffer
	case xrpl.TxNFTokenCreateOffer:
		activityType = store.ActivityCreateOffer
	case xrpl.TxNFTokenCancelOffer:
		activityType = store.ActivityCancelOffer
	case xrpl.TxNFTokenBurn:
		activityType = store.ActivityBurn
	default:
		return Classified{}, false
	}

	nftID := tx.NFTokenID
	if nftID == "" {
		// NFTokenMint carries no NFTokenID in the submitted transaction;
		// it is assigned by the ledger and recovered from meta's created
		// node in a full implementation. Absent that here, the mint is
		// still recorded keyed by tx hash so downstream stages have a
		// stable row to enrich once the real token id is known.
		nftID = tx.Hash
	}

	collectionID := collectionKey(tx.Issuer, tx.NFTokenTaxon)

	priceDrops, currency, issuer := extractPrice(tx.Amount)

	dedupe := DedupeHash(tx.Hash, activityType, nftID)

	activity := store.NftActivity{
		DedupeHash:   dedupe,
		NFTokenID:    nftID,
		CollectionID: collectionID,
		ActivityType: activityType,
		TxHash:       tx.Hash,
		LedgerIndex:  ledgerIndex,
		PriceDrops:   priceDrops,
		Currency:     currency,
		Issuer:       issuer,
		FromAddress:  tx.Account,
		ToAddress:    tx.Destination,
		OccurredAt:   occurredAt,
	}

	nft := store.NFT{
		NFTokenID:    nftID,
		CollectionID: collectionID,
		OwnerAddress: ownerAfter(tx, activityType),
	}
	if activityType == store.ActivityMint {
		nft.MetadataURI = xrpl.DecodeHexURI(tx.URI)
		now := occurredAt
		nft.MintedAt = &now
	}

	collection := store.Collection{
		ID:            collectionID,
		IssuerAddress: tx.Issuer,
		Taxon:         tx.NFTokenTaxon,
	}

	return Classified{
		Activity:    activity,
		NFT:         nft,
		Collection:  collection,
		NeedsEnrich: activityType == store.ActivityMint,
	}, true
}

func ownerAfter(tx xrpl.Transaction, activityType string) string {
	switch activityType {
	case store.ActivityMint:
		return tx.Account
	case store.ActivityAcceptOffer:
		if tx.Destination != "" {
			return tx.Destination
		}
		return tx.Account
	default:
		return tx.Account
	}
}

func collectionKey(issuer string, taxon uint32) string {
	return fmt.Sprintf("%s:%d", issuer, taxon)
}

// extractPrice normalizes the Amount field per spec.md §4.2: a bare decimal
// string is XRP drops (currency=XRP, issuer=""); an object
// {value,currency,issuer} is an issued-currency amount, preserved verbatim
// rather than collapsed to zero. Anything else (missing, malformed) has no
// price, which the matcher's price-bound predicate treats as "no price".
func extractPrice(amount interface{}) (drops, currency, issuer string) {
	switch v := amount.(type) {
	case string:
		if _, err := uint256.FromDecimal(v); err == nil {
			return v, "XRP", ""
		}
		return "0", "XRP", ""
	case map[string]interface{}:
		value, _ := v["value"].(string)
		if value == "" {
			value = "0"
		}
		cur, _ := v["currency"].(string)
		iss, _ := v["issuer"].(string)
		return value, cur, iss
	default:
		return "0", "XRP", ""
	}
}

// DedupeHash computes the dedup authority key: sha256(txHash||activityType||nftId).
func DedupeHash(txHash, activityType, nftID string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{txHash, activityType, nftID}, "|")))
	return hex.EncodeToString(sum[:])
}
