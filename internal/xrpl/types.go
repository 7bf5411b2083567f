// Package xrpl is the thin client for the XRP Ledger WebSocket subscription
// protocol: the wire types and the per-node connection used by the
// Connection Supervisor.
package xrpl

import "encoding/json"

// SubscribeRequest is the outbound subscription command.
type SubscribeRequest struct {
	ID      int      `json:"id"`
	Command string   `json:"command"`
	Streams []string `json:"streams"`
}

// PingRequest keeps idle connections alive across load balancers.
type PingRequest struct {
	ID      int    `json:"id"`
	Command string `json:"command"`
}

// LedgerStreamMessage is one `ledgerClosed` stream push.
type LedgerStreamMessage struct {
	Type          string `json:"type"`
	LedgerIndex   uint32 `json:"ledger_index"`
	LedgerHash    string `json:"ledger_hash"`
	LedgerTime    uint64 `json:"ledger_time"`
	TxnCount      int    `json:"txn_count"`
}

// TransactionStreamMessage is one `transaction` stream push.
type TransactionStreamMessage struct {
	Type        string          `json:"type"`
	Transaction json.RawMessage `json:"transaction"`
	Meta        json.RawMessage `json:"meta"`
	Validated   bool            `json:"validated"`
	LedgerIndex uint32          `json:"ledger_index"`
}

// Transaction is the subset of NFToken transaction fields the classifier needs.
type Transaction struct {
	Hash            string `json:"hash"`
	TransactionType string `json:"TransactionType"`
	Account         string `json:"Account"`
	Destination     string `json:"Destination,omitempty"`
	NFTokenID       string `json:"NFTokenID,omitempty"`
	Amount          interface{} `json:"Amount,omitempty"` // string drops, or object for issued currency
	URI             string `json:"URI,omitempty"`        // hex-encoded, set on NFTokenMint
	NFTokenTaxon    uint32 `json:"NFTokenTaxon,omitempty"`
	Issuer          string `json:"Issuer,omitempty"`
}

// Meta carries the engine result and any NFToken created/deleted nodes.
type Meta struct {
	TransactionResult string `json:"TransactionResult"`
}

// NFToken transaction types this pipeline classifies, per spec.md §4.2.
const (
	TxNFTokenMint        = "NFTokenMint"
	TxNFTokenAcceptOffer = "NFTokenAcceptOffer"
	TxNFTokenCreateOffer = "NFTokenCreateOffer"
	TxNFTokenCancelOffer = "NFTokenCancelOffer"
	TxNFTokenBurn        = "NFTokenBurn"
)

// EngineResultSuccess is the one engine result the classifier accepts;
// everything else (a failed transaction still included in a validated
// ledger) is discarded, per spec.md §4.2 edge cases.
const EngineResultSuccess = "tesSUCCESS"
