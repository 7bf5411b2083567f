package xrpl

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// LedgerHandler receives validated ledger-close events.
type LedgerHandler func(LedgerStreamMessage)

// TransactionHandler receives one parsed, validated transaction with its
// engine result, at the caller's ledger_index.
type TransactionHandler func(ledgerIndex uint32, tx Transaction, meta Meta)

// Client owns one WebSocket connection to a single XRPL node and drives the
// subscribe/ping/read loop. A read goroutine buffers incoming messages in a
// channel, and Run's own loop decodes them and invokes the callbacks inline,
// so a slow callback delays this connection's message handling and pings.
//
// The read loop shape is grounded on the teacher's indexer.Indexer.Listen:
// a recover() guard around the blocking read, reconnect-by-caller on error.
type Client struct {
	URL       string
	log       *zap.SugaredLogger
	onLedger  LedgerHandler
	onTx      TransactionHandler
	pingEvery time.Duration
}

// NewClient builds a client for one node URL. Handlers may be nil.
func NewClient(url string, log *zap.SugaredLogger, onLedger LedgerHandler, onTx TransactionHandler) *Client {
	return &Client{
		URL:       url,
		log:       log,
		onLedger:  onLedger,
		onTx:      onTx,
		pingEvery: 30 * time.Second,
	}
}

// Run dials, subscribes, and reads until ctx is cancelled or the connection
// drops. It returns nil only on clean ctx cancellation; any other return is
// a connection failure the supervisor should treat as a reconnect signal.
func (c *Client) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xrpl client panic: %v", r)
		}
	}()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, dialErr := dialer.DialContext(ctx, c.URL, nil)
	if dialErr != nil {
		return fmt.Errorf("dialing %s: %w", c.URL, dialErr)
	}
	defer conn.Close()

	sub := SubscribeRequest{ID: 1, Command: "subscribe", Streams: []string{"ledger", "transactions"}}
	if writeErr := conn.WriteJSON(sub); writeErr != nil {
		return fmt.Errorf("subscribing: %w", writeErr)
	}

	msgCh := make(chan []byte, 64)
	readErrCh := make(chan error, 1)

	go func() {
		for {
			_, data, readErr := conn.ReadMessage()
			if readErr != nil {
				readErrCh <- readErr
				return
			}
			select {
			case msgCh <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	pingTicker := time.NewTicker(c.pingEvery)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case readErr := <-readErrCh:
			return fmt.Errorf("connection to %s closed: %w", c.URL, readErr)
		case <-pingTicker.C:
			if writeErr := conn.WriteJSON(PingRequest{ID: 2, Command: "ping"}); writeErr != nil {
				return fmt.Errorf("ping failed: %w", writeErr)
			}
		case data := <-msgCh:
			c.handleMessage(data)
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		if c.log != nil {
			c.log.Warnw("discarding undecodable message", "error", err)
		}
		return
	}

	switch envelope.Type {
	case "ledgerClosed":
		var msg LedgerStreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if c.log != nil {
				c.log.Warnw("discarding malformed ledgerClosed", "error", err)
			}
			return
		}
		if c.onLedger != nil {
			c.onLedger(msg)
		}
	case "transaction":
		var msg TransactionStreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if c.log != nil {
				c.log.Warnw("discarding malformed transaction message", "error", err)
			}
			return
		}
		if !msg.Validated {
			return
		}
		var tx Transaction
		if err := json.Unmarshal(msg.Transaction, &tx); err != nil {
			if c.log != nil {
				c.log.Warnw("discarding malformed transaction payload", "txHash", tx.Hash, "error", err)
			}
			return
		}
		var meta Meta
		if err := json.Unmarshal(msg.Meta, &meta); err != nil {
			if c.log != nil {
				c.log.Warnw("discarding malformed meta", "txHash", tx.Hash, "error", err)
			}
			return
		}
		if c.onTx != nil {
			c.onTx(msg.LedgerIndex, tx, meta)
		}
	}
}

// DecodeHexURI decodes an NFToken's hex-encoded URI field into its plain
// text form (typically ipfs://... or https://...). An empty or odd-length
// input decodes to "" rather than erroring, matching tokens minted without
// a URI.
func DecodeHexURI(hexURI string) string {
	if hexURI == "" {
		return ""
	}
	raw, err := hex.DecodeString(hexURI)
	if err != nil {
		return ""
	}
	return string(raw)
}
