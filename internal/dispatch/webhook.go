package dispatch

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/xrplnotify/xrplnotify/internal/store"
)

// webhookEnvelope is the canonical payload spec.md §4.5 mandates for the
// generic webhook channel, distinct from Discord/Email's own shapes.
type webhookEnvelope struct {
	Webhook  webhookMeta     `json:"webhook"`
	Alert    webhookAlert    `json:"alert"`
	Activity webhookActivity `json:"activity"`
}

type webhookMeta struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Version   string    `json:"version"`
}

type webhookAlert struct {
	ID          uint64    `json:"id"`
	UserID      string    `json:"userId"`
	TriggeredAt time.Time `json:"triggeredAt"`
}

type webhookActivity struct {
	ID           uint64    `json:"id"`
	NFTokenID    string    `json:"nftId"`
	CollectionID string    `json:"collectionId,omitempty"`
	ActivityType string    `json:"activityType"`
	TxHash       string    `json:"transactionHash"`
	LedgerIndex  uint32    `json:"ledgerIndex"`
	PriceDrops   string    `json:"priceDrops,omitempty"`
	PriceXRP     string    `json:"priceXRP,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	Issuer       string    `json:"issuer,omitempty"`
	FromAddress  string    `json:"fromAddress,omitempty"`
	ToAddress    string    `json:"toAddress,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// sendWebhook delivers the canonical JSON envelope over the configured
// POST/PUT/PATCH method with the configured auth scheme, per spec.md §4.5.
func (d *Dispatcher) sendWebhook(ch store.NotificationChannel, p Payload) SendResult {
	requestID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("xrplnotify:notification:%d", p.NotificationID))).String()
	envelope := webhookEnvelope{
		Webhook: webhookMeta{
			ID:        requestID,
			Timestamp: time.Now(),
			Type:      "nft_activity_alert",
			Version:   "1.0",
		},
		Alert: webhookAlert{
			ID:          p.AlertConfig.ID,
			UserID:      p.AlertConfig.UserID,
			TriggeredAt: p.TriggeredAt,
		},
		Activity: webhookActivity{
			ID:           p.Activity.ID,
			NFTokenID:    p.Activity.NFTokenID,
			CollectionID: p.Activity.CollectionID,
			ActivityType: p.Activity.ActivityType,
			TxHash:       p.Activity.TxHash,
			LedgerIndex:  p.Activity.LedgerIndex,
			PriceDrops:   p.Activity.PriceDrops,
			Currency:     p.Activity.Currency,
			Issuer:       p.Activity.Issuer,
			FromAddress:  p.Activity.FromAddress,
			ToAddress:    p.Activity.ToAddress,
			OccurredAt:   p.Activity.OccurredAt,
		},
	}
	if xrp, ok := priceXRP(p.Activity.PriceDrops); ok {
		envelope.Activity.PriceXRP = xrp
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return SendResult{Err: err}
	}

	req, err := http.NewRequest(ch.WebhookMethod, ch.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return SendResult{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	// The id is derived from the notification id, so every retry of the
	// same notification carries it unchanged and a receiving endpoint can
	// dedupe a retry of a delivery it already accepted (e.g. one that timed
	// out client-side).
	req.Header.Set("X-Request-Id", requestID)

	switch ch.WebhookAuthType {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+ch.WebhookAuthValue)
	case "basic":
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(ch.WebhookAuthValue)))
	case "api_key":
		req.Header.Set("X-API-Key", ch.WebhookAuthValue)
	}

	resp, err := d.httpc.Do(req)
	if err != nil {
		return SendResult{Err: fmt.Errorf("posting webhook: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return SendResult{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))}
	}
	return SendResult{Success: true, MessageID: requestID}
}
