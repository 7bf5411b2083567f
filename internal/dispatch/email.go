package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/xrplnotify/xrplnotify/internal/store"
)

const sendgridEndpoint = "https://api.sendgrid.com/v3/mail/send"

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridAddress struct {
	Email string `json:"email"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridPayload struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
}

// sendEmail delivers one HTML+text email via a SendGrid-compatible API to
// every configured recipient, per spec.md §4.5.
func (d *Dispatcher) sendEmail(ch store.NotificationChannel, p Payload) SendResult {
	if d.mailAPIKey == "" {
		return SendResult{Err: fmt.Errorf("email dispatch not configured: missing mail API key")}
	}

	recipients := splitRecipients(ch.EmailRecipients)
	if len(recipients) == 0 {
		return SendResult{Err: fmt.Errorf("no email recipients configured")}
	}

	subject := ch.EmailSubject
	if subject == "" {
		subject = defaultEmailSubject(p)
	}
	html, text := renderEmailBody(p)

	to := make([]sendgridAddress, len(recipients))
	for i, addr := range recipients {
		to[i] = sendgridAddress{Email: addr}
	}

	payload := sendgridPayload{
		Personalizations: []sendgridPersonalization{{To: to}},
		From:             sendgridAddress{Email: d.mailFromEmail},
		Subject:          subject,
		Content: []sendgridContent{
			{Type: "text/plain", Value: text},
			{Type: "text/html", Value: html},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Err: err}
	}

	req, err := http.NewRequest(http.MethodPost, sendgridEndpoint, bytes.NewReader(body))
	if err != nil {
		return SendResult{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.mailAPIKey)

	resp, err := d.httpc.Do(req)
	if err != nil {
		return SendResult{Err: fmt.Errorf("sending email: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return SendResult{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode >= 300 {
		return SendResult{Err: fmt.Errorf("mail provider returned status %d", resp.StatusCode)}
	}
	return SendResult{Success: true}
}

func renderEmailBody(p Payload) (html string, text string) {
	name, description, _ := nftDisplay(p.NFT)
	lines := []string{
		"Activity: " + p.Activity.ActivityType,
		"NFT: " + name,
	}
	if description != "" {
		lines = append(lines, "Description: "+description)
	}
	if xrp, ok := priceXRP(p.Activity.PriceDrops); ok {
		lines = append(lines, "Price: "+xrp+" XRP")
	}
	if p.Activity.FromAddress != "" {
		lines = append(lines, "From: "+p.Activity.FromAddress)
	}
	if p.Activity.ToAddress != "" {
		lines = append(lines, "To: "+p.Activity.ToAddress)
	}
	lines = append(lines, "Transaction: "+p.Activity.TxHash)

	text = strings.Join(lines, "\n")
	html = "<p>" + strings.Join(lines, "</p><p>") + "</p>"
	return html, text
}
