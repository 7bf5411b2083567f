package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xrplnotify/xrplnotify/internal/store"
)

// TestValidateChannelRejectsBeforeNetworkCall is the P7 property: a
// malformed Discord or webhook URL is rejected by ValidateChannel, the
// function Dispatcher.Enqueue calls before any row reaches a worker, so no
// network call is ever attempted for it.
func TestValidateChannelRejectsBeforeNetworkCall(t *testing.T) {
	cases := []struct {
		name string
		ch   store.NotificationChannel
		ok   bool
	}{
		{"valid discord", store.NotificationChannel{Type: "discord", DiscordWebhook: "https://discord.com/api/webhooks/123456789/abcDEF-token"}, true},
		{"discord missing token", store.NotificationChannel{Type: "discord", DiscordWebhook: "https://discord.com/api/webhooks/123456789/"}, false},
		{"discord wrong host", store.NotificationChannel{Type: "discord", DiscordWebhook: "https://evil.example/api/webhooks/123456789/abc"}, false},
		{"valid webhook", store.NotificationChannel{Type: "webhook", WebhookURL: "https://example.com/hook", WebhookMethod: "POST"}, true},
		{"webhook http not https", store.NotificationChannel{Type: "webhook", WebhookURL: "http://example.com/hook", WebhookMethod: "POST"}, false},
		{"webhook bad method", store.NotificationChannel{Type: "webhook", WebhookURL: "https://example.com/hook", WebhookMethod: "DELETE"}, false},
		{"valid email", store.NotificationChannel{Type: "email", EmailRecipients: "user@example.com"}, true},
		{"multiple valid emails", store.NotificationChannel{Type: "email", EmailRecipients: "a@example.com, b@example.com"}, true},
		{"invalid email", store.NotificationChannel{Type: "email", EmailRecipients: "not-an-email"}, false},
		{"one bad email among good", store.NotificationChannel{Type: "email", EmailRecipients: "a@example.com, not-an-email"}, false},
		{"empty recipients", store.NotificationChannel{Type: "email", EmailRecipients: ""}, false},
		{"unknown type", store.NotificationChannel{Type: "carrier-pigeon"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateChannel(tc.ch)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
