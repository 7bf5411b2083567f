package dispatch

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/xrplnotify/xrplnotify/internal/store"
)

var discordWebhookPattern = regexp.MustCompile(`^https://discord(app)?\.com/api/webhooks/\d+/[\w-]+$`)
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateChannel checks a channel's configuration is well-formed before
// any network call is attempted, per spec.md P7: a malformed Discord or
// webhook URL must be rejected by validation, not discovered as a runtime
// connection failure.
func ValidateChannel(ch store.NotificationChannel) error {
	switch ch.Type {
	case "discord":
		if !discordWebhookPattern.MatchString(ch.DiscordWebhook) {
			return fmt.Errorf("invalid discord webhook url")
		}
	case "email":
		recipients := splitRecipients(ch.EmailRecipients)
		if len(recipients) == 0 {
			return fmt.Errorf("invalid email channel: at least one recipient required")
		}
		for _, addr := range recipients {
			if !emailPattern.MatchString(addr) {
				return fmt.Errorf("invalid email recipient %q", addr)
			}
		}
	case "webhook":
		u, err := url.Parse(ch.WebhookURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("invalid webhook url: must be an https URL")
		}
		switch ch.WebhookMethod {
		case "POST", "PUT", "PATCH":
		default:
			return fmt.Errorf("invalid webhook method %q", ch.WebhookMethod)
		}
		switch ch.WebhookAuthType {
		case "", "bearer", "basic", "api_key":
		default:
			return fmt.Errorf("invalid webhook auth type %q", ch.WebhookAuthType)
		}
	default:
		return fmt.Errorf("unknown channel type %q", ch.Type)
	}
	return nil
}
