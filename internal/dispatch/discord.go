package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/xrplnotify/xrplnotify/internal/store"
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordThumbnail struct {
	URL string `json:"url"`
}

// discordEmbedMaxFields/discordEmbedMaxDescription are Discord's own embed
// limits (spec.md §4.5), enforced before the payload is ever sent.
const (
	discordEmbedMaxFields      = 25
	discordEmbedMaxDescription = 4096
)

type discordEmbed struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Color       int               `json:"color"`
	Fields      []discordField    `json:"fields,omitempty"`
	Thumbnail   *discordThumbnail `json:"thumbnail,omitempty"`
}

type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

// buildDiscordEmbed assembles the embed spec.md §4.5 describes: a title
// emoji + activity type, an activity-type color, monospaced From/To
// address fields, the price in XRP, and the NFT's name/description/
// thumbnail — truncated and capped to Discord's own embed limits.
func buildDiscordEmbed(p Payload) discordEmbed {
	name, description, image := nftDisplay(p.NFT)
	description = truncateDescription(description)
	if len(description) > discordEmbedMaxDescription {
		description = description[:discordEmbedMaxDescription]
	}

	embed := discordEmbed{
		Title:       fmt.Sprintf("%s %s", activityEmoji[p.Activity.ActivityType], strings.ToUpper(p.Activity.ActivityType)),
		Description: description,
		Color:       activityColor[p.Activity.ActivityType],
	}

	fields := []discordField{{Name: "NFT", Value: name, Inline: true}}
	if p.Activity.FromAddress != "" {
		fields = append(fields, discordField{Name: "From", Value: "`" + p.Activity.FromAddress + "`", Inline: true})
	}
	if p.Activity.ToAddress != "" {
		fields = append(fields, discordField{Name: "To", Value: "`" + p.Activity.ToAddress + "`", Inline: true})
	}
	if xrp, ok := priceXRP(p.Activity.PriceDrops); ok {
		fields = append(fields, discordField{Name: "Price", Value: xrp + " XRP", Inline: true})
	}
	if len(fields) > discordEmbedMaxFields {
		fields = fields[:discordEmbedMaxFields]
	}
	embed.Fields = fields

	if image != "" {
		embed.Thumbnail = &discordThumbnail{URL: image}
	}
	return embed
}

// discordMentionContent turns a channel's comma-separated mention tokens
// (e.g. "<@123>,<@&456>") into the message content Discord renders as a
// ping, per spec.md §4.5's optional `@user`/`@role` mentions.
func discordMentionContent(raw string) string {
	tokens := splitRecipients(raw) // same comma-split/trim shape as recipients
	return strings.Join(tokens, " ")
}

// sendDiscord posts an embed to a validated webhook URL. A 429 response is
// surfaced as retryAfter rather than retried in-process, so the outer
// dispatcher loop owns rescheduling per spec.md §4.5.
func (d *Dispatcher) sendDiscord(ch store.NotificationChannel, p Payload) SendResult {
	payload := discordPayload{
		Content: discordMentionContent(ch.DiscordMentions),
		Embeds:  []discordEmbed{buildDiscordEmbed(p)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Err: err}
	}

	req, err := http.NewRequest(http.MethodPost, ch.DiscordWebhook, bytes.NewReader(body))
	if err != nil {
		return SendResult{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpc.Do(req)
	if err != nil {
		return SendResult{Err: fmt.Errorf("posting to discord: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return SendResult{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode >= 300 {
		return SendResult{Err: fmt.Errorf("discord webhook returned status %d", resp.StatusCode)}
	}
	return SendResult{Success: true}
}
