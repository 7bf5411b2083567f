package dispatch

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/xrplnotify/xrplnotify/internal/enrich"
	"github.com/xrplnotify/xrplnotify/internal/store"
)

// activityEmoji/activityColor give every channel sender the same title
// glyph and Discord embed color per activity type (spec.md §4.5).
var activityEmoji = map[string]string{
	store.ActivityMint:        "🪙",
	store.ActivityAcceptOffer: "💰",
	store.ActivityCreateOffer: "📝",
	store.ActivityCancelOffer: "🚫",
	store.ActivityBurn:        "🔥",
}

var activityColor = map[string]int{
	store.ActivityMint:        0x2ecc71,
	store.ActivityAcceptOffer: 0xf1c40f,
	store.ActivityCreateOffer: 0x3498db,
	store.ActivityCancelOffer: 0x95a5a6,
	store.ActivityBurn:        0xe74c3c,
}

const descriptionTruncateAt = 200

// priceXRP converts a decimal drops string into an XRP-denominated string
// with 6 fractional digits. Drops routinely exceed 64-bit precision (spec.md
// §8 scenario 2), so the conversion goes through uint256 rather than a
// float or native int64 division.
func priceXRP(drops string) (string, bool) {
	if drops == "" || drops == "0" {
		return "", false
	}
	v, err := uint256.FromDecimal(drops)
	if err != nil {
		return "", false
	}
	million := uint256.NewInt(1_000_000)
	whole := new(uint256.Int).Div(v, million)
	rem := new(uint256.Int).Mod(v, million)
	return whole.Dec() + "." + zeroPad(rem.Uint64(), 6), true
}

func zeroPad(n uint64, width int) string {
	s := strconv.FormatUint(n, 10)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// retryAfter parses a Retry-After header (seconds, per HTTP semantics) into
// a Duration; senders report it back to the dispatcher so the outer loop
// reschedules by it directly, bypassing the default backoff (spec.md §4.5).
func retryAfter(header string) time.Duration {
	if header == "" {
		return time.Second
	}
	seconds, err := strconv.ParseFloat(header, 64)
	if err != nil || seconds <= 0 {
		return time.Second
	}
	return time.Duration(seconds * float64(time.Second))
}

// nftDisplay extracts the name/description/image a channel sender renders
// from an NFT's cached, normalized metadata, falling back to the token id
// and the cached image URL when metadata has not been fetched yet.
func nftDisplay(nft store.NFT) (name, description, image string) {
	name = nft.NFTokenID
	image = nft.ImageURL
	if nft.MetadataJSON == "" {
		return name, "", image
	}
	var meta enrich.NormalizedMetadata
	if err := json.Unmarshal([]byte(nft.MetadataJSON), &meta); err != nil {
		return name, "", image
	}
	if meta.Name != "" {
		name = meta.Name
	}
	description = meta.Description
	if image == "" {
		image = meta.Image
	}
	return name, description, image
}

func truncateDescription(s string) string {
	r := []rune(s)
	if len(r) < descriptionTruncateAt {
		return s
	}
	return string(r[:descriptionTruncateAt]) + "…"
}

func splitRecipients(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultEmailSubject(p Payload) string {
	label := p.Collection.Name
	if label == "" {
		label, _, _ = nftDisplay(p.NFT)
	}
	return "🚨 " + strings.ToUpper(p.Activity.ActivityType) + " Alert: " + label
}
