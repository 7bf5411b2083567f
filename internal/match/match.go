package match

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xrplnotify/xrplnotify/internal/store"
)

// Matched is one (activity, alert config, channel) triple ready for the
// dispatcher, produced for every channel attached to a matching config.
type Matched struct {
	Activity store.NftActivity
	Config   store.AlertConfig
	Channel  store.NotificationChannel
}

// Matcher evaluates activities against the store's alert configs.
type Matcher struct {
	store *store.Store
	log   *zap.SugaredLogger
}

// New builds a Matcher.
func New(st *store.Store, log *zap.SugaredLogger) *Matcher {
	return &Matcher{store: st, log: log}
}

// Match loads the candidate set (per store.ActiveAlertConfigsForCollection:
// enabled configs whose CollectionID is nil or equal to this activity's
// collection) and evaluates each in the order spec.md §4.4 specifies —
// activity type, then price bounds, then trait filters — short-circuiting
// on the first failing predicate.
func (m *Matcher) Match(nft store.NFT, activity store.NftActivity) ([]Matched, error) {
	candidates, err := m.store.ActiveAlertConfigsForCollection(activity.CollectionID)
	if err != nil {
		return nil, err
	}

	var out []Matched
	for _, cfg := range candidates {
		if !activityTypeMatches(cfg.ActivityTypes, activity.ActivityType) {
			continue
		}

		ok, err := priceWithinBounds(activity.PriceDrops, cfg.MinPriceDrops, cfg.MaxPriceDrops)
		if err != nil {
			if m.log != nil {
				m.log.Warnw("skipping alert config with unparseable price bound", "alertConfigId", cfg.ID, "error", err)
			}
			continue
		}
		if !ok {
			continue
		}

		if !traitsSatisfy(nft.Traits, cfg.TraitFilters) {
			continue
		}

		for _, ch := range cfg.Channels {
			out = append(out, Matched{Activity: activity, Config: cfg, Channel: ch})
		}
	}

	return out, nil
}

func activityTypeMatches(configured string, actual string) bool {
	if configured == "" {
		return true
	}
	for _, t := range strings.Split(configured, ",") {
		if strings.TrimSpace(t) == actual {
			return true
		}
	}
	return false
}
