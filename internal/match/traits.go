package match

import (
	"encoding/json"

	"github.com/xrplnotify/xrplnotify/internal/enrich"
	"github.com/xrplnotify/xrplnotify/internal/store"
)

// traitsSatisfy reports whether nftTraitsJSON (the NFT's persisted Traits
// column) contains, for every configured TraitFilter, at least one trait
// with a matching trait_type AND value. An NFT not yet enriched (empty
// traits JSON) never satisfies a non-empty filter set, per spec.md §4.4's
// "enrichment must complete before a trait-filtered alert can match" edge
// case.
func traitsSatisfy(nftTraitsJSON string, filters []store.TraitFilter) bool {
	if len(filters) == 0 {
		return true
	}
	if nftTraitsJSON == "" {
		return false
	}

	var pairs []enrich.TraitPair
	if err := json.Unmarshal([]byte(nftTraitsJSON), &pairs); err != nil {
		return false
	}

	for _, filter := range filters {
		if !anyTraitMatches(pairs, filter) {
			return false
		}
	}
	return true
}

func anyTraitMatches(pairs []enrich.TraitPair, filter store.TraitFilter) bool {
	for _, p := range pairs {
		if p.TraitType == filter.TraitType && p.Value == filter.TraitValue {
			return true
		}
	}
	return false
}
