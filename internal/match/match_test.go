package match

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xrplnotify/xrplnotify/internal/store"
)

func TestActivityTypeMatchesEmptyMeansAny(t *testing.T) {
	require.True(t, activityTypeMatches("", store.ActivityMint))
}

func TestActivityTypeMatchesSubset(t *testing.T) {
	require.True(t, activityTypeMatches("mint,accept_offer", store.ActivityAcceptOffer))
	require.False(t, activityTypeMatches("mint,accept_offer", store.ActivityBurn))
}

func TestTraitsSatisfyEmptyFilterAlwaysMatches(t *testing.T) {
	require.True(t, traitsSatisfy("", nil))
}

func TestTraitsSatisfyRequiresEnrichmentForNonEmptyFilters(t *testing.T) {
	filters := []store.TraitFilter{{TraitType: "Background", TraitValue: "Blue"}}
	require.False(t, traitsSatisfy("", filters))
}

func TestTraitsSatisfyAllFiltersMustMatch(t *testing.T) {
	traitsJSON := `[{"trait_type":"Background","value":"Blue"},{"trait_type":"Eyes","value":"Laser"}]`
	filters := []store.TraitFilter{
		{TraitType: "Background", TraitValue: "Blue"},
		{TraitType: "Eyes", TraitValue: "Laser"},
	}
	require.True(t, traitsSatisfy(traitsJSON, filters))

	filters = append(filters, store.TraitFilter{TraitType: "Hat", TraitValue: "Crown"})
	require.False(t, traitsSatisfy(traitsJSON, filters))
}
