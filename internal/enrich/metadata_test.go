package enrich

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalKeys(t *testing.T) {
	raw := []byte(`{"name":"Cool Cat #1","description":"desc","image":"ipfs://img","attributes":[{"trait_type":"Background","value":"Blue"}]}`)
	meta, err := Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, "Cool Cat #1", meta.Name)
	require.Equal(t, "ipfs://img", meta.Image)
	require.Len(t, meta.Attributes, 1)
	require.Equal(t, "Background", meta.Attributes[0].TraitType)
	require.Equal(t, "Blue", meta.Attributes[0].Value)
}

func TestNormalizeKeySynonyms(t *testing.T) {
	raw := []byte(`{"title":"Synonym NFT","image_url":"https://example.com/a.png","traits":{"Background":"Red"}}`)
	meta, err := Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, "Synonym NFT", meta.Name)
	require.Equal(t, "https://example.com/a.png", meta.Image)
	require.Len(t, meta.Attributes, 1)
	require.Equal(t, "Background", meta.Attributes[0].TraitType)
	require.Equal(t, "Red", meta.Attributes[0].Value)
}

func TestNormalizeMissingFieldsDoNotError(t *testing.T) {
	meta, err := Normalize([]byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, "", meta.Name)
	require.Empty(t, meta.Attributes)
}

// TestNormalizePreservesUnknownKeysAndExternalLinkSynonym covers spec.md
// §4.3's requirement that unrecognized top-level keys survive verbatim and
// that `external_link` is folded onto the canonical `external_url` name.
func TestNormalizePreservesUnknownKeysAndExternalLinkSynonym(t *testing.T) {
	raw := []byte(`{"name":"Cool Cat #1","external_link":"https://example.com/1","rarity_rank":7}`)
	meta, err := Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, "Cool Cat #1", meta.Name)
	require.Contains(t, meta.Extra, "external_url")
	require.JSONEq(t, `"https://example.com/1"`, string(meta.Extra["external_url"]))
	require.NotContains(t, meta.Extra, "external_link")
	require.Contains(t, meta.Extra, "rarity_rank")
	require.JSONEq(t, `7`, string(meta.Extra["rarity_rank"]))
}
