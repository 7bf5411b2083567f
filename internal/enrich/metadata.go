package enrich

import (
	"encoding/json"
)

// NormalizedMetadata is the JSON shape the pipeline persists and hands to
// the matcher's trait predicates, after folding provider-specific key
// synonyms onto one canonical schema. Extra carries every top-level key
// that isn't one of the canonical fields, preserved as-is per spec.md
// §4.3 rather than discarded.
type NormalizedMetadata struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Image       string                     `json:"image"`
	Attributes  []TraitPair                `json:"attributes"`
	Extra       map[string]json.RawMessage `json:"extra,omitempty"`
}

// TraitPair is one normalized trait_type/value entry.
type TraitPair struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// nameSynonyms / imageSynonyms / attributeSynonyms list the provider key
// spellings this pipeline has observed in the wild, folded onto the
// canonical field spec.md §4.3 names.
var (
	nameSynonyms      = []string{"name", "title"}
	descSynonyms      = []string{"description", "desc"}
	imageSynonyms     = []string{"image", "image_url", "imageUrl", "artifactUri", "displayUri"}
	attributeSynonyms = []string{"attributes", "traits"}
)

// keyRenames maps a provider-specific top-level key onto the canonical
// name it is preserved under when it isn't one of the typed fields above
// (spec.md §4.3's `external_link→external_url` synonym).
var keyRenames = map[string]string{
	"external_link": "external_url",
}

// Normalize parses a raw metadata JSON document into NormalizedMetadata,
// tolerating any of the known key synonyms, an attributes array encoded
// either as {trait_type,value} objects or as a flat {key:value} map, and
// preserving every other top-level key verbatim in Extra.
func Normalize(raw []byte) (NormalizedMetadata, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return NormalizedMetadata{}, err
	}

	consumed := make(map[string]bool)

	out := NormalizedMetadata{
		Name:        firstString(doc, nameSynonyms, consumed),
		Description: firstString(doc, descSynonyms, consumed),
		Image:       firstString(doc, imageSynonyms, consumed),
	}

	for _, key := range attributeSynonyms {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		consumed[key] = true
		if pairs, ok := parseAttributeArray(raw); ok {
			out.Attributes = pairs
			break
		}
		if pairs, ok := parseAttributeMap(raw); ok {
			out.Attributes = pairs
			break
		}
	}

	for key, raw := range doc {
		if consumed[key] {
			continue
		}
		outKey := key
		if renamed, ok := keyRenames[key]; ok {
			outKey = renamed
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage, len(doc))
		}
		out.Extra[outKey] = raw
	}

	return out, nil
}

// firstString returns the first synonym key present in doc with a non-empty
// string value, marking every synonym key it finds as consumed (even if
// empty) so it is never duplicated into Extra.
func firstString(doc map[string]json.RawMessage, keys []string, consumed map[string]bool) string {
	var result string
	for _, key := range keys {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		consumed[key] = true
		if result != "" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			result = s
		}
	}
	return result
}

func parseAttributeArray(raw json.RawMessage) ([]TraitPair, bool) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	var pairs []TraitPair
	for _, item := range items {
		scratch := make(map[string]bool)
		traitType := firstString(item, []string{"trait_type", "type", "key"}, scratch)
		value := firstString(item, []string{"value", "trait_value"}, scratch)
		if traitType == "" {
			continue
		}
		pairs = append(pairs, TraitPair{TraitType: traitType, Value: value})
	}
	return pairs, true
}

func parseAttributeMap(raw json.RawMessage) ([]TraitPair, bool) {
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	var pairs []TraitPair
	for k, v := range m {
		pairs = append(pairs, TraitPair{TraitType: k, Value: v})
	}
	return pairs, true
}
