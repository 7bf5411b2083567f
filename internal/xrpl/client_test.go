package xrpl

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDecodeHexURIRoundTrip is the P6 property: encoding a URI to hex then
// decoding it back must reproduce the original string exactly.
func TestDecodeHexURIRoundTrip(t *testing.T) {
	cases := []string{
		"ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		"https://example.com/metadata/1.json",
		"",
	}
	for _, uri := range cases {
		encoded := hex.EncodeToString([]byte(uri))
		require.Equal(t, uri, DecodeHexURI(encoded))
	}
}

func TestDecodeHexURIInvalidInput(t *testing.T) {
	require.Equal(t, "", DecodeHexURI("not-hex"))
	require.Equal(t, "", DecodeHexURI("abc")) // odd length
}
