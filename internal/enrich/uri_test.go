package enrich

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveGatewayRewritesIPFSScheme(t *testing.T) {
	require.Equal(t, "https://ipfs.io/ipfs/bafk123",
		ResolveGateway("ipfs://bafk123", "https://ipfs.io/ipfs/"))
	require.Equal(t, "https://ipfs.io/ipfs/bafk123",
		ResolveGateway("ipfs://bafk123", "https://ipfs.io/ipfs")) // missing trailing slash
}

func TestResolveGatewayPassesThroughOtherSchemes(t *testing.T) {
	require.Equal(t, "https://example.com/a.json",
		ResolveGateway("https://example.com/a.json", "https://ipfs.io/ipfs/"))
}

func TestIsIPFSURI(t *testing.T) {
	require.True(t, IsIPFSURI("ipfs://bafk"))
	require.False(t, IsIPFSURI("https://example.com"))
}
