package enrich

import "strings"

// ResolveGateway rewrites an ipfs:// URI against one gateway base URL. Other
// schemes (https://, data:) pass through unchanged, matching spec.md §4.3's
// "only ipfs:// URIs consult the gateway fallback chain" rule.
func ResolveGateway(uri string, gatewayBase string) string {
	const scheme = "ipfs://"
	if !strings.HasPrefix(uri, scheme) {
		return uri
	}
	cid := strings.TrimPrefix(uri, scheme)
	base := gatewayBase
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + cid
}

// IsIPFSURI reports whether uri needs the gateway fallback chain at all.
func IsIPFSURI(uri string) bool {
	return strings.HasPrefix(uri, "ipfs://")
}
