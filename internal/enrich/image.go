package enrich

import (
	"bytes"
	"net/http"

	"github.com/xrplnotify/xrplnotify/internal/objectstore"
)

// detectContentType sniffs the first bytes of an image the same way the
// teacher's ipfs.Node.detectMimeType does (signature bytes, not extension),
// falling back to the server-reported Content-Type header.
func detectContentType(data []byte, headerType string) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case bytes.HasPrefix(data, []byte("RIFF")) && bytes.Contains(data[:min(len(data), 16)], []byte("WEBP")):
		return "image/webp"
	case headerType != "":
		return headerType
	default:
		return http.DetectContentType(data)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// extensionFor maps a content type to the file extension used in the
// object-store key, defaulting to .bin for anything unrecognized.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".bin"
	}
}

// CacheImage stores fetched image bytes under images/<nftId><ext> and
// returns the public URL, or "" with a nil error when no object store is
// configured (spec.md §4.3: enrichment continues metadata-only).
func CacheImage(objects objectstore.Store, nftID string, data []byte, headerContentType string) (string, error) {
	if objects == nil {
		return "", nil
	}
	contentType := detectContentType(data, headerContentType)
	ext := extensionFor(contentType)
	key := "images/" + nftID + ext
	return objects.Put(key, data, contentType)
}
