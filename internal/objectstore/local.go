package objectstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes cached images to a directory on disk, used in tests and
// single-node dev setups where no S3-compatible bucket is configured but the
// enricher's image-caching path should still be exercised end-to-end.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore builds a LocalStore rooted at dir, creating it if absent.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating object store directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

// Put writes data to dir/key and returns baseURL/key.
func (l *LocalStore) Put(key string, data []byte, _ string) (string, error) {
	path := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return l.baseURL + "/" + key, nil
}
