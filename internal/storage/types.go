package storage

import (
	"os"
	"time"
)

// Asset is a single precached file of a manifest version.
type Asset struct {
	Version  string    `json:"version"`
	Name     string    `json:"name"`
	SHA256   string    `json:"sha256"`
	Data     []byte    `json:"data"`
	CachedAt time.Time `json:"cached_at"`
}

// EnsureDir ensures a directory exists with default permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
