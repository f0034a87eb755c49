package redis

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/goodtune/fixposture/internal/storage"
)

// parseAsset converts a Redis hash to Asset
func parseAsset(data map[string]string) (*storage.Asset, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	cachedAt, err := time.Parse(time.RFC3339Nano, data["cached_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse cached_at: %w", err)
	}

	body, err := base64.StdEncoding.DecodeString(data["data"])
	if err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}

	return &storage.Asset{
		Version:  data["version"],
		Name:     data["name"],
		SHA256:   data["sha256"],
		Data:     body,
		CachedAt: cachedAt,
	}, nil
}

// keys builds the key names used by the store
type keys struct {
	prefix string
}

func (k keys) asset(version, name string) string {
	return fmt.Sprintf("%s:asset:%s:%s", k.prefix, version, name)
}

func (k keys) assetPrefix(version string) string {
	return fmt.Sprintf("%s:asset:%s:", k.prefix, version)
}

func (k keys) versionAssets(version string) string {
	return fmt.Sprintf("%s:version:%s:assets", k.prefix, version)
}

func (k keys) versions() string { return k.prefix + ":versions" }
func (k keys) active() string   { return k.prefix + ":active" }
func (k keys) waiting() string  { return k.prefix + ":waiting" }
