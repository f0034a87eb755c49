package redis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/fixposture/internal/storage"
	"github.com/redis/go-redis/v9"
)

var (
	putAsset      = redis.NewScript(putAssetScript)
	setMarker     = redis.NewScript(setMarkerScript)
	deleteVersion = redis.NewScript(deleteVersionScript)
)

type precacheStore struct {
	client *redis.Client
	keys   keys
}

// PutAsset stores an asset. Data is base64 encoded so arbitrary bytes survive
// the Lua string round trip.
func (s *precacheStore) PutAsset(ctx context.Context, asset storage.Asset) error {
	if asset.Version == "" || asset.Name == "" {
		return fmt.Errorf("asset version and name are required")
	}
	cachedAt := asset.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}

	keys := []string{
		s.keys.asset(asset.Version, asset.Name),
		s.keys.versionAssets(asset.Version),
		s.keys.versions(),
	}
	args := []interface{}{
		asset.Version,
		asset.Name,
		asset.SHA256,
		base64.StdEncoding.EncodeToString(asset.Data),
		cachedAt.Format(time.RFC3339Nano),
	}

	return putAsset.Run(ctx, s.client, keys, args...).Err()
}

// GetAsset retrieves an asset by version and name
func (s *precacheStore) GetAsset(ctx context.Context, version, name string) (*storage.Asset, error) {
	data, err := s.client.HGetAll(ctx, s.keys.asset(version, name)).Result()
	if err != nil {
		return nil, err
	}
	return parseAsset(data)
}

// ListAssets lists asset names of a version
func (s *precacheStore) ListAssets(ctx context.Context, version string) ([]string, error) {
	return s.client.SMembers(ctx, s.keys.versionAssets(version)).Result()
}

// ListVersions lists installed versions
func (s *precacheStore) ListVersions(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.keys.versions()).Result()
}

// DeleteVersion removes a version and its assets
func (s *precacheStore) DeleteVersion(ctx context.Context, version string) (int, error) {
	keys := []string{
		s.keys.versions(),
		s.keys.versionAssets(version),
		s.keys.active(),
		s.keys.waiting(),
	}
	return deleteVersion.Run(ctx, s.client, keys, version, s.keys.assetPrefix(version)).Int()
}

// ActiveVersion returns the active version or ""
func (s *precacheStore) ActiveVersion(ctx context.Context) (string, error) {
	return s.getMarker(ctx, s.keys.active())
}

// WaitingVersion returns the waiting version or ""
func (s *precacheStore) WaitingVersion(ctx context.Context) (string, error) {
	return s.getMarker(ctx, s.keys.waiting())
}

// SetWaiting marks an installed version as waiting
func (s *precacheStore) SetWaiting(ctx context.Context, version string) error {
	return s.setMarker(ctx, s.keys.waiting(), s.keys.waiting(), version)
}

// Activate marks an installed version as active and clears the waiting marker
func (s *precacheStore) Activate(ctx context.Context, version string) error {
	return s.setMarker(ctx, s.keys.active(), s.keys.waiting(), version)
}

func (s *precacheStore) getMarker(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

func (s *precacheStore) setMarker(ctx context.Context, marker, clear, version string) error {
	keys := []string{s.keys.versions(), marker, clear}
	ok, err := setMarker.Run(ctx, s.client, keys, version).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return storage.ErrNotFound
	}
	return nil
}
