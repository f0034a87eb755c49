// Package precache fronts the persistent asset store with an in-memory LRU
// and decides which manifest assets are worth caching.
package precache

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/goodtune/fixposture/internal/metrics"
	"github.com/goodtune/fixposture/internal/storage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Cache reads through to a storage.PrecacheStore.
type Cache struct {
	store    storage.PrecacheStore
	assets   *lru.Cache[string, *storage.Asset]
	patterns []glob.Glob
	logger   zerolog.Logger
}

// Config holds precache settings
type Config struct {
	Patterns []string
	Size     int
}

// New creates a cache over store. Patterns use glob syntax with "/" as the
// separator, so "**" crosses directories and "*" does not.
func New(store storage.PrecacheStore, config Config, logger zerolog.Logger) (*Cache, error) {
	size := config.Size
	if size <= 0 {
		size = 64
	}

	assets, err := lru.New[string, *storage.Asset](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset cache: %w", err)
	}

	patterns := make([]glob.Glob, 0, len(config.Patterns))
	for _, p := range config.Patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid precache pattern %q: %w", p, err)
		}
		patterns = append(patterns, g)
	}

	return &Cache{
		store:    store,
		assets:   assets,
		patterns: patterns,
		logger:   logger.With().Str("component", "precache").Logger(),
	}, nil
}

// Store returns the underlying persistent store.
func (c *Cache) Store() storage.PrecacheStore { return c.store }

// Matches reports whether an asset name is covered by the precache patterns.
// With no patterns everything matches.
func (c *Cache) Matches(name string) bool {
	if len(c.patterns) == 0 {
		return true
	}
	path := "/" + strings.TrimPrefix(name, "/")
	for _, g := range c.patterns {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// Put persists an asset and keeps it warm in memory.
func (c *Cache) Put(ctx context.Context, asset storage.Asset) error {
	if err := c.store.PutAsset(ctx, asset); err != nil {
		return err
	}
	stored := asset
	c.assets.Add(cacheKey(asset.Version, asset.Name), &stored)
	return nil
}

// Get returns an asset of a given version.
func (c *Cache) Get(ctx context.Context, version, name string) (*storage.Asset, error) {
	key := cacheKey(version, name)
	if asset, ok := c.assets.Get(key); ok {
		metrics.PrecacheHits.Inc()
		return asset, nil
	}
	metrics.PrecacheMisses.Inc()

	asset, err := c.store.GetAsset(ctx, version, name)
	if err != nil {
		return nil, err
	}
	c.assets.Add(key, asset)
	return asset, nil
}

// ActiveAsset returns name from the active version. storage.ErrNotFound is
// returned when nothing is active or the asset is absent.
func (c *Cache) ActiveAsset(ctx context.Context, name string) (*storage.Asset, error) {
	version, err := c.store.ActiveVersion(ctx)
	if err != nil {
		return nil, err
	}
	if version == "" {
		return nil, storage.ErrNotFound
	}
	return c.Get(ctx, version, name)
}

// DeleteVersion removes a version from the store and evicts its assets.
func (c *Cache) DeleteVersion(ctx context.Context, version string) (int, error) {
	n, err := c.store.DeleteVersion(ctx, version)
	if err != nil {
		return 0, err
	}

	prefix := version + "/"
	for _, key := range c.assets.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.assets.Remove(key)
		}
	}

	c.logger.Debug().Str("version", version).Int("assets", n).Msg("Deleted precache version")
	return n, nil
}

// CleanupOutdated deletes every version except keep. It returns the deleted
// versions.
func (c *Cache) CleanupOutdated(ctx context.Context, keep string) ([]string, error) {
	versions, err := c.store.ListVersions(ctx)
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, v := range versions {
		if v == keep {
			continue
		}
		if _, err := c.DeleteVersion(ctx, v); err != nil {
			return deleted, fmt.Errorf("delete version %s: %w", v, err)
		}
		deleted = append(deleted, v)
	}
	return deleted, nil
}

func cacheKey(version, name string) string {
	return version + "/" + name
}
