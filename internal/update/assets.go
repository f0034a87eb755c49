package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goodtune/fixposture/internal/metrics"
	"github.com/goodtune/fixposture/internal/precache"
	"github.com/goodtune/fixposture/internal/storage"
	"github.com/rs/zerolog"
)

// AssetConfig holds asset registration settings
type AssetConfig struct {
	ManifestURL     string
	CleanupOutdated bool
}

// AssetRegistration installs manifest versions into the precache. The
// first version installed becomes active at once; later ones wait until
// ApplyUpdate.
type AssetRegistration struct {
	cache       *precache.Cache
	client      *http.Client
	manifestURL string
	cleanup     bool
	logger      zerolog.Logger

	// mu serializes install and activation
	mu sync.Mutex

	cbMu              sync.Mutex
	onOfflineReady    []func()
	onUpdateAvailable []func()
}

// NewAssetRegistration creates a registration backed by cache
func NewAssetRegistration(cache *precache.Cache, client *http.Client, cfg AssetConfig, logger zerolog.Logger) *AssetRegistration {
	return &AssetRegistration{
		cache:       cache,
		client:      client,
		manifestURL: cfg.ManifestURL,
		cleanup:     cfg.CleanupOutdated,
		logger:      logger.With().Str("component", "update").Logger(),
	}
}

// OnOfflineReady registers fn for the first successful install.
func (r *AssetRegistration) OnOfflineReady(fn func()) {
	r.cbMu.Lock()
	r.onOfflineReady = append(r.onOfflineReady, fn)
	r.cbMu.Unlock()
}

// OnUpdateAvailable registers fn for a newly installed waiting version.
func (r *AssetRegistration) OnUpdateAvailable(fn func()) {
	r.cbMu.Lock()
	r.onUpdateAvailable = append(r.onUpdateAvailable, fn)
	r.cbMu.Unlock()
}

// Active reports whether a version is already active.
func (r *AssetRegistration) Active(ctx context.Context) bool {
	version, err := r.cache.Store().ActiveVersion(ctx)
	return err == nil && version != ""
}

// CheckForUpdate fetches the manifest and installs a version not seen yet.
func (r *AssetRegistration) CheckForUpdate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome, err := r.check(ctx)
	if err != nil {
		metrics.UpdateChecksTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.UpdateChecksTotal.WithLabelValues(outcome).Inc()

	switch outcome {
	case "activated":
		r.fire(&r.onOfflineReady)
	case "waiting":
		r.fire(&r.onUpdateAvailable)
	}
	return nil
}

func (r *AssetRegistration) check(ctx context.Context) (string, error) {
	store := r.cache.Store()

	manifest, err := FetchManifest(ctx, r.client, r.manifestURL)
	if err != nil {
		return "", fmt.Errorf("fetch manifest: %w", err)
	}

	active, err := store.ActiveVersion(ctx)
	if err != nil {
		return "", err
	}
	waiting, err := store.WaitingVersion(ctx)
	if err != nil {
		return "", err
	}
	if manifest.Version == active || manifest.Version == waiting {
		r.logger.Debug().Str("version", manifest.Version).Msg("Asset bundle unchanged")
		return "unchanged", nil
	}

	count, err := r.install(ctx, manifest)
	if err != nil {
		if _, cerr := r.cache.DeleteVersion(ctx, manifest.Version); cerr != nil {
			r.logger.Warn().Err(cerr).Str("version", manifest.Version).Msg("Failed to remove partial install")
		}
		return "", fmt.Errorf("install version %s: %w", manifest.Version, err)
	}

	logger := r.logger.With().Str("version", manifest.Version).Int("assets", count).Logger()

	if active == "" {
		if err := store.Activate(ctx, manifest.Version); err != nil {
			return "", fmt.Errorf("activate version %s: %w", manifest.Version, err)
		}
		logger.Info().Msg("Asset bundle installed and ready offline")
		return "activated", nil
	}

	if err := store.SetWaiting(ctx, manifest.Version); err != nil {
		return "", fmt.Errorf("mark version %s waiting: %w", manifest.Version, err)
	}
	logger.Info().Str("active", active).Msg("New asset bundle waiting")
	return "waiting", nil
}

func (r *AssetRegistration) install(ctx context.Context, manifest *Manifest) (int, error) {
	count := 0
	for _, a := range manifest.Assets {
		if !r.cache.Matches(a.Name) {
			r.logger.Debug().Str("asset", a.Name).Msg("Asset not covered by precache patterns")
			continue
		}

		data, err := get(ctx, r.client, a.URL)
		if err != nil {
			return count, err
		}

		sum := sha256.Sum256(data)
		digest := hex.EncodeToString(sum[:])
		if a.SHA256 != "" && !strings.EqualFold(a.SHA256, digest) {
			return count, fmt.Errorf("asset %s: sha256 mismatch: got %s, want %s", a.Name, digest, a.SHA256)
		}

		err = r.cache.Put(ctx, storage.Asset{
			Version:  manifest.Version,
			Name:     a.Name,
			SHA256:   digest,
			Data:     data,
			CachedAt: time.Now(),
		})
		if err != nil {
			return count, fmt.Errorf("store asset %s: %w", a.Name, err)
		}
		count++
	}

	if count == 0 {
		return 0, fmt.Errorf("manifest has no precacheable assets")
	}
	return count, nil
}

// ApplyUpdate activates the waiting version, if any, and drops outdated
// versions when cleanup is enabled.
func (r *AssetRegistration) ApplyUpdate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	store := r.cache.Store()
	waiting, err := store.WaitingVersion(ctx)
	if err != nil {
		return err
	}
	if waiting == "" {
		return nil
	}

	if err := store.Activate(ctx, waiting); err != nil {
		return fmt.Errorf("activate version %s: %w", waiting, err)
	}
	metrics.UpdatesAppliedTotal.Inc()
	r.logger.Info().Str("version", waiting).Msg("Asset bundle activated")

	if r.cleanup {
		deleted, err := r.cache.CleanupOutdated(ctx, waiting)
		if err != nil {
			return fmt.Errorf("cleanup outdated versions: %w", err)
		}
		if len(deleted) > 0 {
			r.logger.Info().Strs("versions", deleted).Msg("Removed outdated asset bundles")
		}
	}
	return nil
}

func (r *AssetRegistration) fire(list *[]func()) {
	r.cbMu.Lock()
	fns := append([]func(){}, *list...)
	r.cbMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
