package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goodtune/fixposture/internal/alert"
	"github.com/goodtune/fixposture/internal/cadence"
	"github.com/goodtune/fixposture/internal/config"
	"github.com/goodtune/fixposture/internal/metrics"
	"github.com/goodtune/fixposture/internal/netcheck"
	"github.com/goodtune/fixposture/internal/precache"
	"github.com/goodtune/fixposture/internal/storage"
	"github.com/goodtune/fixposture/internal/storage/bolt"
	"github.com/goodtune/fixposture/internal/storage/redis"
	"github.com/goodtune/fixposture/internal/update"
	"github.com/rs/zerolog"
)

// app holds the wired components shared by the UI and headless modes.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	store    storage.Store
	cache    *precache.Cache
	sound    *alert.Sound
	player   alert.Player
	timer    *cadence.Timer
	runner   *cadence.Runner
	notifier *update.Notifier  // nil when updates are disabled
	exporter *metrics.Exporter // nil when no textfile is configured

	wg sync.WaitGroup
}

// newApp opens storage and builds every component. bell receives the
// terminal bell when the bell player is in use.
func newApp(cfg *config.Config, titles cadence.TitleSink, bell io.Writer, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.store = store

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	a.cache, err = newCache(cfg, store, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	a.sound = alert.NewSound(a.cache, cfg.Alert.Sound, "", logger)
	a.player, err = alert.New(cfg.Alert, a.sound, bell, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize alert player: %w", err)
	}

	a.timer = cadence.NewTimer(cadence.RealClock{}, a.player, titles, logger)
	a.runner = cadence.NewRunner(a.timer, cadence.TickInterval, logger)

	if cfg.Update.Enabled {
		a.notifier, err = newNotifier(cfg, a.cache, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.notifier.OnReload(func() {
			a.sound.Reset()
			logger.Info().Msg("Asset bundle reloaded")
		})
	}

	if cfg.Metrics.Textfile != "" {
		interval := config.ParseDuration(cfg.Metrics.Interval, 15*time.Second)
		a.exporter = metrics.NewExporter(cfg.Metrics.Textfile, interval, logger)
	}

	return a, nil
}

func newCache(cfg *config.Config, store storage.Store, logger zerolog.Logger) (*precache.Cache, error) {
	cache, err := precache.New(store.Precache(), precache.Config{
		Patterns: cfg.Update.PrecachePatterns,
		Size:     cfg.Storage.CacheSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize precache: %w", err)
	}
	return cache, nil
}

func newRegistration(cfg *config.Config, cache *precache.Cache, logger zerolog.Logger) (*update.AssetRegistration, *netcheck.Checker, error) {
	client, err := update.NewHTTPClient(0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize HTTP client: %w", err)
	}

	checker, err := netcheck.New(netcheck.Config{
		URL:       cfg.Update.PollURL,
		Resolvers: cfg.NetCheck.Resolvers,
		Timeout:   config.ParseDuration(cfg.NetCheck.Timeout, 2*time.Second),
		CacheTTL:  config.ParseDuration(cfg.NetCheck.CacheTTL, 30*time.Second),
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize connectivity check: %w", err)
	}

	reg := update.NewAssetRegistration(cache, client, update.AssetConfig{
		ManifestURL:     cfg.Update.ManifestURL,
		CleanupOutdated: cfg.Update.CleanupOutdated,
	}, logger)
	return reg, checker, nil
}

func newNotifier(cfg *config.Config, cache *precache.Cache, logger zerolog.Logger) (*update.Notifier, error) {
	reg, checker, err := newRegistration(cfg, cache, logger)
	if err != nil {
		return nil, err
	}
	client, err := update.NewHTTPClient(0)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize HTTP client: %w", err)
	}

	return update.NewNotifier(reg, checker, client, update.Config{
		PollURL: cfg.Update.PollURL,
		Period:  config.ParseDuration(cfg.Update.Period, update.DefaultPeriod),
	}, logger), nil
}

// start launches the background loops. They stop when ctx is done.
func (a *app) start(ctx context.Context) {
	a.goRun(func() { a.runner.Run(ctx) })
	if a.notifier != nil {
		a.goRun(func() { a.notifier.Run(ctx) })
	}
	if a.exporter != nil {
		a.goRun(func() { a.exporter.Run(ctx) })
	}
}

func (a *app) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// wait blocks until every loop started by start has returned.
func (a *app) wait() { a.wg.Wait() }

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close storage")
	}
}

// openStorage opens the configured precache backend
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "bolt"
	}

	switch storageType {
	case "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
