package alert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goodtune/fixposture/internal/assets"
	"github.com/goodtune/fixposture/internal/precache"
	"github.com/goodtune/fixposture/internal/storage"
	"github.com/rs/zerolog"
)

// Sound materializes the alert sound as a file an audio command can open.
// The active precache version wins over the embedded beep.
type Sound struct {
	cache  *precache.Cache // may be nil
	name   string
	dir    string
	logger zerolog.Logger

	mu   sync.Mutex
	path string
}

// NewSound creates a sound source. cache may be nil; dir defaults to the
// system temp directory.
func NewSound(cache *precache.Cache, name, dir string, logger zerolog.Logger) *Sound {
	if name == "" {
		name = assets.BeepName
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &Sound{
		cache:  cache,
		name:   name,
		dir:    dir,
		logger: logger.With().Str("component", "alert").Logger(),
	}
}

// Path returns the sound file, writing it on first use.
func (s *Sound) Path(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		if _, err := os.Stat(s.path); err == nil {
			return s.path, nil
		}
	}

	data := s.data(ctx)
	sum := sha256.Sum256(data)
	path := filepath.Join(s.dir, fmt.Sprintf("fixposture-%s%s", hex.EncodeToString(sum[:4]), filepath.Ext(s.name)))

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := storage.EnsureDir(s.dir); err != nil {
			return "", fmt.Errorf("create sound dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return "", fmt.Errorf("write sound file: %w", err)
		}
	}

	s.path = path
	return path, nil
}

// Reset forgets the materialized file so the next Path picks up a newly
// activated version.
func (s *Sound) Reset() {
	s.mu.Lock()
	s.path = ""
	s.mu.Unlock()
}

func (s *Sound) data(ctx context.Context) []byte {
	if s.cache != nil {
		asset, err := s.cache.ActiveAsset(ctx, s.name)
		if err == nil && len(asset.Data) > 0 {
			return asset.Data
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug().Err(err).Str("sound", s.name).Msg("Precache lookup failed, using embedded sound")
		}
	}
	return assets.Beep
}
