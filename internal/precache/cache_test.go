package precache

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/goodtune/fixposture/internal/storage"
	"github.com/goodtune/fixposture/internal/storage/bolt"
	"github.com/rs/zerolog"
)

func newTestCache(t *testing.T, patterns ...string) *Cache {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "precache.bolt"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cache, err := New(store.Precache(), Config{Patterns: patterns, Size: 8}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return cache
}

func TestMatches(t *testing.T) {
	cache := newTestCache(t, "**/*.{js,css,html,svg,png,ico,webp,wav}")

	tests := []struct {
		name string
		want bool
	}{
		{"beep.wav", true},
		{"sounds/beep.wav", true},
		{"/index.html", true},
		{"assets/js/app.js", true},
		{"manifest.json", false},
		{"notes.txt", false},
		{"beep.wav.bak", false},
	}
	for _, tt := range tests {
		if got := cache.Matches(tt.name); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMatchesWithoutPatterns(t *testing.T) {
	cache := newTestCache(t)
	if !cache.Matches("anything.bin") {
		t.Error("empty pattern list should match everything")
	}
}

func TestInvalidPattern(t *testing.T) {
	store, err := bolt.Open(filepath.Join(t.TempDir(), "precache.bolt"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := New(store.Precache(), Config{Patterns: []string{"[unclosed"}}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestActiveAsset(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if _, err := cache.ActiveAsset(ctx, "beep.wav"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ActiveAsset with nothing active: err = %v, want ErrNotFound", err)
	}

	if err := cache.Put(ctx, storage.Asset{Version: "v1", Name: "beep.wav", Data: []byte("RIFF")}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := cache.Store().Activate(ctx, "v1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	asset, err := cache.ActiveAsset(ctx, "beep.wav")
	if err != nil {
		t.Fatalf("ActiveAsset() error = %v", err)
	}
	if string(asset.Data) != "RIFF" {
		t.Errorf("data = %q, want RIFF", asset.Data)
	}
}

func TestGetReadsThroughStore(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	// Written behind the cache's back
	if err := cache.Store().PutAsset(ctx, storage.Asset{Version: "v1", Name: "app.js", Data: []byte("x")}); err != nil {
		t.Fatalf("PutAsset() error = %v", err)
	}

	if _, err := cache.Get(ctx, "v1", "app.js"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !cache.assets.Contains(cacheKey("v1", "app.js")) {
		t.Error("asset not cached after read")
	}
}

func TestCleanupOutdated(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	for _, v := range []string{"v1", "v2", "v3"} {
		if err := cache.Put(ctx, storage.Asset{Version: v, Name: "beep.wav", Data: []byte(v)}); err != nil {
			t.Fatalf("Put(%s) error = %v", v, err)
		}
	}

	deleted, err := cache.CleanupOutdated(ctx, "v3")
	if err != nil {
		t.Fatalf("CleanupOutdated() error = %v", err)
	}
	sort.Strings(deleted)
	if len(deleted) != 2 || deleted[0] != "v1" || deleted[1] != "v2" {
		t.Errorf("deleted = %v, want [v1 v2]", deleted)
	}

	if cache.assets.Contains(cacheKey("v1", "beep.wav")) {
		t.Error("deleted version still cached in memory")
	}
	if _, err := cache.Get(ctx, "v1", "beep.wav"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get deleted asset: err = %v, want ErrNotFound", err)
	}
	if _, err := cache.Get(ctx, "v3", "beep.wav"); err != nil {
		t.Errorf("kept version missing: %v", err)
	}
}
