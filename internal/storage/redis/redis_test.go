package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/fixposture/internal/config"
	"github.com/goodtune/fixposture/internal/storage"
	"github.com/goodtune/fixposture/internal/storage/storagetest"
)

func testConfig(mr *miniredis.Miniredis) config.RedisConfig {
	// miniredis.Addr() returns "host:port" so Port stays zero
	return config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
		KeyPrefix:    "test",
	}
}

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := Open(testConfig(mr))
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}

	return store, mr
}

func TestPrecacheStore(t *testing.T) {
	storagetest.RunPrecacheStoreTests(t, func(t *testing.T) storage.Store {
		store, _ := setupTestStore(t)
		return store
	})
}

func TestOpenRejectsBadTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(mr)
	cfg.DialTimeout = "soon"

	if _, err := Open(cfg); err == nil {
		t.Fatal("expected error for invalid dial_timeout")
	}
}

func TestOpenFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(mr)
	cfg.DialTimeout = "100ms"
	mr.Close()

	if _, err := Open(cfg); err == nil {
		t.Fatal("expected error when Redis is unreachable")
	}
}

func TestKeysUsePrefix(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	asset := storage.Asset{Version: "v1", Name: "beep.wav", SHA256: "abc", Data: []byte{0, 1, 2}}
	if err := store.Precache().PutAsset(ctx, asset); err != nil {
		t.Fatalf("PutAsset failed: %v", err)
	}
	if err := store.Precache().Activate(ctx, "v1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	if !mr.Exists("test:asset:v1:beep.wav") {
		t.Error("asset hash not stored under prefix")
	}
	if ok, _ := mr.SIsMember("test:versions", "v1"); !ok {
		t.Error("version not indexed")
	}
	if got, _ := mr.Get("test:active"); got != "v1" {
		t.Errorf("active marker = %q, want v1", got)
	}
}

func TestBinaryDataRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	data := []byte{0x00, 0xff, 0x52, 0x49, 0x46, 0x46, 0x00, 0x0a}
	if err := store.Precache().PutAsset(ctx, storage.Asset{Version: "v2", Name: "beep.wav", Data: data}); err != nil {
		t.Fatalf("PutAsset failed: %v", err)
	}

	got, err := store.Precache().GetAsset(ctx, "v2", "beep.wav")
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if string(got.Data) != string(data) {
		t.Errorf("data = %v, want %v", got.Data, data)
	}
}
