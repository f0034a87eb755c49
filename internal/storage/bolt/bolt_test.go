package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/goodtune/fixposture/internal/storage"
	"github.com/goodtune/fixposture/internal/storage/storagetest"
)

func TestPrecacheStore(t *testing.T) {
	storagetest.RunPrecacheStoreTests(t, func(t *testing.T) storage.Store {
		return openTestStore(t)
	})
}

func TestReopenKeepsActiveVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "precache.bolt")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	if err := store.Precache().PutAsset(ctx, storage.Asset{Version: "v1", Name: "beep.wav", Data: []byte("x")}); err != nil {
		t.Fatalf("put asset: %v", err)
	}
	if err := store.Precache().Activate(ctx, "v1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = store.Close() }()

	active, err := store.Precache().ActiveVersion(ctx)
	if err != nil {
		t.Fatalf("active version: %v", err)
	}
	if active != "v1" {
		t.Errorf("expected active v1 after reopen, got %q", active)
	}
}

func TestPutAssetRequiresIdentity(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	err := store.Precache().PutAsset(context.Background(), storage.Asset{Name: "beep.wav"})
	if err == nil {
		t.Fatal("expected error for asset without version")
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "precache.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
