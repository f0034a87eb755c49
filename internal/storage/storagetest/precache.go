// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/goodtune/fixposture/internal/storage"
)

// RunPrecacheStoreTests exercises a PrecacheStore implementation. open must
// return an empty store.
func RunPrecacheStoreTests(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Run("PutGetAsset", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()
		testPutGetAsset(t, store.Precache())
	})
	t.Run("MissingAsset", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()
		testMissingAsset(t, store.Precache())
	})
	t.Run("WaitingThenActivate", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()
		testWaitingThenActivate(t, store.Precache())
	})
	t.Run("MarkersRequireInstalledVersion", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()
		testMarkersRequireInstalledVersion(t, store.Precache())
	})
	t.Run("DeleteVersion", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()
		testDeleteVersion(t, store.Precache())
	})
}

func putAsset(t *testing.T, s storage.PrecacheStore, version, name, body string) {
	t.Helper()
	err := s.PutAsset(context.Background(), storage.Asset{
		Version:  version,
		Name:     name,
		SHA256:   "sha-" + name,
		Data:     []byte(body),
		CachedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("PutAsset(%s, %s): %v", version, name, err)
	}
}

func testPutGetAsset(t *testing.T, s storage.PrecacheStore) {
	ctx := context.Background()
	putAsset(t, s, "v1", "beep.wav", "RIFF")
	putAsset(t, s, "v1", "index.html", "<html>")

	asset, err := s.GetAsset(ctx, "v1", "beep.wav")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if string(asset.Data) != "RIFF" {
		t.Errorf("Data = %q, want RIFF", asset.Data)
	}
	if asset.SHA256 != "sha-beep.wav" {
		t.Errorf("SHA256 = %q", asset.SHA256)
	}
	if asset.Version != "v1" || asset.Name != "beep.wav" {
		t.Errorf("unexpected identity %s/%s", asset.Version, asset.Name)
	}

	names, err := s.ListAssets(ctx, "v1")
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "beep.wav" || names[1] != "index.html" {
		t.Errorf("ListAssets = %v", names)
	}

	versions, err := s.ListVersions(ctx)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 || versions[0] != "v1" {
		t.Errorf("ListVersions = %v", versions)
	}
}

func testMissingAsset(t *testing.T, s storage.PrecacheStore) {
	ctx := context.Background()
	if _, err := s.GetAsset(ctx, "v9", "beep.wav"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetAsset on missing version: err = %v, want ErrNotFound", err)
	}
	putAsset(t, s, "v1", "beep.wav", "RIFF")
	if _, err := s.GetAsset(ctx, "v1", "other.wav"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetAsset on missing name: err = %v, want ErrNotFound", err)
	}

	active, err := s.ActiveVersion(ctx)
	if err != nil {
		t.Fatalf("ActiveVersion: %v", err)
	}
	if active != "" {
		t.Errorf("ActiveVersion = %q on fresh store", active)
	}
}

func testWaitingThenActivate(t *testing.T, s storage.PrecacheStore) {
	ctx := context.Background()
	putAsset(t, s, "v1", "beep.wav", "one")
	if err := s.Activate(ctx, "v1"); err != nil {
		t.Fatalf("Activate(v1): %v", err)
	}

	putAsset(t, s, "v2", "beep.wav", "two")
	if err := s.SetWaiting(ctx, "v2"); err != nil {
		t.Fatalf("SetWaiting(v2): %v", err)
	}

	waiting, _ := s.WaitingVersion(ctx)
	active, _ := s.ActiveVersion(ctx)
	if waiting != "v2" || active != "v1" {
		t.Fatalf("active=%q waiting=%q, want v1/v2", active, waiting)
	}

	if err := s.Activate(ctx, "v2"); err != nil {
		t.Fatalf("Activate(v2): %v", err)
	}
	waiting, _ = s.WaitingVersion(ctx)
	active, _ = s.ActiveVersion(ctx)
	if waiting != "" || active != "v2" {
		t.Errorf("active=%q waiting=%q, want v2 and no waiting", active, waiting)
	}
}

func testMarkersRequireInstalledVersion(t *testing.T, s storage.PrecacheStore) {
	ctx := context.Background()
	if err := s.Activate(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Activate(ghost) err = %v, want ErrNotFound", err)
	}
	if err := s.SetWaiting(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetWaiting(ghost) err = %v, want ErrNotFound", err)
	}
}

func testDeleteVersion(t *testing.T, s storage.PrecacheStore) {
	ctx := context.Background()
	putAsset(t, s, "v1", "beep.wav", "one")
	putAsset(t, s, "v1", "app.js", "js")
	putAsset(t, s, "v2", "beep.wav", "two")
	if err := s.Activate(ctx, "v2"); err != nil {
		t.Fatalf("Activate(v2): %v", err)
	}

	deleted, err := s.DeleteVersion(ctx, "v1")
	if err != nil {
		t.Fatalf("DeleteVersion(v1): %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if _, err := s.GetAsset(ctx, "v1", "beep.wav"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("asset survived delete: err = %v", err)
	}

	versions, _ := s.ListVersions(ctx)
	if len(versions) != 1 || versions[0] != "v2" {
		t.Errorf("ListVersions = %v, want [v2]", versions)
	}

	deleted, err = s.DeleteVersion(ctx, "v1")
	if err != nil || deleted != 0 {
		t.Errorf("second DeleteVersion = %d, %v", deleted, err)
	}

	// Deleting the active version clears the marker.
	if _, err := s.DeleteVersion(ctx, "v2"); err != nil {
		t.Fatalf("DeleteVersion(v2): %v", err)
	}
	if active, _ := s.ActiveVersion(ctx); active != "" {
		t.Errorf("ActiveVersion = %q after deleting it", active)
	}
}
