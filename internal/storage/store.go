package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
// Only the asset precache is persisted; timer settings live in memory.
type Store interface {
	Close() error
	Precache() PrecacheStore
}

// PrecacheStore holds downloaded asset bundles, one per manifest version,
// plus the active and waiting version markers.
type PrecacheStore interface {
	PutAsset(ctx context.Context, asset Asset) error
	GetAsset(ctx context.Context, version, name string) (*Asset, error)
	ListAssets(ctx context.Context, version string) ([]string, error)
	ListVersions(ctx context.Context) ([]string, error)
	DeleteVersion(ctx context.Context, version string) (int, error)

	// ActiveVersion returns "" when nothing has been activated yet.
	ActiveVersion(ctx context.Context) (string, error)
	// WaitingVersion returns "" when no installed version awaits activation.
	WaitingVersion(ctx context.Context) (string, error)
	SetWaiting(ctx context.Context, version string) error
	// Activate makes version active and clears the waiting marker.
	Activate(ctx context.Context, version string) error
}
