// Package update keeps the offline asset bundle current and tells the user
// when a newer bundle is waiting.
package update

import (
	"context"
)

// Registration is the platform capability the notifier drives. Callbacks
// may fire from whichever goroutine runs CheckForUpdate.
type Registration interface {
	CheckForUpdate(ctx context.Context) error
	ApplyUpdate(ctx context.Context) error
	OnOfflineReady(fn func())
	OnUpdateAvailable(fn func())
}

// activeReporter is implemented by registrations that already hold an
// active version from a previous run.
type activeReporter interface {
	Active(ctx context.Context) bool
}

// Connectivity reports whether a poll is worth attempting.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// AlwaysOnline is used when no connectivity probe is configured.
type AlwaysOnline struct{}

// Online returns true.
func (AlwaysOnline) Online(context.Context) bool { return true }
