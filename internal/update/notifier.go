package update

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goodtune/fixposture/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultPeriod is the poll period when none is configured.
const DefaultPeriod = 10 * time.Second

// State holds the user-facing update flags.
type State struct {
	OfflineReady bool
	NeedRefresh  bool
}

// Visible reports whether either flag is set.
func (s State) Visible() bool { return s.OfflineReady || s.NeedRefresh }

// Config holds notifier settings
type Config struct {
	PollURL string
	Period  time.Duration // <= 0 disables polling
}

// Notifier polls for new asset bundles and tracks the update flags.
type Notifier struct {
	reg     Registration
	online  Connectivity
	client  *http.Client
	pollURL string
	period  time.Duration
	logger  zerolog.Logger
	pollNow chan struct{}

	mu        sync.Mutex
	state     State
	activated bool
	listeners []func(State)
	reloaders []func()
}

// NewNotifier creates a notifier and registers for the registration's
// offline-ready and update-available notifications.
func NewNotifier(reg Registration, online Connectivity, client *http.Client, cfg Config, logger zerolog.Logger) *Notifier {
	if online == nil {
		online = AlwaysOnline{}
	}
	n := &Notifier{
		reg:     reg,
		online:  online,
		client:  client,
		pollURL: cfg.PollURL,
		period:  cfg.Period,
		logger:  logger.With().Str("component", "update").Logger(),
		pollNow: make(chan struct{}, 1),
	}

	reg.OnOfflineReady(func() {
		n.setState(func(s *State) { s.OfflineReady = true }, true)
	})
	reg.OnUpdateAvailable(func() {
		n.setState(func(s *State) { s.NeedRefresh = true }, false)
	})

	return n
}

// Subscribe registers fn for every flag change.
func (n *Notifier) Subscribe(fn func(State)) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	n.mu.Unlock()
}

// OnReload registers fn to run after an update has been applied.
func (n *Notifier) OnReload(fn func()) {
	n.mu.Lock()
	n.reloaders = append(n.reloaders, fn)
	n.mu.Unlock()
}

// State returns the current flags.
func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Close dismisses the notice and keeps the current version.
func (n *Notifier) Close() {
	n.setState(func(s *State) { *s = State{} }, false)
}

// Reload applies the waiting update and runs the reload hooks.
func (n *Notifier) Reload(ctx context.Context) error {
	if err := n.reg.ApplyUpdate(ctx); err != nil {
		return err
	}

	n.setState(func(s *State) { *s = State{} }, false)

	n.mu.Lock()
	hooks := append([]func(){}, n.reloaders...)
	n.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// PollNow requests an immediate poll from Run.
func (n *Notifier) PollNow() {
	select {
	case n.pollNow <- struct{}{}:
	default:
	}
}

// Run checks once, then polls every period until ctx is done. Polls are
// skipped until a version is active and while offline.
func (n *Notifier) Run(ctx context.Context) {
	if err := n.reg.CheckForUpdate(ctx); err != nil {
		n.logger.Warn().Err(err).Msg("Initial update check failed")
	}

	var tick <-chan time.Time
	if n.period > 0 {
		ticker := time.NewTicker(n.period)
		defer ticker.Stop()
		tick = ticker.C
		n.logger.Debug().Dur("period", n.period).Str("url", n.pollURL).Msg("Update polling started")
	} else {
		n.logger.Debug().Msg("Periodic update polling disabled")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-n.pollNow:
		}

		if !n.isActivated(ctx) {
			metrics.UpdatePollsTotal.WithLabelValues("inactive").Inc()
			continue
		}
		n.Poll(ctx)
	}
}

// Poll runs one poll cycle. Failures are logged and retried next cycle.
func (n *Notifier) Poll(ctx context.Context) {
	if !n.online.Online(ctx) {
		metrics.UpdatePollsTotal.WithLabelValues("offline").Inc()
		n.logger.Debug().Msg("Offline, skipping update poll")
		return
	}

	resp, err := fetch(ctx, n.client, n.pollURL)
	if err != nil {
		metrics.UpdatePollsTotal.WithLabelValues("error").Inc()
		n.logger.Debug().Err(err).Str("url", n.pollURL).Msg("Update poll failed")
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpdatePollsTotal.WithLabelValues("status").Inc()
		n.logger.Debug().Int("status", resp.StatusCode).Msg("Update poll returned non-200")
		return
	}

	metrics.UpdatePollsTotal.WithLabelValues("ok").Inc()
	if err := n.reg.CheckForUpdate(ctx); err != nil {
		n.logger.Debug().Err(err).Msg("Update check failed")
	}
}

func (n *Notifier) isActivated(ctx context.Context) bool {
	n.mu.Lock()
	activated := n.activated
	n.mu.Unlock()
	if activated {
		return true
	}

	if ar, ok := n.reg.(activeReporter); ok && ar.Active(ctx) {
		n.mu.Lock()
		n.activated = true
		n.mu.Unlock()
		return true
	}
	return false
}

func (n *Notifier) setState(change func(*State), activated bool) {
	n.mu.Lock()
	before := n.state
	change(&n.state)
	if activated {
		n.activated = true
	}
	after := n.state
	listeners := append([]func(State){}, n.listeners...)
	n.mu.Unlock()

	if after == before {
		return
	}
	for _, fn := range listeners {
		fn(after)
	}
}
