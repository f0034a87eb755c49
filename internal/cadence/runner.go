package cadence

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickInterval is the period of the repeating tick while a session runs.
const TickInterval = time.Second

// Runner drives Timer.Tick from a repeating ticker. The ticker exists only
// while a session runs and is re-armed whenever the session starts, restarts
// after an alert, or stops.
type Runner struct {
	timer    *Timer
	interval time.Duration
	rearm    chan struct{}
	logger   zerolog.Logger
}

// NewRunner creates a runner for timer. An interval <= 0 means TickInterval.
func NewRunner(timer *Timer, interval time.Duration, logger zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = TickInterval
	}
	r := &Runner{
		timer:    timer,
		interval: interval,
		rearm:    make(chan struct{}, 1),
		logger:   logger.With().Str("component", "cadence-runner").Logger(),
	}
	timer.Subscribe(func(ev Event) {
		switch ev.Kind {
		case EventStarted, EventExpired, EventStopped:
			r.signal()
		}
	})
	return r
}

func (r *Runner) signal() {
	select {
	case r.rearm <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled. The ticker is always released on return.
func (r *Runner) Run(ctx context.Context) {
	var ticker *time.Ticker
	var tickC <-chan time.Time

	disarm := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	defer disarm()

	arm := func() {
		disarm()
		snap := r.timer.Snapshot()
		if !snap.Running {
			r.logger.Debug().Msg("Ticker disarmed")
			return
		}
		ticker = time.NewTicker(r.interval)
		tickC = ticker.C
		r.logger.Debug().
			Str("session", snap.SessionID).
			Time("end_date", snap.EndDate).
			Msg("Ticker armed")
	}

	arm()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.rearm:
			arm()
		case <-tickC:
			r.timer.Tick()
		}
	}
}
