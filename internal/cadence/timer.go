// Package cadence implements the posture reminder countdown.
//
// A Timer is either idle or running a single session. A running session has
// an absolute end date; every tick derives the remaining seconds from that end
// date instead of decrementing a counter, so late or missed ticks never
// accumulate drift. When the remaining time reaches zero the alert fires once
// and the session restarts from the current instant with the same cadence.
package cadence

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/goodtune/fixposture/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IdleTitle is the window title while no session is running.
const IdleTitle = "Fix Your Posture!"

// Alerter plays the posture alert. Play must return without waiting for
// playback to finish.
type Alerter interface {
	Play()
}

// TitleSink receives window title updates.
type TitleSink interface {
	SetTitle(title string)
}

// EventKind identifies a timer state change.
type EventKind int

const (
	EventStarted EventKind = iota + 1
	EventTick
	EventExpired
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventTick:
		return "tick"
	case EventExpired:
		return "expired"
	case EventStopped:
		return "stopped"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered to listeners after every state change.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
}

// Listener observes timer events. Listeners run on the goroutine that caused
// the event and must not call back into the Timer synchronously.
type Listener func(Event)

// Snapshot is a copy of the timer state.
type Snapshot struct {
	Running     bool
	SessionID   string
	Cadence     int // minutes
	Remaining   int // seconds; meaningful only while Running
	EndDate     time.Time
	AlertsFired int
}

// Title returns the window title for the snapshot.
func (s Snapshot) Title() string {
	if !s.Running {
		return IdleTitle
	}
	return RunningTitle(s.Remaining)
}

type session struct {
	id        string
	cadence   int
	endDate   time.Time
	remaining int
	alerts    int
}

// Timer owns the countdown state machine.
type Timer struct {
	mu        sync.Mutex
	clock     Clock
	alerter   Alerter
	title     TitleSink
	logger    zerolog.Logger
	session   *session
	listeners []Listener
}

// NewTimer creates an idle timer.
func NewTimer(clock Clock, alerter Alerter, title TitleSink, logger zerolog.Logger) *Timer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Timer{
		clock:   clock,
		alerter: alerter,
		title:   title,
		logger:  logger.With().Str("component", "cadence").Logger(),
	}
}

// Subscribe registers a listener for timer events.
func (t *Timer) Subscribe(l Listener) {
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
}

// Start begins a session of the given cadence. It returns false without
// changing state when the cadence is not positive or a session is already
// running.
func (t *Timer) Start(minutes int) bool {
	if minutes <= 0 {
		t.logger.Debug().Int("cadence", minutes).Msg("Ignoring start with non-positive cadence")
		return false
	}

	t.mu.Lock()
	if t.session != nil {
		t.mu.Unlock()
		t.logger.Debug().Int("cadence", minutes).Msg("Ignoring start while a session is running")
		return false
	}
	now := t.clock.Now()
	s := &session{
		id:      uuid.NewString(),
		cadence: minutes,
		endDate: endDateFrom(now, minutes),
	}
	s.remaining = secondsUntil(s.endDate, now)
	t.session = s
	snap := t.snapshotLocked()
	t.mu.Unlock()

	metrics.SessionsStartedTotal.WithLabelValues(fmt.Sprint(minutes)).Inc()
	metrics.TimerRunning.Set(1)
	t.logger.Info().
		Str("session", snap.SessionID).
		Int("cadence", minutes).
		Time("end_date", snap.EndDate).
		Msg("Posture timer started")

	t.emit(Event{Kind: EventStarted, Snapshot: snap})
	t.Tick()
	return true
}

// StartFloat is Start for unparsed user input. NaN, infinities and
// fractional values are rejected like non-positive ones.
func (t *Timer) StartFloat(minutes float64) bool {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes != math.Trunc(minutes) {
		t.logger.Debug().Float64("cadence", minutes).Msg("Ignoring start with invalid cadence")
		return false
	}
	if minutes <= 0 || minutes > math.MaxInt32 {
		t.logger.Debug().Float64("cadence", minutes).Msg("Ignoring start with out of range cadence")
		return false
	}
	return t.Start(int(minutes))
}

// Tick recomputes the remaining time. On expiry the alert fires once and the
// session restarts from now with its original cadence, however far past the
// end date the tick arrived.
func (t *Timer) Tick() {
	t.mu.Lock()
	s := t.session
	if s == nil {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	remaining := secondsUntil(s.endDate, now)
	overdue := remaining
	expired := remaining <= 0
	if expired {
		s.alerts++
		s.endDate = endDateFrom(now, s.cadence)
		remaining = secondsUntil(s.endDate, now)
	}
	s.remaining = remaining
	snap := t.snapshotLocked()
	t.mu.Unlock()

	metrics.TicksTotal.Inc()
	metrics.RemainingSeconds.Set(float64(remaining))

	if expired {
		if t.alerter != nil {
			t.alerter.Play()
		}
		metrics.AlertsTotal.Inc()
		t.logger.Info().
			Str("session", snap.SessionID).
			Int("cadence", snap.Cadence).
			Int("overdue_seconds", -overdue).
			Int("alerts", snap.AlertsFired).
			Time("next_end_date", snap.EndDate).
			Msg("Posture alert fired")
		t.emit(Event{Kind: EventExpired, Snapshot: snap})
	}

	t.setTitle(snap.Title())
	t.emit(Event{Kind: EventTick, Snapshot: snap})
}

// Stop ends the running session. It is a no-op while idle.
func (t *Timer) Stop() {
	t.mu.Lock()
	s := t.session
	if s == nil {
		t.mu.Unlock()
		return
	}
	t.session = nil
	snap := t.snapshotLocked()
	t.mu.Unlock()

	metrics.SessionsStoppedTotal.Inc()
	metrics.TimerRunning.Set(0)
	metrics.RemainingSeconds.Set(0)
	t.logger.Info().
		Str("session", s.id).
		Int("cadence", s.cadence).
		Int("alerts", s.alerts).
		Msg("Posture timer stopped")

	t.setTitle(IdleTitle)
	t.emit(Event{Kind: EventStopped, Snapshot: snap})
}

// Running reports whether a session exists.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session != nil
}

// Remaining returns the remaining seconds of the running session, or nil
// while idle.
func (t *Timer) Remaining() *int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	r := t.session.remaining
	return &r
}

// Snapshot returns a copy of the current state.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Timer) snapshotLocked() Snapshot {
	if t.session == nil {
		return Snapshot{}
	}
	return Snapshot{
		Running:     true,
		SessionID:   t.session.id,
		Cadence:     t.session.cadence,
		Remaining:   t.session.remaining,
		EndDate:     t.session.endDate,
		AlertsFired: t.session.alerts,
	}
}

func (t *Timer) setTitle(title string) {
	if t.title != nil {
		t.title.SetTitle(title)
	}
}

func (t *Timer) emit(ev Event) {
	t.mu.Lock()
	listeners := make([]Listener, len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

// endDateFrom returns now + cadence + 1s. The extra second makes the first
// displayed value a whole number of minutes.
func endDateFrom(now time.Time, minutes int) time.Time {
	return now.Add(time.Duration(minutes)*time.Minute + time.Second)
}

// secondsUntil is floor((end - now) / 1s).
func secondsUntil(end, now time.Time) int {
	d := end.Sub(now)
	s := d / time.Second
	if d%time.Second < 0 {
		s--
	}
	return int(s)
}

// FormatRemaining renders seconds as zero-padded MM:SS. Negative values
// render as 00:00.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// RunningTitle is the window title while a session is running.
func RunningTitle(remaining int) string {
	return "Next beep in " + FormatRemaining(remaining) + "!"
}
