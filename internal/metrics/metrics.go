package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Registry holds every fixposture metric. It is private to the process so
// the textfile export contains only our series.
var Registry = prometheus.NewRegistry()

var (
	// Timer metrics
	SessionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixposture_sessions_started_total",
			Help: "Total timer sessions started",
		},
		[]string{"cadence"},
	)

	SessionsStoppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixposture_sessions_stopped_total",
			Help: "Total timer sessions stopped by the user",
		},
	)

	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixposture_ticks_total",
			Help: "Total countdown ticks evaluated",
		},
	)

	AlertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixposture_alerts_total",
			Help: "Total posture alerts fired",
		},
	)

	TimerRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fixposture_timer_running",
			Help: "1 while a timer session is running",
		},
	)

	RemainingSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fixposture_remaining_seconds",
			Help: "Seconds until the next posture alert",
		},
	)

	// Alert playback metrics
	AlertPlaybackErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixposture_alert_playback_errors_total",
			Help: "Alert playback failures",
		},
		[]string{"player"},
	)

	// Update notifier metrics
	UpdatePollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixposture_update_polls_total",
			Help: "Update polls by result",
		},
		[]string{"result"},
	)

	UpdateChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixposture_update_checks_total",
			Help: "Manifest checks by outcome",
		},
		[]string{"outcome"},
	)

	UpdatesAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixposture_updates_applied_total",
			Help: "Asset bundle versions activated",
		},
	)

	// Precache metrics
	PrecacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixposture_precache_hits_total",
			Help: "Asset reads served from the in-memory cache",
		},
	)

	PrecacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixposture_precache_misses_total",
			Help: "Asset reads that went to the storage backend",
		},
	)
)

func init() {
	Registry.MustRegister(
		SessionsStartedTotal,
		SessionsStoppedTotal,
		TicksTotal,
		AlertsTotal,
		TimerRunning,
		RemainingSeconds,
		AlertPlaybackErrors,
		UpdatePollsTotal,
		UpdateChecksTotal,
		UpdatesAppliedTotal,
		PrecacheHits,
		PrecacheMisses,
	)
}

// Exporter periodically writes the registry to a node_exporter textfile.
type Exporter struct {
	path     string
	interval time.Duration
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

// DefaultInterval is the export period used when none is configured.
const DefaultInterval = 15 * time.Second

// NewExporter creates a textfile exporter for path.
func NewExporter(path string, interval time.Duration, logger zerolog.Logger) *Exporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Exporter{
		path:     path,
		interval: interval,
		gatherer: Registry,
		logger:   logger.With().Str("component", "metrics").Logger(),
	}
}

// Write writes the current values once.
func (e *Exporter) Write() error {
	return prometheus.WriteToTextfile(e.path, e.gatherer)
}

// Run writes the textfile every interval until ctx is cancelled, then writes
// it a final time.
func (e *Exporter) Run(ctx context.Context) {
	e.logger.Info().
		Str("path", e.path).
		Dur("interval", e.interval).
		Msg("Starting metrics textfile export")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.Write(); err != nil {
				e.logger.Error().Err(err).Msg("Failed to write metrics textfile")
			}
		case <-ctx.Done():
			if err := e.Write(); err != nil {
				e.logger.Error().Err(err).Msg("Failed to write final metrics textfile")
			}
			e.logger.Info().Msg("Stopped metrics textfile export")
			return
		}
	}
}
