package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goodtune/fixposture/internal/cadence"
	"github.com/goodtune/fixposture/internal/config"
	"github.com/goodtune/fixposture/internal/systemd"
	"github.com/goodtune/fixposture/internal/title"
	"github.com/goodtune/fixposture/internal/tui"
	"github.com/goodtune/fixposture/internal/update"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	runCadence  int
	runHeadless bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the posture timer",
	Long: `Run the posture timer. By default an interactive terminal UI is shown;
with --headless the timer runs without a UI, which suits a systemd user service.`,
	Example: `  fixposture run
  fixposture run --cadence 20
  fixposture run --cadence 30 --headless`,
	RunE: runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&runCadence, "cadence", 0, "Cadence in minutes (5-60 in steps of 5)")
	cmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without the terminal UI")
}

func runRun(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	minutes := cfg.Cadence.DefaultMinutes
	if runCadence != 0 {
		if !config.ValidCadence(runCadence) {
			return fmt.Errorf("invalid cadence: %d minutes (choose one of %v)", runCadence, config.CadenceChoices)
		}
		minutes = runCadence
	}

	if runHeadless {
		return runHeadlessMode(cmd.Context(), cfg, minutes)
	}
	return runInteractive(cmd.Context(), cfg, minutes)
}

func runInteractive(ctx context.Context, cfg *config.Config, minutes int) error {
	logFile, err := openLogFile(cfg.Logging.File)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger := setupLogger(cfg.Logging, logFile)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting fixposture")

	// The program does not exist yet when the timer is built; titles are
	// only produced after it starts.
	var program *tea.Program
	var titles cadence.TitleSink = title.Func(func(string) {})
	if cfg.Title.Enabled {
		titles = title.Func(func(s string) { program.Send(tui.TitleMsg(s)) })
	}

	a, err := newApp(cfg, titles, os.Stdout, logger)
	if err != nil {
		return err
	}
	defer a.close()

	var updates tui.UpdateControl
	if a.notifier != nil {
		updates = a.notifier
	}

	model := tui.New(a.timer, updates, tui.Options{
		DefaultMinutes: minutes,
		Titles:         cfg.Title.Enabled,
	})
	program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	a.timer.Subscribe(func(ev cadence.Event) { program.Send(tui.TimerMsg(ev)) })
	if a.notifier != nil {
		a.notifier.Subscribe(func(s update.State) { program.Send(tui.UpdateMsg(s)) })
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.start(runCtx)

	_, runErr := program.Run()

	// Quitting ends the session and releases the ticker
	a.timer.Stop()
	cancel()
	a.wait()

	logger.Info().Msg("fixposture stopped")
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI failed: %w", runErr)
	}
	return nil
}

func runHeadlessMode(ctx context.Context, cfg *config.Config, minutes int) error {
	if minutes == 0 {
		return fmt.Errorf("headless mode needs --cadence or cadence.default_minutes")
	}

	logger := setupLogger(cfg.Logging, os.Stdout)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Int("cadence", minutes).
		Msg("Starting fixposture (headless)")

	a, err := newApp(cfg, title.New(os.Stderr, cfg.Title.Enabled, logger), os.Stderr, logger)
	if err != nil {
		return err
	}
	defer a.close()

	a.timer.Subscribe(func(ev cadence.Event) {
		if ev.Kind == cadence.EventTick {
			return
		}
		if err := systemd.NotifyStatus(statusLine(ev)); err != nil {
			logger.Debug().Err(err).Msg("Failed to send systemd status")
		}
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.start(runCtx)
	a.goRun(func() { systemd.RunWatchdog(runCtx, logger) })

	if !a.timer.Start(minutes) {
		cancel()
		a.wait()
		return fmt.Errorf("cadence %d rejected", minutes)
	}

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	waitForShutdown(runCtx, a, logger)

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	a.timer.Stop()
	cancel()
	a.wait()

	logger.Info().Msg("fixposture stopped")
	return nil
}

// waitForShutdown handles signals until a shutdown signal arrives. SIGHUP
// polls for an update at once; SIGUSR1 applies a waiting update.
func waitForShutdown(ctx context.Context, a *app, logger zerolog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				if a.notifier == nil {
					logger.Info().Msg("SIGHUP received, updates are disabled")
					continue
				}
				logger.Info().Msg("SIGHUP received, polling for updates...")
				a.notifier.PollNow()

			case syscall.SIGUSR1:
				if a.notifier == nil || !a.notifier.State().NeedRefresh {
					logger.Info().Msg("SIGUSR1 received, no update waiting")
					continue
				}
				logger.Info().Msg("SIGUSR1 received, applying update...")
				if err := a.notifier.Reload(ctx); err != nil {
					logger.Error().Err(err).Msg("Failed to apply update")
				}

			default:
				logger.Info().Msg("Shutdown signal received, gracefully stopping...")
				return
			}
		}
	}
}

func statusLine(ev cadence.Event) string {
	if !ev.Snapshot.Running {
		return cadence.IdleTitle
	}
	return fmt.Sprintf("%s (every %d min, %d alerts)", ev.Snapshot.Title(), ev.Snapshot.Cadence, ev.Snapshot.AlertsFired)
}
