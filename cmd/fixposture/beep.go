package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/fixposture/internal/alert"
	"github.com/goodtune/fixposture/internal/config"
	"github.com/goodtune/fixposture/internal/precache"
	"github.com/spf13/cobra"
)

var beepCmd = &cobra.Command{
	Use:   "beep",
	Short: "Play the posture alert once",
	Long:  `Play the posture alert once with the configured player, to check that audio works.`,
	Args:  cobra.NoArgs,
	RunE:  runBeep,
}

func init() {
	rootCmd.AddCommand(beepCmd)
}

func runBeep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)

	// The precache is optional here; the embedded beep is always available
	var cache *precache.Cache
	if store, err := openStorage(cfg.Storage); err != nil {
		logger.Warn().Err(err).Msg("Precache unavailable, using embedded sound")
	} else {
		defer store.Close()
		if cache, err = newCache(cfg, store, logger); err != nil {
			return err
		}
	}

	sound := alert.NewSound(cache, cfg.Alert.Sound, "", logger)
	player, err := alert.New(cfg.Alert, sound, os.Stdout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize alert player: %w", err)
	}

	player.Play()
	if w, ok := player.(interface{ Wait() }); ok {
		w.Wait()
	}

	green := color.New(color.FgGreen)
	green.Fprintf(cmd.OutOrStdout(), "🔔 Played alert with %q player\n", cfg.Alert.Player)
	return nil
}
