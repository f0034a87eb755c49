package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/fixposture/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	checkManifestURL string
	checkApply       bool
	checkTimeout     time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one-off checks",
	Long:  `Run one-off checks against the configured services.`,
}

var checkUpdateCmd = &cobra.Command{
	Use:   "update [flags]",
	Short: "Check for a new asset bundle",
	Long: `Fetch the asset manifest once, install a new version into the precache and
report the active and waiting versions.`,
	Example: `  fixposture check update
  fixposture check update --url https://example.com/fixposture/manifest.json
  fixposture check update --apply`,
	Args: cobra.NoArgs,
	RunE: runCheckUpdate,
}

func init() {
	checkUpdateCmd.Flags().StringVar(&checkManifestURL, "url", "", "Manifest URL (defaults to update.manifest_url)")
	checkUpdateCmd.Flags().BoolVar(&checkApply, "apply", false, "Activate a waiting version")
	checkUpdateCmd.Flags().DurationVar(&checkTimeout, "timeout", 30*time.Second, "Overall timeout")

	checkCmd.AddCommand(checkUpdateCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckUpdate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if checkManifestURL != "" {
		cfg.Update.ManifestURL = checkManifestURL
		cfg.Update.PollURL = checkManifestURL
	}
	if cfg.Update.ManifestURL == "" {
		return fmt.Errorf("no manifest url: set update.manifest_url or pass --url")
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	cache, err := newCache(cfg, store, logger)
	if err != nil {
		return err
	}
	reg, checker, err := newRegistration(cfg, cache, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	result := updateResult{manifestURL: cfg.Update.ManifestURL, online: checker.Online(ctx)}
	reg.OnOfflineReady(func() { result.event = "offline-ready" })
	reg.OnUpdateAvailable(func() { result.event = "update-available" })

	result.checkErr = reg.CheckForUpdate(ctx)
	if checkApply && result.checkErr == nil {
		result.applyErr = reg.ApplyUpdate(ctx)
		result.applied = result.applyErr == nil
	}

	precache := store.Precache()
	if result.active, err = precache.ActiveVersion(ctx); err != nil {
		return fmt.Errorf("failed to read active version: %w", err)
	}
	if result.waiting, err = precache.WaitingVersion(ctx); err != nil {
		return fmt.Errorf("failed to read waiting version: %w", err)
	}

	printUpdateResult(cmd.OutOrStdout(), result)

	if result.checkErr != nil {
		return result.checkErr
	}
	return result.applyErr
}

type updateResult struct {
	manifestURL string
	online      bool
	event       string
	active      string
	waiting     string
	applied     bool
	checkErr    error
	applyErr    error
}

// printUpdateResult displays the check result with colors
func printUpdateResult(w io.Writer, r updateResult) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Fprintln(w)
	cyan.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Fprintln(w, "  Update Check")
	cyan.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Manifest:   %s\n", r.manifestURL)
	cyan.Fprint(w, "Network:    ")
	if r.online {
		green.Fprintln(w, "ONLINE")
	} else {
		yellow.Fprintln(w, "OFFLINE (DNS probe failed)")
	}

	cyan.Fprint(w, "Result:     ")
	switch {
	case r.checkErr != nil:
		red.Fprintln(w, "FAILED")
		fmt.Fprintf(w, "            → %v\n", r.checkErr)
	case r.event == "offline-ready":
		green.Fprintln(w, "INSTALLED")
		fmt.Fprintln(w, "            → App ready to work offline")
	case r.event == "update-available":
		yellow.Fprintln(w, "UPDATE AVAILABLE")
		fmt.Fprintln(w, "            → New content available, reload to update")
	default:
		green.Fprintln(w, "UP TO DATE")
	}

	if r.applyErr != nil {
		red.Fprintf(w, "Apply:      FAILED (%v)\n", r.applyErr)
	} else if r.applied {
		green.Fprintln(w, "Apply:      DONE")
	}

	fmt.Fprintf(w, "Active:     %s\n", orNone(r.active))
	fmt.Fprintf(w, "Waiting:    %s\n", orNone(r.waiting))

	fmt.Fprintln(w)
	cyan.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
