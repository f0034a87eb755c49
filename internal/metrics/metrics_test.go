package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestExporterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixposture.prom")
	exporter := NewExporter(path, time.Hour, zerolog.Nop())

	AlertsTotal.Inc()

	if err := exporter.Write(); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "fixposture_alerts_total") {
		t.Errorf("textfile missing alerts counter:\n%s", data)
	}
}

func TestExporterRunWritesOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixposture.prom")
	exporter := NewExporter(path, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		exporter.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("exporter did not stop")
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected textfile after shutdown: %v", err)
	}
}

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(UpdatesAppliedTotal)
	UpdatesAppliedTotal.Inc()
	if got := testutil.ToFloat64(UpdatesAppliedTotal); got != before+1 {
		t.Errorf("UpdatesAppliedTotal = %v, want %v", got, before+1)
	}

	count, err := testutil.GatherAndCount(Registry, "fixposture_updates_applied_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 series, got %d", count)
	}
}
