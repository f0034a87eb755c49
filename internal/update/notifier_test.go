package update

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRegistration struct {
	mu       sync.Mutex
	checks   int
	applies  int
	active   bool
	applyErr error
	offline  []func()
	update   []func()
}

func (f *fakeRegistration) CheckForUpdate(context.Context) error {
	f.mu.Lock()
	f.checks++
	f.mu.Unlock()
	return nil
}

func (f *fakeRegistration) ApplyUpdate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applies++
	return nil
}

func (f *fakeRegistration) OnOfflineReady(fn func())    { f.offline = append(f.offline, fn) }
func (f *fakeRegistration) OnUpdateAvailable(fn func()) { f.update = append(f.update, fn) }

func (f *fakeRegistration) Active(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeRegistration) fireOfflineReady() {
	for _, fn := range f.offline {
		fn()
	}
}

func (f *fakeRegistration) fireUpdateAvailable() {
	for _, fn := range f.update {
		fn()
	}
}

func (f *fakeRegistration) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

type fakeConnectivity struct{ online atomic.Bool }

func (f *fakeConnectivity) Online(context.Context) bool { return f.online.Load() }

type pollServer struct {
	*httptest.Server
	hits   atomic.Int64
	status atomic.Int64
	header atomic.Value
}

func newPollServer(t *testing.T) *pollServer {
	t.Helper()
	ps := &pollServer{}
	ps.status.Store(http.StatusOK)
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.hits.Add(1)
		ps.header.Store(r.Header.Clone())
		w.WriteHeader(int(ps.status.Load()))
	}))
	t.Cleanup(ps.Close)
	return ps
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestNotifier(t *testing.T, url string, period time.Duration) (*Notifier, *fakeRegistration, *fakeConnectivity) {
	t.Helper()
	reg := &fakeRegistration{}
	conn := &fakeConnectivity{}
	conn.online.Store(true)
	n := NewNotifier(reg, conn, http.DefaultClient, Config{PollURL: url, Period: period}, zerolog.Nop())
	return n, reg, conn
}

func TestPollChecksOnOK(t *testing.T) {
	srv := newPollServer(t)
	n, reg, _ := newTestNotifier(t, srv.URL+"/manifest.json", 0)

	n.Poll(context.Background())

	if reg.checkCount() != 1 {
		t.Fatalf("checks = %d, want 1", reg.checkCount())
	}
	header := srv.header.Load().(http.Header)
	if got := header.Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}
	if got := header.Get("Cache"); got != "no-store" {
		t.Errorf("Cache = %q, want no-store", got)
	}
}

func TestPollSkippedWhileOffline(t *testing.T) {
	srv := newPollServer(t)
	n, reg, conn := newTestNotifier(t, srv.URL, 0)
	conn.online.Store(false)

	n.Poll(context.Background())

	if srv.hits.Load() != 0 {
		t.Errorf("poll fetched while offline")
	}
	if reg.checkCount() != 0 {
		t.Errorf("checks = %d, want 0", reg.checkCount())
	}
}

func TestPollIgnoresNonOK(t *testing.T) {
	srv := newPollServer(t)
	srv.status.Store(http.StatusServiceUnavailable)
	n, reg, _ := newTestNotifier(t, srv.URL, 0)

	n.Poll(context.Background())

	if srv.hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", srv.hits.Load())
	}
	if reg.checkCount() != 0 {
		t.Errorf("checks = %d, want 0", reg.checkCount())
	}
}

func TestPollIgnoresNetworkError(t *testing.T) {
	srv := newPollServer(t)
	url := srv.URL
	srv.Close()

	n, reg, _ := newTestNotifier(t, url, 0)
	n.Poll(context.Background())

	if reg.checkCount() != 0 {
		t.Errorf("checks = %d, want 0", reg.checkCount())
	}
}

func TestFlagsAndActions(t *testing.T) {
	n, reg, _ := newTestNotifier(t, "http://127.0.0.1/", 0)

	var states []State
	n.Subscribe(func(s State) { states = append(states, s) })
	var reloads int
	n.OnReload(func() { reloads++ })

	reg.fireOfflineReady()
	if got := n.State(); !got.OfflineReady || got.NeedRefresh {
		t.Fatalf("state after offline-ready = %+v", got)
	}

	n.Close()
	if got := n.State(); got.Visible() {
		t.Fatalf("state after close = %+v", got)
	}
	if reg.applies != 0 {
		t.Error("Close applied the update")
	}

	reg.fireUpdateAvailable()
	if got := n.State(); !got.NeedRefresh {
		t.Fatalf("state after update-available = %+v", got)
	}

	if err := n.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if reg.applies != 1 || reloads != 1 {
		t.Errorf("applies = %d, reloads = %d, want 1/1", reg.applies, reloads)
	}
	if got := n.State(); got.Visible() {
		t.Errorf("state after reload = %+v", got)
	}

	if len(states) != 4 {
		t.Errorf("listener saw %d changes, want 4: %+v", len(states), states)
	}
}

func TestReloadErrorKeepsFlag(t *testing.T) {
	n, reg, _ := newTestNotifier(t, "http://127.0.0.1/", 0)
	reg.applyErr = errors.New("boom")

	reg.fireUpdateAvailable()
	if err := n.Reload(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !n.State().NeedRefresh {
		t.Error("NeedRefresh cleared despite failed apply")
	}
}

func TestRunPollsOnlyOnceActivated(t *testing.T) {
	srv := newPollServer(t)
	n, reg, _ := newTestNotifier(t, srv.URL, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, "initial check", func() bool { return reg.checkCount() == 1 })
	time.Sleep(30 * time.Millisecond)
	if srv.hits.Load() != 0 {
		t.Fatalf("polled %d times before activation", srv.hits.Load())
	}

	reg.mu.Lock()
	reg.active = true
	reg.mu.Unlock()

	waitFor(t, "polls", func() bool { return srv.hits.Load() >= 2 })
	waitFor(t, "checks", func() bool { return reg.checkCount() >= 3 })
}

func TestRunWithPollingDisabled(t *testing.T) {
	srv := newPollServer(t)
	n, reg, _ := newTestNotifier(t, srv.URL, 0)
	reg.fireOfflineReady()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	waitFor(t, "initial check", func() bool { return reg.checkCount() == 1 })
	time.Sleep(20 * time.Millisecond)
	if srv.hits.Load() != 0 {
		t.Fatalf("polled with polling disabled")
	}

	n.PollNow()
	waitFor(t, "manual poll", func() bool { return srv.hits.Load() == 1 })

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
