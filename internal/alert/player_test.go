package alert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goodtune/fixposture/internal/assets"
	"github.com/goodtune/fixposture/internal/config"
	"github.com/goodtune/fixposture/internal/precache"
	"github.com/goodtune/fixposture/internal/storage"
	"github.com/goodtune/fixposture/internal/storage/bolt"
	"github.com/rs/zerolog"
)

type countingPlayer struct{ plays int }

func (p *countingPlayer) Play() { p.plays++ }

func TestExpandArgs(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want []string
	}{
		{"placeholder", []string{"paplay", "{file}"}, []string{"paplay", "/tmp/a.wav"}},
		{"embedded placeholder", []string{"play", "--file={file}"}, []string{"play", "--file=/tmp/a.wav"}},
		{"appended", []string{"aplay", "-q"}, []string{"aplay", "-q", "/tmp/a.wav"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandArgs(tt.argv, "/tmp/a.wav")
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("expandArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSoundFallsBackToEmbeddedBeep(t *testing.T) {
	sound := NewSound(nil, "", t.TempDir(), zerolog.Nop())

	path, err := sound.Path(context.Background())
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "fixposture-") || filepath.Ext(path) != ".wav" {
		t.Errorf("unexpected sound path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sound: %v", err)
	}
	if !bytes.Equal(data, assets.Beep) {
		t.Error("sound file does not hold the embedded beep")
	}
}

func TestSoundPrefersActiveVersion(t *testing.T) {
	ctx := context.Background()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "precache.bolt"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	cache, err := precache.New(store.Precache(), precache.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("precache.New() error = %v", err)
	}

	sound := NewSound(cache, "beep.wav", t.TempDir(), zerolog.Nop())
	first, err := sound.Path(ctx)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}

	if err := cache.Put(ctx, storage.Asset{Version: "v2", Name: "beep.wav", Data: []byte("new sound")}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Precache().Activate(ctx, "v2"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	if again, _ := sound.Path(ctx); again != first {
		t.Errorf("path changed before Reset: %q -> %q", first, again)
	}

	sound.Reset()
	second, err := sound.Path(ctx)
	if err != nil {
		t.Fatalf("Path() after Reset error = %v", err)
	}
	data, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("read sound: %v", err)
	}
	if string(data) != "new sound" {
		t.Errorf("sound = %q, want active version data", data)
	}
}

func TestCommandPlayerRunsCommand(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "played.wav")
	sound := NewSound(nil, "", dir, zerolog.Nop())

	player := NewCommandPlayer([]string{"cp", FilePlaceholder, dst}, sound, zerolog.Nop())
	player.Play()
	player.Wait()

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("command did not run: %v", err)
	}
	if !bytes.Equal(data, assets.Beep) {
		t.Error("command received the wrong file")
	}
}

func TestCommandPlayerSwallowsErrors(t *testing.T) {
	sound := NewSound(nil, "", t.TempDir(), zerolog.Nop())
	player := NewCommandPlayer([]string{"fixposture-no-such-player"}, sound, zerolog.Nop())

	// Must neither panic nor block
	player.Play()
	player.Play()
	player.Wait()
}

func TestBellPlayer(t *testing.T) {
	var buf bytes.Buffer
	NewBellPlayer(&buf, zerolog.Nop()).Play()
	if buf.String() != "\a" {
		t.Errorf("bell wrote %q", buf.String())
	}
}

func TestMultiPlayer(t *testing.T) {
	a, b := &countingPlayer{}, &countingPlayer{}
	MultiPlayer{a, b}.Play()
	if a.plays != 1 || b.plays != 1 {
		t.Errorf("plays = %d/%d, want 1/1", a.plays, b.plays)
	}
}

func TestNew(t *testing.T) {
	orig := lookPath
	defer func() { lookPath = orig }()

	sound := NewSound(nil, "", t.TempDir(), zerolog.Nop())

	tests := []struct {
		name      string
		cfg       config.AlertConfig
		available string
		check     func(t *testing.T, p Player)
		wantErr   bool
	}{
		{
			name:      "auto picks command",
			cfg:       config.AlertConfig{Player: "auto"},
			available: "aplay",
			check: func(t *testing.T, p Player) {
				cp, ok := p.(*CommandPlayer)
				if !ok {
					t.Fatalf("player = %T, want *CommandPlayer", p)
				}
				if cp.argv[0] != "aplay" {
					t.Errorf("argv = %v", cp.argv)
				}
			},
		},
		{
			name: "auto falls back to bell",
			cfg:  config.AlertConfig{Player: "auto"},
			check: func(t *testing.T, p Player) {
				if _, ok := p.(*BellPlayer); !ok {
					t.Errorf("player = %T, want *BellPlayer", p)
				}
			},
		},
		{
			name: "command with bell",
			cfg:  config.AlertConfig{Player: "command", Command: []string{"true"}, Bell: true},
			check: func(t *testing.T, p Player) {
				m, ok := p.(MultiPlayer)
				if !ok || len(m) != 2 {
					t.Errorf("player = %#v, want two-player MultiPlayer", p)
				}
			},
		},
		{
			name: "none",
			cfg:  config.AlertConfig{Player: "none"},
			check: func(t *testing.T, p Player) {
				if _, ok := p.(NopPlayer); !ok {
					t.Errorf("player = %T, want NopPlayer", p)
				}
			},
		},
		{name: "empty command", cfg: config.AlertConfig{Player: "command"}, wantErr: true},
		{name: "unknown", cfg: config.AlertConfig{Player: "kazoo"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookPath = func(file string) (string, error) {
				if file == tt.available {
					return "/usr/bin/" + file, nil
				}
				return "", errors.New("not found")
			}

			p, err := New(tt.cfg, sound, &bytes.Buffer{}, zerolog.Nop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			tt.check(t, p)
		})
	}
}
