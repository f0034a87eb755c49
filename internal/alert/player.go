// Package alert plays the posture alert. Playback is fire-and-forget:
// overlapping alerts are allowed and failures never reach the caller.
package alert

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/goodtune/fixposture/internal/config"
	"github.com/goodtune/fixposture/internal/metrics"
	"github.com/rs/zerolog"
)

// Player plays the alert once.
type Player interface {
	Play()
}

// FilePlaceholder is replaced with the sound path in command arguments.
const FilePlaceholder = "{file}"

// candidates are probed in order by the "auto" player.
var candidates = [][]string{
	{"paplay", FilePlaceholder},
	{"pw-play", FilePlaceholder},
	{"aplay", "-q", FilePlaceholder},
	{"afplay", FilePlaceholder},
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// CommandPlayer runs an external audio command on the alert sound.
type CommandPlayer struct {
	argv   []string
	sound  *Sound
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewCommandPlayer creates a player for argv. Each FilePlaceholder argument
// is substituted with the sound path; if none is present the path is appended.
func NewCommandPlayer(argv []string, sound *Sound, logger zerolog.Logger) *CommandPlayer {
	return &CommandPlayer{
		argv:   argv,
		sound:  sound,
		logger: logger.With().Str("component", "alert").Str("player", "command").Logger(),
	}
}

// Play starts the command in the background.
func (p *CommandPlayer) Play() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.run(context.Background()); err != nil {
			metrics.AlertPlaybackErrors.WithLabelValues("command").Inc()
			p.logger.Debug().Err(err).Msg("Alert playback failed")
		}
	}()
}

// Wait blocks until every started playback has finished.
func (p *CommandPlayer) Wait() { p.wg.Wait() }

func (p *CommandPlayer) run(ctx context.Context) error {
	path, err := p.sound.Path(ctx)
	if err != nil {
		return err
	}
	args := expandArgs(p.argv, path)
	if len(args) == 0 {
		return fmt.Errorf("empty alert command")
	}
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func expandArgs(argv []string, path string) []string {
	args := make([]string, 0, len(argv)+1)
	substituted := false
	for _, a := range argv {
		if strings.Contains(a, FilePlaceholder) {
			a = strings.ReplaceAll(a, FilePlaceholder, path)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted && len(args) > 0 {
		args = append(args, path)
	}
	return args
}

// BellPlayer rings the terminal bell.
type BellPlayer struct {
	mu     sync.Mutex
	w      io.Writer
	logger zerolog.Logger
}

// NewBellPlayer creates a bell writing to w.
func NewBellPlayer(w io.Writer, logger zerolog.Logger) *BellPlayer {
	return &BellPlayer{w: w, logger: logger.With().Str("component", "alert").Str("player", "bell").Logger()}
}

// Play writes BEL.
func (p *BellPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.w, "\a"); err != nil {
		metrics.AlertPlaybackErrors.WithLabelValues("bell").Inc()
		p.logger.Debug().Err(err).Msg("Bell failed")
	}
}

// MultiPlayer plays every player.
type MultiPlayer []Player

// Play plays each player in order.
func (m MultiPlayer) Play() {
	for _, p := range m {
		p.Play()
	}
}

// Wait waits for members that track playback.
func (m MultiPlayer) Wait() {
	for _, p := range m {
		if w, ok := p.(interface{ Wait() }); ok {
			w.Wait()
		}
	}
}

// NopPlayer plays nothing.
type NopPlayer struct{}

// Play does nothing.
func (NopPlayer) Play() {}

// New builds the player selected by cfg. bell receives BEL for the bell
// player and is usually the terminal.
func New(cfg config.AlertConfig, sound *Sound, bell io.Writer, logger zerolog.Logger) (Player, error) {
	var player Player
	switch cfg.Player {
	case "auto", "":
		if argv := Detect(); argv != nil {
			logger.Debug().Strs("command", argv).Msg("Detected audio command")
			player = NewCommandPlayer(argv, sound, logger)
		} else {
			logger.Debug().Msg("No audio command found, using terminal bell")
			return NewBellPlayer(bell, logger), nil
		}
	case "command":
		if len(cfg.Command) == 0 {
			return nil, fmt.Errorf("alert command is empty")
		}
		player = NewCommandPlayer(cfg.Command, sound, logger)
	case "bell":
		return NewBellPlayer(bell, logger), nil
	case "none":
		player = NopPlayer{}
	default:
		return nil, fmt.Errorf("unknown alert player: %s", cfg.Player)
	}

	if cfg.Bell {
		return MultiPlayer{player, NewBellPlayer(bell, logger)}, nil
	}
	return player, nil
}

// Detect returns the first known audio command found on PATH, or nil.
func Detect() []string {
	for _, c := range candidates {
		if _, err := lookPath(c[0]); err == nil {
			return c
		}
	}
	return nil
}
