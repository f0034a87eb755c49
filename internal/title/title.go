// Package title sets the terminal window title.
package title

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Writer emits OSC 0 sequences. It does nothing unless the output is a
// terminal.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	last    string
	logger  zerolog.Logger
}

// New creates a title writer for f. Titles are only written when enabled
// and f is a terminal.
func New(f *os.File, enabled bool, logger zerolog.Logger) *Writer {
	return NewWriter(f, enabled && isTerminal(f), logger)
}

// NewWriter creates a title writer for an arbitrary writer, bypassing
// terminal detection.
func NewWriter(w io.Writer, enabled bool, logger zerolog.Logger) *Writer {
	return &Writer{
		w:       w,
		enabled: enabled,
		logger:  logger.With().Str("component", "title").Logger(),
	}
}

// SetTitle writes title unless it is already shown.
func (t *Writer) SetTitle(title string) {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if title == t.last {
		return
	}
	if _, err := io.WriteString(t.w, Sequence(title)); err != nil {
		t.logger.Debug().Err(err).Msg("Failed to set window title")
		return
	}
	t.last = title
}

// Sequence returns the OSC 0 escape setting title. Control characters are
// dropped so a title cannot terminate the sequence early.
func Sequence(title string) string {
	clean := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, title)
	return fmt.Sprintf("\x1b]0;%s\a", clean)
}

// Func adapts a function to the title sink interface.
type Func func(string)

// SetTitle calls f.
func (f Func) SetTitle(title string) { f(title) }

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
