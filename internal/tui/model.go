// Package tui is the interactive terminal front end: a cadence picker, a
// Start/Stop toggle, the live countdown and the update toast.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/goodtune/fixposture/internal/cadence"
	"github.com/goodtune/fixposture/internal/config"
	"github.com/goodtune/fixposture/internal/update"
)

const (
	offlineReadyText = "App ready to work offline"
	needRefreshText  = "New content available, click on reload button to update."
)

// TimerControl is the part of the cadence timer the UI drives.
type TimerControl interface {
	Start(minutes int) bool
	Stop()
	Snapshot() cadence.Snapshot
}

// UpdateControl is the part of the update notifier the UI drives.
type UpdateControl interface {
	State() update.State
	Reload(ctx context.Context) error
	Close()
}

// TimerMsg carries a timer event into the program.
type TimerMsg cadence.Event

// UpdateMsg carries new update flags into the program.
type UpdateMsg update.State

// TitleMsg asks the program to set the window title.
type TitleMsg string

type timerStateMsg cadence.Snapshot

type reloadDoneMsg struct{ err error }

// Model is the Bubble Tea model. Calls into the timer and notifier run as
// commands because both publish events back into the program.
type Model struct {
	timer   TimerControl
	updates UpdateControl // nil when updates are disabled

	choices  []int
	cursor   int
	selected int // minutes; 0 = nothing selected

	snap    cadence.Snapshot
	toast   update.State
	err     error
	pending bool // reload in flight

	titles bool
	keys   keyMap
	help   help.Model
}

// Options configures a new Model.
type Options struct {
	DefaultMinutes int  // preselected cadence; ignored unless offered
	Titles         bool // set the window title
}

// New creates the model.
func New(timer TimerControl, updates UpdateControl, opts Options) Model {
	m := Model{
		timer:   timer,
		updates: updates,
		choices: config.CadenceChoices,
		titles:  opts.Titles,
		keys:    newKeyMap(),
		help:    help.New(),
		snap:    timer.Snapshot(),
	}
	for i, c := range m.choices {
		if c == opts.DefaultMinutes {
			m.cursor = i
			m.selected = c
		}
	}
	if m.snap.Running {
		m.selected = m.snap.Cadence
	}
	if updates != nil {
		m.toast = updates.State()
	}
	return m
}

// Init sets the initial window title.
func (m Model) Init() tea.Cmd {
	if !m.titles {
		return nil
	}
	return tea.SetWindowTitle(m.snap.Title())
}

// Update handles a message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case TimerMsg:
		m.snap = msg.Snapshot

	case timerStateMsg:
		m.snap = cadence.Snapshot(msg)

	case TitleMsg:
		if m.titles {
			return m, tea.SetWindowTitle(string(msg))
		}

	case UpdateMsg:
		m.toast = update.State(msg)

	case reloadDoneMsg:
		m.pending = false
		m.err = msg.err
		if m.updates != nil {
			m.toast = m.updates.State()
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Prev):
		if !m.snap.Running && m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Next):
		if !m.snap.Running && m.cursor < len(m.choices)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Select):
		if !m.snap.Running {
			m.selected = m.choices[m.cursor]
		}

	case key.Matches(msg, m.keys.Toggle):
		if m.snap.Running {
			return m, m.stopCmd()
		}
		if m.selected > 0 {
			return m, m.startCmd(m.selected)
		}

	case key.Matches(msg, m.keys.Reload):
		if m.updates != nil && m.toast.NeedRefresh && !m.pending {
			m.pending = true
			m.err = nil
			return m, m.reloadCmd()
		}

	case key.Matches(msg, m.keys.Close):
		if m.updates != nil && m.toast.Visible() {
			m.toast = update.State{}
			return m, m.closeCmd()
		}
	}
	return m, nil
}

func (m Model) startCmd(minutes int) tea.Cmd {
	timer := m.timer
	return func() tea.Msg {
		timer.Start(minutes)
		return timerStateMsg(timer.Snapshot())
	}
}

func (m Model) stopCmd() tea.Cmd {
	timer := m.timer
	return func() tea.Msg {
		timer.Stop()
		return timerStateMsg(timer.Snapshot())
	}
}

func (m Model) reloadCmd() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		return reloadDoneMsg{err: updates.Reload(context.Background())}
	}
}

func (m Model) closeCmd() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		updates.Close()
		return UpdateMsg(updates.State())
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(cadence.IdleTitle))
	b.WriteString("\n")
	b.WriteString(m.viewChoices())
	b.WriteString("\n\n")
	b.WriteString(m.viewButton())

	if m.snap.Running {
		b.WriteString("\n")
		b.WriteString(countdownStyle.Render("Next beep in " + cadence.FormatRemaining(m.snap.Remaining)))
	}

	if toast := m.viewToast(); toast != "" {
		b.WriteString("\n")
		b.WriteString(toast)
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Reload failed: " + m.err.Error()))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewChoices() string {
	items := make([]string, len(m.choices))
	for i, c := range m.choices {
		mark := "( )"
		if c == m.selected {
			mark = "(•)"
		}
		label := fmt.Sprintf("%s %d min", mark, c)

		style := choiceStyle
		switch {
		case m.snap.Running:
			style = disabledChoiceStyle
		case i == m.cursor:
			style = cursorChoiceStyle
		}
		items[i] = style.Render(label)
	}

	// Two rows of six
	half := (len(items) + 1) / 2
	return strings.Join(items[:half], "") + "\n" + strings.Join(items[half:], "")
}

func (m Model) viewButton() string {
	if m.snap.Running {
		return buttonStyle.Render("Stop")
	}
	if m.selected == 0 {
		return disabledButtonStyle.Render("Start")
	}
	return buttonStyle.Render("Start")
}

func (m Model) viewToast() string {
	switch {
	case m.toast.NeedRefresh:
		actions := "[r] Reload  [c] Close"
		if m.pending {
			actions = "Reloading…"
		}
		return toastStyle.Render(needRefreshText + "\n" + actions)
	case m.toast.OfflineReady:
		return toastStyle.Render(offlineReadyText + "\n[c] Close")
	}
	return ""
}
