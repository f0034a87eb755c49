package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.AdaptiveColor{Light: "#1F6FEB", Dark: "#58A6FF"}
	muted  = lipgloss.AdaptiveColor{Light: "#8C959F", Dark: "#6E7681"}

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)

	choiceStyle         = lipgloss.NewStyle().PaddingRight(2)
	cursorChoiceStyle   = choiceStyle.Underline(true)
	disabledChoiceStyle = choiceStyle.Foreground(muted)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 3).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent)
	disabledButtonStyle = buttonStyle.Background(muted)

	countdownStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)

	toastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	helpStyle = lipgloss.NewStyle().MarginTop(1)
)
