// ABOUTME: lipgloss style constants for the run viewer panels and status colors.

package tui

import "github.com/charmbracelet/lipgloss"

var (
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Step status colors
	PendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	RunningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	CompletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	FailedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	LoopStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)

	ScoreGoodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	ScoreWeakStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ScoreBadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// StyleForStatus maps a step status to its display style.
func StyleForStatus(status StepStatus) lipgloss.Style {
	switch status {
	case StepRunning:
		return RunningStyle
	case StepDone:
		return CompletedStyle
	case StepFailed:
		return FailedStyle
	default:
		return PendingStyle
	}
}
