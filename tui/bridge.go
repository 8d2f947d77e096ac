// ABOUTME: Bridge between a run's event channel and the Bubble Tea message loop.
// ABOUTME: tea.Cmd factories that block on the stream and re-arm from Update.

package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/seam-research/lacuna/pipeline"
)

// WaitForEventCmd returns a tea.Cmd that blocks for the next run event.
// Update re-arms it after each delivery; a closed channel yields RunClosedMsg.
func WaitForEventCmd(events <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return RunClosedMsg{}
		}
		return RunEventMsg{Event: evt}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
func TickCmd(interval time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(interval)
		return TickMsg{Time: time.Now()}
	}
}
