// ABOUTME: Bubble Tea message types exchanged between the run bridge and the app model.

package tui

import (
	"time"

	"github.com/seam-research/lacuna/pipeline"
)

// RunEventMsg wraps one engine event for the message loop.
type RunEventMsg struct {
	Event pipeline.Event
}

// RunClosedMsg signals that the run's event stream has closed.
type RunClosedMsg struct{}

// TickMsg drives the spinner animation.
type TickMsg struct {
	Time time.Time
}
