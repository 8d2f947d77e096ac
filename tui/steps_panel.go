// ABOUTME: Step list panel: one row per pipeline step with live status markers.
// ABOUTME: Loop decisions reset downstream rows to pending so the rerun is visible.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/seam-research/lacuna/pipeline"
)

// StepStatus is the display state of one step row.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepDone
	StepFailed
)

// StepsPanelModel renders the pipeline's step list with status markers.
type StepsPanelModel struct {
	steps    []pipeline.Step
	statuses map[string]StepStatus
	spinner  spinner.Model
	width    int
}

// NewStepsPanelModel creates the panel for a pipeline definition.
func NewStepsPanelModel(pipe *pipeline.Pipeline) StepsPanelModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = RunningStyle

	statuses := make(map[string]StepStatus, len(pipe.Steps))
	for _, s := range pipe.Steps {
		statuses[s.ID] = StepPending
	}
	return StepsPanelModel{
		steps:    pipe.Steps,
		statuses: statuses,
		spinner:  sp,
	}
}

// SetWidth sets the render width.
func (m *StepsPanelModel) SetWidth(w int) { m.width = w }

// SetStatus updates one step's display status.
func (m *StepsPanelModel) SetStatus(stepID string, status StepStatus) {
	m.statuses[stepID] = status
}

// Status returns one step's display status.
func (m *StepsPanelModel) Status(stepID string) StepStatus {
	return m.statuses[stepID]
}

// ResetFrom marks the target step and everything after it pending again,
// mirroring the engine's loop semantics.
func (m *StepsPanelModel) ResetFrom(targetStepID string) {
	found := false
	for _, s := range m.steps {
		if s.ID == targetStepID {
			found = true
		}
		if found {
			m.statuses[s.ID] = StepPending
		}
	}
}

// AdvanceSpinner steps the spinner animation.
func (m *StepsPanelModel) AdvanceSpinner() {
	m.spinner, _ = m.spinner.Update(m.spinner.Tick())
}

// View renders the step list.
func (m StepsPanelModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Steps"))
	b.WriteString("\n")

	for _, s := range m.steps {
		status := m.statuses[s.ID]
		var marker string
		switch status {
		case StepRunning:
			marker = m.spinner.View()
		case StepDone:
			marker = CompletedStyle.Render("✓")
		case StepFailed:
			marker = FailedStyle.Render("✗")
		default:
			marker = PendingStyle.Render("·")
		}

		line := fmt.Sprintf("%s %s", marker, StyleForStatus(status).Render(s.Name))
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}
