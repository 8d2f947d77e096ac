// ABOUTME: Top-level Bubble Tea model for watching one pipeline run: step list,
// ABOUTME: streaming output viewport, and a status bar with live scores.

package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/seam-research/lacuna/pipeline"
)

// AppModel composes the run viewer panels and routes engine events to them.
type AppModel struct {
	steps     StepsPanelModel
	stream    StreamPanelModel
	statusBar StatusBarModel

	run  *pipeline.Run
	done bool

	width  int
	height int
}

// NewAppModel creates the viewer for a started run.
func NewAppModel(run *pipeline.Run, pipe *pipeline.Pipeline, th pipeline.Thresholds) AppModel {
	return AppModel{
		steps:     NewStepsPanelModel(pipe),
		stream:    NewStreamPanelModel(500),
		statusBar: NewStatusBarModel(run.Goal, th),
		run:       run,
	}
}

// Init implements tea.Model: arm the event wait and the spinner tick.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		WaitForEventCmd(m.run.Events()),
		TickCmd(100*time.Millisecond),
	)
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case RunEventMsg:
		m.applyEvent(msg.Event)
		return m, WaitForEventCmd(m.run.Events())

	case RunClosedMsg:
		m.done = true
		return m, nil

	case TickMsg:
		m.steps.AdvanceSpinner()
		if m.done {
			return m, nil
		}
		return m, TickCmd(100 * time.Millisecond)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Cancel, then keep draining so the engine can emit its terminal
			// event and close the stream after the tea loop stops.
			m.run.Cancel()
			go func(events <-chan pipeline.Event) {
				for range events {
				}
			}(m.run.Events())
			return m, tea.Quit
		}
	}

	return m, nil
}

// applyEvent folds one engine event into the panel models.
func (m *AppModel) applyEvent(evt pipeline.Event) {
	m.stream.Append(evt)

	switch evt.Type {
	case pipeline.EventStepStarted:
		m.steps.SetStatus(evt.StepID, StepRunning)
	case pipeline.EventStepCompleted:
		m.steps.SetStatus(evt.StepID, StepDone)
		if scores, ok := evt.Data["scores"].(map[string]float64); ok {
			m.statusBar.MergeScores(scores)
		}
	case pipeline.EventLoopTriggered:
		m.statusBar.SetIteration(evt.Iteration)
		if target, ok := evt.Data["target"].(string); ok {
			m.steps.ResetFrom(target)
		}
	case pipeline.EventRunTerminated:
		if outcome, ok := evt.Data["outcome"].(string); ok {
			m.statusBar.SetOutcome(outcome)
		}
	case pipeline.EventRunFailed:
		m.steps.SetStatus(evt.StepID, StepFailed)
		m.statusBar.SetOutcome(string(pipeline.OutcomeFailed))
	}
}

// View implements tea.Model.
func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.width < 40 || m.height < 10 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 40x10.", m.width, m.height)
	}

	statusBarHeight := 1
	bodyHeight := m.height - statusBarHeight - 2 // borders

	stepsWidth := m.width * 30 / 100
	if stepsWidth < 20 {
		stepsWidth = 20
	}
	streamWidth := m.width - stepsWidth - 4
	if streamWidth < 10 {
		streamWidth = 10
	}

	m.steps.SetWidth(stepsWidth)
	m.stream.SetSize(streamWidth, bodyHeight)
	m.statusBar.SetWidth(m.width)

	left := BorderStyle.Width(stepsWidth).Height(bodyHeight).Render(m.steps.View())
	right := BorderStyle.Width(streamWidth).Height(bodyHeight).Render(m.stream.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(m.statusBar.View())
	return b.String()
}
