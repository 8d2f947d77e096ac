// ABOUTME: Streaming output panel: a viewport over event lines and content fragments.
// ABOUTME: Fragments for the active step concatenate in arrival order; other events log one line each.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/seam-research/lacuna/pipeline"
)

// StreamPanelModel shows the run's output: a rolling log of lifecycle events
// interleaved with the generative text as it streams.
type StreamPanelModel struct {
	vp       viewport.Model
	lines    []string
	partial  string // fragment text accumulating for the current step
	maxLines int
}

// NewStreamPanelModel creates the panel with a bounded scrollback.
func NewStreamPanelModel(maxLines int) StreamPanelModel {
	if maxLines <= 0 {
		maxLines = 500
	}
	return StreamPanelModel{
		vp:       viewport.New(0, 0),
		maxLines: maxLines,
	}
}

// SetSize resizes the viewport.
func (m *StreamPanelModel) SetSize(w, h int) {
	m.vp.Width = w
	m.vp.Height = h
	m.refresh()
}

// Append folds one run event into the panel.
func (m *StreamPanelModel) Append(evt pipeline.Event) {
	switch evt.Type {
	case pipeline.EventContentFragment:
		if text, ok := evt.Data["text"].(string); ok {
			m.partial += text
		}
	case pipeline.EventStepStarted:
		m.flushPartial()
		thinking, _ := evt.Data["thinking"].(string)
		m.addLine(fmt.Sprintf("▶ %s  %s", evt.StepID, PendingStyle.Render(thinking)))
	case pipeline.EventStepCompleted:
		m.flushPartial()
		m.addLine(CompletedStyle.Render(fmt.Sprintf("✓ %s", evt.StepID)))
	case pipeline.EventLoopTriggered:
		feedback, _ := evt.Data["feedback"].(string)
		m.addLine(LoopStyle.Render(fmt.Sprintf("↺ loop %d → %v: %s", evt.Iteration, evt.Data["target"], feedback)))
	case pipeline.EventRunTerminated:
		m.flushPartial()
		m.addLine(TitleStyle.Render(fmt.Sprintf("■ run %v", evt.Data["outcome"])))
	case pipeline.EventRunFailed:
		m.flushPartial()
		m.addLine(FailedStyle.Render(fmt.Sprintf("✗ run failed (%v): %v", evt.Data["kind"], evt.Data["error"])))
	}
	m.refresh()
}

// LineCount returns the number of committed log lines.
func (m *StreamPanelModel) LineCount() int {
	return len(m.lines)
}

func (m *StreamPanelModel) flushPartial() {
	if m.partial == "" {
		return
	}
	for _, line := range strings.Split(m.partial, "\n") {
		m.addLine(line)
	}
	m.partial = ""
}

func (m *StreamPanelModel) addLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > m.maxLines {
		m.lines = m.lines[len(m.lines)-m.maxLines:]
	}
}

func (m *StreamPanelModel) refresh() {
	content := strings.Join(m.lines, "\n")
	if m.partial != "" {
		content += "\n" + m.partial
	}
	m.vp.SetContent(content)
	m.vp.GotoBottom()
}

// View renders the viewport.
func (m StreamPanelModel) View() string {
	return m.vp.View()
}
