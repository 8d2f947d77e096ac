// ABOUTME: One-line status bar: goal, iteration counter, live scores, elapsed time.

package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/seam-research/lacuna/pipeline"
)

// StatusBarModel renders the run's vital signs in a single line.
type StatusBarModel struct {
	goal       string
	thresholds pipeline.Thresholds
	scores     map[string]float64
	iteration  int
	outcome    string
	width      int
	startedAt  time.Time
}

// NewStatusBarModel creates the bar for a run goal.
func NewStatusBarModel(goal string, th pipeline.Thresholds) StatusBarModel {
	return StatusBarModel{
		goal:       goal,
		thresholds: th,
		scores:     make(map[string]float64),
		startedAt:  time.Now(),
	}
}

// SetWidth sets the render width.
func (m *StatusBarModel) SetWidth(w int) { m.width = w }

// SetIteration records the current loop iteration.
func (m *StatusBarModel) SetIteration(n int) { m.iteration = n }

// SetOutcome records the terminal outcome.
func (m *StatusBarModel) SetOutcome(outcome string) { m.outcome = outcome }

// MergeScores folds step scores into the display.
func (m *StatusBarModel) MergeScores(scores map[string]float64) {
	for k, v := range scores {
		m.scores[k] = v
	}
}

// View renders the bar.
func (m StatusBarModel) View() string {
	var parts []string

	goal := m.goal
	if len(goal) > 40 {
		goal = goal[:37] + "..."
	}
	parts = append(parts, goal)
	parts = append(parts, fmt.Sprintf("loop %d/%d", m.iteration, m.thresholds.MaxLoops))

	if len(m.scores) > 0 {
		dims := make([]string, 0, len(m.scores))
		for d := range m.scores {
			dims = append(dims, d)
		}
		sort.Strings(dims)
		scoreParts := make([]string, 0, len(dims))
		for _, d := range dims {
			s := m.scores[d]
			style := ScoreGoodStyle
			switch {
			case s < m.thresholds.Critical:
				style = ScoreBadStyle
			case s < m.thresholds.Adequate:
				style = ScoreWeakStyle
			}
			scoreParts = append(scoreParts, style.Render(fmt.Sprintf("%s %.2f", d, s)))
		}
		parts = append(parts, strings.Join(scoreParts, " "))
	}

	if m.outcome != "" {
		parts = append(parts, strings.ToUpper(m.outcome))
	} else {
		parts = append(parts, time.Since(m.startedAt).Round(time.Second).String())
	}

	return StatusBarStyle.Width(m.width).Render(strings.Join(parts, " │ "))
}
