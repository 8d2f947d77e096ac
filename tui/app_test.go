package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/seam-research/lacuna/pipeline"
)

func discoveryPipe(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, ok := pipeline.ByKind(pipeline.KindDiscovery)
	if !ok {
		t.Fatal("discovery pipeline missing")
	}
	return p
}

func evt(typ pipeline.EventType, stepID string, data map[string]any) pipeline.Event {
	return pipeline.Event{
		ID:        "01TEST",
		Type:      typ,
		StepID:    stepID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func TestStepsPanelTracksStatuses(t *testing.T) {
	panel := NewStepsPanelModel(discoveryPipe(t))

	panel.SetStatus("target_hypothesis", StepRunning)
	if panel.Status("target_hypothesis") != StepRunning {
		t.Error("status not updated")
	}
	panel.SetStatus("target_hypothesis", StepDone)
	panel.SetStatus("literature_evidence", StepDone)
	panel.SetStatus("druggability", StepDone)

	panel.ResetFrom("literature_evidence")
	if panel.Status("literature_evidence") != StepPending {
		t.Error("loop target should reset to pending")
	}
	if panel.Status("druggability") != StepPending {
		t.Error("steps after the loop target should reset to pending")
	}
	if panel.Status("target_hypothesis") != StepDone {
		t.Error("steps before the loop target must keep their status")
	}
}

func TestStreamPanelAccumulatesFragmentsUntilBoundary(t *testing.T) {
	panel := NewStreamPanelModel(100)
	panel.SetSize(80, 20)

	panel.Append(evt(pipeline.EventStepStarted, "gap_synthesizer", map[string]any{"thinking": "synthesizing"}))
	before := panel.LineCount()

	panel.Append(evt(pipeline.EventContentFragment, "gap_synthesizer", map[string]any{"text": "partial "}))
	panel.Append(evt(pipeline.EventContentFragment, "gap_synthesizer", map[string]any{"text": "output"}))
	if panel.LineCount() != before {
		t.Error("fragments must not commit lines until a boundary event")
	}

	panel.Append(evt(pipeline.EventStepCompleted, "gap_synthesizer", nil))
	if panel.LineCount() <= before {
		t.Error("step completion should flush accumulated fragments")
	}
}

func TestStreamPanelBoundsScrollback(t *testing.T) {
	panel := NewStreamPanelModel(10)
	for i := 0; i < 50; i++ {
		panel.Append(evt(pipeline.EventStepCompleted, "s", nil))
	}
	if panel.LineCount() > 10 {
		t.Errorf("lines = %d, want at most 10", panel.LineCount())
	}
}

func TestStatusBarShowsScoresAndOutcome(t *testing.T) {
	bar := NewStatusBarModel("explore KRAS", pipeline.DefaultThresholds())
	bar.SetWidth(120)
	bar.MergeScores(map[string]float64{"evidence": 0.30, "novelty": 0.80})
	bar.SetIteration(1)

	view := bar.View()
	if !strings.Contains(view, "evidence 0.30") || !strings.Contains(view, "novelty 0.80") {
		t.Errorf("scores missing from view: %q", view)
	}
	if !strings.Contains(view, "loop 1/3") {
		t.Errorf("iteration missing from view: %q", view)
	}

	bar.SetOutcome("approved")
	if !strings.Contains(bar.View(), "APPROVED") {
		t.Errorf("outcome missing from view: %q", bar.View())
	}
}

func TestAppModelAppliesRunEvents(t *testing.T) {
	pipe := discoveryPipe(t)
	m := AppModel{
		steps:     NewStepsPanelModel(pipe),
		stream:    NewStreamPanelModel(100),
		statusBar: NewStatusBarModel("goal", pipeline.DefaultThresholds()),
	}

	m.applyEvent(evt(pipeline.EventStepStarted, "target_hypothesis", map[string]any{"thinking": "t"}))
	if m.steps.Status("target_hypothesis") != StepRunning {
		t.Error("step_started should mark the step running")
	}

	m.applyEvent(evt(pipeline.EventStepCompleted, "target_hypothesis", map[string]any{
		"scores": map[string]float64{"evidence": 0.9},
	}))
	if m.steps.Status("target_hypothesis") != StepDone {
		t.Error("step_completed should mark the step done")
	}

	m.applyEvent(pipeline.Event{
		Type:      pipeline.EventLoopTriggered,
		StepID:    "controller",
		Iteration: 1,
		Data:      map[string]any{"target": "literature_evidence", "feedback": "f"},
	})
	if m.steps.Status("literature_evidence") != StepPending {
		t.Error("loop_triggered should reset the target step")
	}

	m.applyEvent(evt(pipeline.EventRunFailed, "druggability", map[string]any{
		"kind": "internal_error", "error": "boom",
	}))
	if m.steps.Status("druggability") != StepFailed {
		t.Error("run_failed should mark the failing step")
	}
}
