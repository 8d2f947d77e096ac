package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/seam-research/lacuna/gapstat"
)

// fakeGen scripts generative step results by step ID. Each entry is consumed
// in order, so a re-run after a loop can behave differently.
type fakeGen struct {
	mu      sync.Mutex
	results map[string][]*StepResult
	errs    map[string]error
	calls   map[string]int
}

func newFakeGen() *fakeGen {
	return &fakeGen{
		results: make(map[string][]*StepResult),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *fakeGen) on(stepID string, r *StepResult) { f.results[stepID] = append(f.results[stepID], r) }

func (f *fakeGen) Kind() StepKind { return StepGenerative }

func (f *fakeGen) Execute(ctx context.Context, step Step, in ExecInput) (*StepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[step.ID]++

	if err, ok := f.errs[step.ID]; ok {
		return nil, err
	}
	queue := f.results[step.ID]
	if len(queue) == 0 {
		return nil, errors.New("no scripted result for " + step.ID)
	}
	r := queue[0]
	if len(queue) > 1 {
		f.results[step.ID] = queue[1:]
	}
	return r, nil
}

func (f *fakeGen) callCount(stepID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stepID]
}

func testRegistry(gen StepHandler, searcher Searcher) *HandlerRegistry {
	r := NewHandlerRegistry()
	r.Register(gen)
	r.Register(&FetchHandler{Searcher: searcher})
	r.Register(&AggregateHandler{})
	r.Register(&ControllerHandler{Thresholds: DefaultThresholds()})
	return r
}

func collectEvents(t *testing.T, run *Run) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case evt, ok := <-run.Events():
			if !ok {
				return events
			}
			events = append(events, evt)
		case <-timeout:
			t.Fatalf("timed out waiting for events; got %d so far", len(events))
		}
	}
}

func eventsOfType(events []Event, typ EventType) []Event {
	var out []Event
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func gapFinderScripts() *fakeGen {
	gen := newFakeGen()
	gen.on("query_planner", &StepResult{Fields: map[string]any{
		"queries":   []string{"smoking cessation pregnancy"},
		"rationale": "covers the population facet",
	}})
	gen.on("literature_analyzer", &StepResult{Fields: map[string]any{
		"themes":          []string{"nrt dominance"},
		"saturated_areas": []string{"adults + varenicline"},
		"observations":    "pregnant populations are thin",
	}})
	gen.on("gap_synthesizer", &StepResult{Fields: map[string]any{
		"gaps":   []string{"nrt in pregnancy"},
		"report": "# Gap Report",
	}})
	return gen
}

func gapFinderCorpus() []gapstat.Document {
	return []gapstat.Document{
		{ID: "d1", Tags: []string{"Adults", "Varenicline"}, Year: 2020},
		{ID: "d2", Tags: []string{"Adults", "Varenicline"}, Year: 2021},
		{ID: "d3", Tags: []string{"Pregnant Women", "Nicotine Replacement Therapy"}, Year: 2021},
	}
}

func TestLinearRunEmitsOrderedEventsAndCompletes(t *testing.T) {
	e := NewEngine(EngineConfig{
		Registry: testRegistry(gapFinderScripts(), &stubSearcher{docs: gapFinderCorpus()}),
	})

	run, err := e.Start(context.Background(), "find gaps in smoking cessation research", KindGapFinder)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := collectEvents(t, run)

	wantSteps := []string{"query_planner", "data_fetcher", "aggregator", "literature_analyzer", "gap_synthesizer"}

	started := eventsOfType(events, EventStepStarted)
	completed := eventsOfType(events, EventStepCompleted)
	if len(started) != len(wantSteps) || len(completed) != len(wantSteps) {
		t.Fatalf("started=%d completed=%d, want %d each", len(started), len(completed), len(wantSteps))
	}
	for i, id := range wantSteps {
		if started[i].StepID != id {
			t.Errorf("step_started[%d] = %s, want %s", i, started[i].StepID, id)
		}
		if completed[i].StepID != id {
			t.Errorf("step_completed[%d] = %s, want %s", i, completed[i].StepID, id)
		}
	}

	last := events[len(events)-1]
	if last.Type != EventRunTerminated {
		t.Fatalf("last event = %s, want run_terminated", last.Type)
	}
	if run.Outcome() != OutcomeCompleted {
		t.Errorf("outcome = %s, want completed", run.Outcome())
	}
	if got := eventsOfType(events, EventLoopTriggered); len(got) != 0 {
		t.Errorf("linear run emitted %d loop_triggered events", len(got))
	}

	// ULID event IDs sort in emission order.
	for i := 1; i < len(events); i++ {
		if events[i].ID <= events[i-1].ID {
			t.Errorf("event IDs out of order at %d: %s then %s", i, events[i-1].ID, events[i].ID)
		}
	}

	if v, ok := run.Context().Get("report"); !ok || v != "# Gap Report" {
		t.Errorf("report not accumulated: %v %v", v, ok)
	}
}

func discoveryScripts(firstEvidence, secondEvidence float64) *fakeGen {
	gen := newFakeGen()
	gen.on("target_hypothesis", &StepResult{Fields: map[string]any{
		"target": "KRAS G12C", "mechanism": "covalent inhibition", "hypothesis": "h",
	}})
	gen.on("literature_evidence", &StepResult{
		Fields: map[string]any{"evidence_summary": "thin", "evidence_feedback": "find in-vivo replication"},
		Scores: map[string]float64{"evidence": firstEvidence},
	})
	gen.on("literature_evidence", &StepResult{
		Fields: map[string]any{"evidence_summary": "replicated", "evidence_feedback": ""},
		Scores: map[string]float64{"evidence": secondEvidence},
	})
	gen.on("druggability", &StepResult{
		Fields: map[string]any{"druggability_assessment": "tractable", "druggability_feedback": ""},
		Scores: map[string]float64{"druggability": 0.8},
	})
	gen.on("novelty", &StepResult{
		Fields: map[string]any{"novelty_assessment": "crowded but viable", "novelty_feedback": ""},
		Scores: map[string]float64{"novelty": 0.7},
	})
	gen.on("preclinical_design", &StepResult{
		Fields: map[string]any{"study_design": "xenograft", "feasibility_feedback": ""},
		Scores: map[string]float64{"feasibility": 0.75},
	})
	return gen
}

func TestDiscoveryRunApprovesWhenScoresClear(t *testing.T) {
	e := NewEngine(EngineConfig{Registry: testRegistry(discoveryScripts(0.9, 0.9), nil)})

	run, err := e.Start(context.Background(), "KRAS-driven cancers", KindDiscovery)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := collectEvents(t, run)

	if run.Outcome() != OutcomeApproved {
		t.Fatalf("outcome = %s, want approved", run.Outcome())
	}
	if loops := eventsOfType(events, EventLoopTriggered); len(loops) != 0 {
		t.Errorf("loop_triggered = %d, want 0", len(loops))
	}
	if run.Iteration() != 0 {
		t.Errorf("iteration = %d, want 0", run.Iteration())
	}
}

func TestDiscoveryRunLoopsOnCriticalScoreThenApproves(t *testing.T) {
	gen := discoveryScripts(0.2, 0.9)
	e := NewEngine(EngineConfig{Registry: testRegistry(gen, nil)})

	run, err := e.Start(context.Background(), "KRAS-driven cancers", KindDiscovery)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := collectEvents(t, run)

	loops := eventsOfType(events, EventLoopTriggered)
	if len(loops) != 1 {
		t.Fatalf("loop_triggered = %d, want 1", len(loops))
	}
	loop := loops[0]
	if loop.Data["target"] != "literature_evidence" || loop.Data["dimension"] != "evidence" {
		t.Errorf("loop data = %v", loop.Data)
	}
	feedback, _ := loop.Data["feedback"].(string)
	if feedback == "" {
		t.Fatal("loop feedback must be non-empty")
	}

	if gen.callCount("literature_evidence") != 2 {
		t.Errorf("literature_evidence calls = %d, want 2", gen.callCount("literature_evidence"))
	}
	// Steps upstream of the loop target do not re-run.
	if gen.callCount("target_hypothesis") != 1 {
		t.Errorf("target_hypothesis calls = %d, want 1", gen.callCount("target_hypothesis"))
	}
	if run.Outcome() != OutcomeApproved {
		t.Errorf("outcome = %s, want approved", run.Outcome())
	}
	if run.Iteration() != 1 {
		t.Errorf("iteration = %d, want 1", run.Iteration())
	}
}

func TestDiscoveryRunHonorsLoopCeiling(t *testing.T) {
	gen := newFakeGen()
	gen.on("target_hypothesis", &StepResult{Fields: map[string]any{
		"target": "t", "mechanism": "m", "hypothesis": "h",
	}})
	// Evidence never improves; the other assessors stay strong.
	gen.on("literature_evidence", &StepResult{
		Fields: map[string]any{"evidence_summary": "thin", "evidence_feedback": "more data"},
		Scores: map[string]float64{"evidence": 0.2},
	})
	gen.on("druggability", &StepResult{
		Fields: map[string]any{"druggability_assessment": "a", "druggability_feedback": ""},
		Scores: map[string]float64{"druggability": 0.8},
	})
	gen.on("novelty", &StepResult{
		Fields: map[string]any{"novelty_assessment": "a", "novelty_feedback": ""},
		Scores: map[string]float64{"novelty": 0.8},
	})
	gen.on("preclinical_design", &StepResult{
		Fields: map[string]any{"study_design": "d", "feasibility_feedback": ""},
		Scores: map[string]float64{"feasibility": 0.8},
	})

	e := NewEngine(EngineConfig{Registry: testRegistry(gen, nil)})
	run, err := e.Start(context.Background(), "goal", KindDiscovery)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := collectEvents(t, run)

	// The ceiling counts passes, so at most ceiling-1 backward loops.
	ceiling := DefaultThresholds().MaxLoops
	loops := eventsOfType(events, EventLoopTriggered)
	if len(loops) != ceiling-1 {
		t.Fatalf("loop_triggered = %d, want %d", len(loops), ceiling-1)
	}
	if run.Iteration() != ceiling-1 {
		t.Errorf("iteration = %d, want %d", run.Iteration(), ceiling-1)
	}
	if run.Outcome() != OutcomeRejected {
		t.Errorf("outcome = %s, want rejected", run.Outcome())
	}
	if terms := eventsOfType(events, EventRunTerminated); len(terms) != 1 {
		t.Errorf("run_terminated = %d, want exactly 1", len(terms))
	}
}

func TestRunFailsOnDoubleParseFailure(t *testing.T) {
	gen := gapFinderScripts()
	gen.errs["gap_synthesizer"] = &ParseError{
		StepID: "gap_synthesizer",
		Raw:    "still prose after the retry",
		Cause:  errors.New("no JSON object found in output"),
	}

	e := NewEngine(EngineConfig{
		Registry: testRegistry(gen, &stubSearcher{docs: gapFinderCorpus()}),
	})
	run, err := e.Start(context.Background(), "goal", KindGapFinder)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := collectEvents(t, run)

	failed := eventsOfType(events, EventRunFailed)
	if len(failed) != 1 {
		t.Fatalf("run_failed = %d, want exactly 1", len(failed))
	}
	if failed[0].Data["kind"] != ErrKindOutputParse {
		t.Errorf("kind = %v, want %s", failed[0].Data["kind"], ErrKindOutputParse)
	}
	if failed[0].Data["raw_output"] != "still prose after the retry" {
		t.Errorf("raw_output = %v", failed[0].Data["raw_output"])
	}
	if len(eventsOfType(events, EventRunTerminated)) != 0 {
		t.Error("a failed run must not also emit run_terminated")
	}

	// None of the failed step's fields were merged.
	if _, ok := run.Context().Get("report"); ok {
		t.Error("failed step's fields leaked into the context")
	}
	if run.Outcome() != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", run.Outcome())
	}
}

func TestRunFailsWhenSearcherMissing(t *testing.T) {
	e := NewEngine(EngineConfig{Registry: testRegistry(gapFinderScripts(), nil)})
	run, err := e.Start(context.Background(), "goal", KindGapFinder)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := collectEvents(t, run)

	failed := eventsOfType(events, EventRunFailed)
	if len(failed) != 1 {
		t.Fatalf("run_failed = %d, want 1", len(failed))
	}
	if failed[0].StepID != "data_fetcher" || failed[0].Data["kind"] != ErrKindCapabilityUnavailable {
		t.Errorf("failure = %+v", failed[0])
	}
}

// blockingGen parks until its context is cancelled, signalling entry first.
type blockingGen struct {
	entered chan struct{}
	once    sync.Once
}

func (b *blockingGen) Kind() StepKind { return StepGenerative }

func (b *blockingGen) Execute(ctx context.Context, step Step, in ExecInput) (*StepResult, error) {
	b.once.Do(func() { close(b.entered) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCancelEmitsSingleTerminalAndStopsSteps(t *testing.T) {
	gen := &blockingGen{entered: make(chan struct{})}
	e := NewEngine(EngineConfig{Registry: testRegistry(gen, &stubSearcher{})}) // query_planner blocks

	run, err := e.Start(context.Background(), "goal", KindGapFinder)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var events []Event
	// First event is step_started for the planner.
	select {
	case evt := <-run.Events():
		events = append(events, evt)
	case <-time.After(5 * time.Second):
		t.Fatal("no step_started event")
	}

	<-gen.entered
	run.Cancel()
	run.Cancel() // idempotent

	timeout := time.After(10 * time.Second)
	for {
		var evt Event
		var ok bool
		select {
		case evt, ok = <-run.Events():
		case <-timeout:
			t.Fatal("stream did not close after cancel")
		}
		if !ok {
			break
		}
		events = append(events, evt)
	}

	terms := eventsOfType(events, EventRunTerminated)
	if len(terms) != 1 {
		t.Fatalf("run_terminated = %d, want exactly 1", len(terms))
	}
	if terms[0].Data["outcome"] != string(OutcomeCancelled) {
		t.Errorf("outcome data = %v", terms[0].Data["outcome"])
	}
	if run.Outcome() != OutcomeCancelled {
		t.Errorf("outcome = %s", run.Outcome())
	}

	// Nothing started after the cancellation point.
	started := eventsOfType(events, EventStepStarted)
	if len(started) != 1 || started[0].StepID != "query_planner" {
		t.Errorf("step_started events = %+v", started)
	}

	select {
	case <-run.Done():
	default:
		t.Error("Done should be closed after the terminal event")
	}
}

// chattyGen streams fragments until its run is cancelled.
type chattyGen struct{}

func (chattyGen) Kind() StepKind { return StepGenerative }

func (chattyGen) Execute(ctx context.Context, step Step, in ExecInput) (*StepResult, error) {
	for {
		if err := in.OnFragment("chunk "); err != nil {
			return nil, err
		}
	}
}

func TestCancelledRunWithAbandonedStreamStillFinishes(t *testing.T) {
	e := NewEngine(EngineConfig{
		Registry:    testRegistry(chattyGen{}, &stubSearcher{}),
		EventBuffer: 1,
	})

	run, err := e.Start(context.Background(), "goal", KindGapFinder)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Take one event, then walk away without draining the rest.
	select {
	case <-run.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("no first event")
	}
	run.Cancel()

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("engine stayed blocked after the consumer abandoned the stream")
	}
	if run.Outcome() != OutcomeCancelled {
		t.Errorf("outcome = %s, want cancelled", run.Outcome())
	}

	// The channel still closes even though nobody consumed the tail.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-run.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event stream never closed")
		}
	}
}

func TestStartRejectsUnknownPipelineAndEmptyGoal(t *testing.T) {
	e := NewEngine(EngineConfig{Registry: testRegistry(newFakeGen(), nil)})

	if _, err := e.Start(context.Background(), "goal", "no_such_pipeline"); err == nil {
		t.Error("unknown pipeline kind should fail")
	}
	if _, err := e.Start(context.Background(), "", KindGapFinder); err == nil {
		t.Error("empty goal should fail")
	}
}

func TestHandlerPanicFailsRun(t *testing.T) {
	r := NewHandlerRegistry()
	r.Register(panickyGen{})
	r.Register(&FetchHandler{})
	r.Register(&AggregateHandler{})
	r.Register(&ControllerHandler{Thresholds: DefaultThresholds()})

	e := NewEngine(EngineConfig{Registry: r})
	run, err := e.Start(context.Background(), "goal", KindGapFinder)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := collectEvents(t, run)

	failed := eventsOfType(events, EventRunFailed)
	if len(failed) != 1 {
		t.Fatalf("run_failed = %d, want 1", len(failed))
	}
	if failed[0].Data["kind"] != ErrKindInternal {
		t.Errorf("kind = %v, want %s", failed[0].Data["kind"], ErrKindInternal)
	}
}

type panickyGen struct{}

func (panickyGen) Kind() StepKind { return StepGenerative }

func (panickyGen) Execute(ctx context.Context, step Step, in ExecInput) (*StepResult, error) {
	panic("handler bug")
}
