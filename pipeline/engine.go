// ABOUTME: Pipeline engine: drives a run to completion or cancellation, one step at a time.
// ABOUTME: Emits typed events for every transition; dynamic runs consult the controller after each cycle.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/seam-research/lacuna/llm"
)

// EngineConfig configures an Engine. Zero values fall back to defaults;
// Client and Searcher may be nil, in which case the steps needing them fail
// with CapabilityError instead of fabricating output.
type EngineConfig struct {
	Client           *llm.Client
	Searcher         Searcher
	Registry         *HandlerRegistry
	Thresholds       Thresholds
	SupportThreshold int
	Model            string
	EventBuffer      int
}

// Engine starts and drives runs. Engines are safe for concurrent use; each
// run executes in its own goroutine with no shared mutable state.
type Engine struct {
	cfg      EngineConfig
	registry *HandlerRegistry
}

// NewEngine creates an Engine from the given config.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = DefaultHandlerRegistry(
			NewInvoker(cfg.Client, cfg.Model),
			cfg.Searcher,
			cfg.SupportThreshold,
			cfg.Thresholds,
		)
	}
	return &Engine{cfg: cfg, registry: registry}
}

// Start begins executing the named pipeline against the goal and returns the
// run handle. The caller consumes Run.Events and may Cancel at any time.
// ctx cancellation propagates into the run.
func (e *Engine) Start(ctx context.Context, goal, kind string) (*Run, error) {
	if goal == "" {
		return nil, fmt.Errorf("goal must not be empty")
	}
	pipe, ok := ByKind(kind)
	if !ok {
		return nil, fmt.Errorf("unknown pipeline kind %q", kind)
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := newRun(kind, goal, cancel, e.cfg.EventBuffer)

	log.Printf("component=engine action=run_started run=%s pipeline=%s", run.ID, kind)
	go e.execute(runCtx, run, pipe)

	return run, nil
}

// execute is the run goroutine: sequences steps, merges results, applies
// routing decisions, and emits exactly one terminal event.
func (e *Engine) execute(ctx context.Context, run *Run, pipe *Pipeline) {
	executed := make([]bool, len(pipe.Steps))
	feedback := make(map[string]string)
	loopsUsed := 0
	idx := 0

	for idx < len(pipe.Steps) {
		if ctx.Err() != nil {
			e.finishCancelled(ctx, run, loopsUsed)
			return
		}

		step := pipe.Steps[idx]

		started := e.newEvent(run, EventStepStarted, step.ID, loopsUsed, map[string]any{
			"name":     step.Name,
			"kind":     string(step.Kind),
			"thinking": step.Thinking,
		})
		if !run.emit(ctx, started) {
			e.finishCancelled(ctx, run, loopsUsed)
			return
		}
		log.Printf("component=engine action=step_started run=%s step=%s iteration=%d", run.ID, step.ID, loopsUsed)

		in := ExecInput{
			Goal:     run.Goal,
			View:     run.context.View(),
			Feedback: feedback[step.ID],
			OnFragment: func(text string) error {
				frag := e.newEvent(run, EventContentFragment, step.ID, loopsUsed, map[string]any{"text": text})
				if !run.emit(ctx, frag) {
					return ctx.Err()
				}
				return nil
			},
		}
		delete(feedback, step.ID)

		if step.Kind == StepController {
			in.Scores = run.context.Scores()
			in.LoopsUsed = loopsUsed
			in.Pipeline = pipe
			for i, s := range pipe.Steps {
				if !executed[i] && s.Kind != StepController {
					in.Pending = append(in.Pending, s.ID)
				}
			}
		}

		result, err := e.safeExecute(ctx, step, in)

		// A result arriving after cancellation is discarded, never merged.
		if ctx.Err() != nil {
			e.finishCancelled(ctx, run, loopsUsed)
			return
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				e.finishCancelled(ctx, run, loopsUsed)
				return
			}
			e.finishFailed(ctx, run, step, loopsUsed, err)
			return
		}

		// Atomic merge: all of the step's fields or none.
		if len(result.Fields) > 0 {
			run.context.Merge(step.ID, result.Fields)
		}
		if len(result.Scores) > 0 {
			run.context.MergeScores(result.Scores)
		}
		executed[idx] = true

		completedData := map[string]any{
			"name":   step.Name,
			"fields": fieldNames(result.Fields),
		}
		if len(result.Scores) > 0 {
			completedData["scores"] = result.Scores
		}
		if rationale, ok := result.Fields["routing_rationale"]; ok {
			completedData["routing_rationale"] = rationale
		}
		if !run.emit(ctx, e.newEvent(run, EventStepCompleted, step.ID, loopsUsed, completedData)) {
			e.finishCancelled(ctx, run, loopsUsed)
			return
		}
		log.Printf("component=engine action=step_completed run=%s step=%s", run.ID, step.ID)

		if step.Kind == StepController && result.Decision != nil {
			d := *result.Decision
			switch d.Kind {
			case DecisionTerminate:
				e.finishTerminated(ctx, run, step.ID, loopsUsed, d.Outcome, map[string]any{
					"rationale": result.Fields["routing_rationale"],
					"scores":    run.context.Scores(),
				})
				return

			case DecisionLoop:
				loopsUsed++
				run.setIteration(loopsUsed)

				target := pipe.StepIndex(d.TargetStepID)
				if target < 0 {
					e.finishFailed(ctx, run, step, loopsUsed, fmt.Errorf("loop target %q not in pipeline", d.TargetStepID))
					return
				}

				feedback[d.TargetStepID] = e.enrichFeedback(run, d)

				// Steps from the target onward reset to unexecuted; their
				// merged fields stay, tagged stale and eligible for overwrite.
				var staleIDs []string
				for i := target; i < len(pipe.Steps); i++ {
					executed[i] = false
					staleIDs = append(staleIDs, pipe.Steps[i].ID)
				}
				run.context.MarkStaleFrom(staleIDs)

				loopEvt := e.newEvent(run, EventLoopTriggered, step.ID, loopsUsed, map[string]any{
					"target":    d.TargetStepID,
					"dimension": d.Dimension,
					"score":     d.Score,
					"feedback":  feedback[d.TargetStepID],
				})
				if !run.emit(ctx, loopEvt) {
					e.finishCancelled(ctx, run, loopsUsed)
					return
				}
				log.Printf("component=engine action=loop_triggered run=%s target=%s dimension=%s score=%.2f iteration=%d",
					run.ID, d.TargetStepID, d.Dimension, d.Score, loopsUsed)

				idx = target
				continue

			default: // DecisionAdvance
				idx = nextPending(pipe, executed)
				continue
			}
		}

		idx++
	}

	// Fell off the end of the step list: linear completion.
	e.finishTerminated(ctx, run, "", loopsUsed, OutcomeCompleted, nil)
}

// safeExecute dispatches to the registered handler with panic recovery, so a
// handler bug fails the run instead of crashing the process.
func (e *Engine) safeExecute(ctx context.Context, step Step, in ExecInput) (result *StepResult, err error) {
	handler, ok := e.registry.Get(step.Kind)
	if !ok {
		return nil, fmt.Errorf("no handler registered for step kind %q", step.Kind)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panic in step %s: %v", step.ID, r)
		}
	}()

	return handler.Execute(ctx, step, in)
}

// enrichFeedback appends the weak dimension's own reviewer notes, when a
// scored step produced them, to the rule-generated feedback string.
func (e *Engine) enrichFeedback(run *Run, d Decision) string {
	fb := d.Feedback
	if v, ok := run.context.Get(d.Dimension + "_feedback"); ok {
		if notes, ok := v.(string); ok && notes != "" {
			fb = fb + "; reviewer notes: " + notes
		}
	}
	return fb
}

func (e *Engine) finishTerminated(ctx context.Context, run *Run, stepID string, iteration int, outcome Outcome, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["outcome"] = string(outcome)
	evt := e.newEvent(run, EventRunTerminated, stepID, iteration, data)
	run.finish(ctx, evt, outcome, nil)
	log.Printf("component=engine action=run_terminated run=%s outcome=%s iterations=%d", run.ID, outcome, iteration)
}

func (e *Engine) finishCancelled(ctx context.Context, run *Run, iteration int) {
	e.finishTerminated(ctx, run, "", iteration, OutcomeCancelled, nil)
}

func (e *Engine) finishFailed(ctx context.Context, run *Run, step Step, iteration int, err error) {
	data := map[string]any{
		"error": err.Error(),
		"kind":  errKind(err),
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		data["raw_output"] = pe.Raw
	}
	evt := e.newEvent(run, EventRunFailed, step.ID, iteration, data)
	run.finish(ctx, evt, OutcomeFailed, err)
	log.Printf("component=engine action=run_failed run=%s step=%s kind=%s error=%v", run.ID, step.ID, errKind(err), err)
}

// newEvent stamps an event with a ULID and timestamp. ULIDs sort in emission
// order, so the ID doubles as an ordering key for consumers.
func (e *Engine) newEvent(run *Run, typ EventType, stepID string, iteration int, data map[string]any) Event {
	return Event{
		ID:        ulid.Make().String(),
		Type:      typ,
		RunID:     run.ID,
		StepID:    stepID,
		Iteration: iteration,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// nextPending returns the index of the first unexecuted non-controller step,
// falling back past the end when none remain.
func nextPending(pipe *Pipeline, executed []bool) int {
	for i, s := range pipe.Steps {
		if !executed[i] && s.Kind != StepController {
			return i
		}
	}
	return len(pipe.Steps)
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	return names
}
