// ABOUTME: Typed run events and the Run handle with its bounded, ordered event stream.
// ABOUTME: Delivery blocks on a bounded channel (backpressure, never drops); exactly one terminal event.

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies the kind of a run event.
type EventType string

const (
	EventStepStarted     EventType = "step_started"
	EventContentFragment EventType = "content_fragment"
	EventStepCompleted   EventType = "step_completed"
	EventLoopTriggered   EventType = "loop_triggered"
	EventRunTerminated   EventType = "run_terminated"
	EventRunFailed       EventType = "run_failed"
)

// Event is the unit placed on a run's output stream. Events are strictly
// ordered; consumers must process them in emission order. ULID IDs are
// lexically sortable in that same order.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	StepID    string         `json:"step_id,omitempty"`
	Iteration int            `json:"iteration"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Outcome is a run's terminal state.
type Outcome string

const (
	OutcomeApproved  Outcome = "approved"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// defaultEventBuffer bounds the event channel. A slow consumer applies
// backpressure to step progression instead of losing fragments.
const defaultEventBuffer = 64

// Run is one execution instance, owned by the engine goroutine. Callers
// interact only through Events, Cancel, and the read-only accessors.
type Run struct {
	ID   string
	Kind string
	Goal string

	events  chan Event
	cancel  context.CancelFunc
	done    chan struct{}
	context *Context

	mu         sync.RWMutex
	outcome    Outcome
	iteration  int
	eventCount int
	err        error
}

func newRun(kind, goal string, cancel context.CancelFunc, buffer int) *Run {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &Run{
		ID:      ulid.Make().String(),
		Kind:    kind,
		Goal:    goal,
		events:  make(chan Event, buffer),
		cancel:  cancel,
		done:    make(chan struct{}),
		context: NewContext(),
	}
}

// Events returns the run's ordered event stream. The channel is closed after
// the single terminal event (run_terminated or run_failed). Callers must
// drain it; delivery blocks rather than drops. The one exception: a caller
// that cancels the run and then abandons the stream with a full buffer
// forfeits the terminal event, but the channel still closes.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Cancel requests cooperative cancellation. The engine stops at the next step
// or fragment boundary, releases any in-flight capability call via context,
// and emits run_terminated(cancelled). Safe to call more than once.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed once the terminal event has been emitted.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Outcome returns the terminal outcome, or "" while the run is live.
func (r *Run) Outcome() Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.outcome
}

// Iteration returns the number of loop iterations used so far.
func (r *Run) Iteration() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.iteration
}

// EventCount returns how many events have been emitted so far.
func (r *Run) EventCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eventCount
}

// Err returns the failure error for runs that ended in OutcomeFailed.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Context returns the run's accumulator. Reads are safe at any time;
// only the engine merges.
func (r *Run) Context() *Context {
	return r.context
}

func (r *Run) setIteration(n int) {
	r.mu.Lock()
	r.iteration = n
	r.mu.Unlock()
}

// emit places an event on the stream, blocking if the consumer is behind.
// It returns false when the run context is cancelled before delivery; the
// caller decides whether a terminal event still needs to go out.
func (r *Run) emit(ctx context.Context, evt Event) bool {
	select {
	case r.events <- evt:
		r.mu.Lock()
		r.eventCount++
		r.mu.Unlock()
		return true
	case <-ctx.Done():
		return false
	}
}

// finish records the terminal outcome, emits the single terminal event, and
// closes the stream. While the run context is live the send blocks, so a
// consumer that drains the channel always observes the terminal event. Once
// the context is gone, a consumer that stopped draining has abandoned the
// stream; finish then gives up on delivery rather than wedging the engine
// goroutine forever.
func (r *Run) finish(ctx context.Context, evt Event, outcome Outcome, err error) {
	r.mu.Lock()
	r.outcome = outcome
	r.err = err
	r.mu.Unlock()

	delivered := true
	select {
	case r.events <- evt:
	default:
		select {
		case r.events <- evt:
		case <-ctx.Done():
			delivered = false
		}
	}
	if delivered {
		r.mu.Lock()
		r.eventCount++
		r.mu.Unlock()
	}

	close(r.events)
	close(r.done)
}
