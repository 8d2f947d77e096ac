// ABOUTME: Per-run event fan-out: one pump goroutine drains the engine stream into
// ABOUTME: a replayable history and broadcasts to any number of SSE subscribers.

package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seam-research/lacuna/pipeline"
)

// subscriberBuffer bounds each subscriber channel. A stalled SSE client gets
// disconnected from the broadcast rather than stalling the pump; the history
// replay covers what it missed on reconnect.
const subscriberBuffer = 256

// runRecord tracks one run owned by the server: the engine handle, the full
// event history for replay, and the live subscriber set.
type runRecord struct {
	run       *pipeline.Run
	goal      string
	kind      string
	createdAt time.Time

	mu          sync.RWMutex
	history     []pipeline.Event
	subscribers map[string]chan pipeline.Event
	finished    bool
}

func newRunRecord(run *pipeline.Run, goal, kind string) *runRecord {
	rec := &runRecord{
		run:         run,
		goal:        goal,
		kind:        kind,
		createdAt:   time.Now().UTC(),
		subscribers: make(map[string]chan pipeline.Event),
	}
	go rec.pump()
	return rec
}

// pump is the single consumer of the run's event stream. Draining here keeps
// the engine unblocked even with zero connected clients, while every event
// stays replayable from history.
func (rec *runRecord) pump() {
	for evt := range rec.run.Events() {
		rec.mu.Lock()
		rec.history = append(rec.history, evt)
		for id, ch := range rec.subscribers {
			select {
			case ch <- evt:
			default:
				// Slow subscriber: cut it loose, it can reconnect and replay.
				close(ch)
				delete(rec.subscribers, id)
			}
		}
		rec.mu.Unlock()
	}

	rec.mu.Lock()
	rec.finished = true
	for id, ch := range rec.subscribers {
		close(ch)
		delete(rec.subscribers, id)
	}
	rec.mu.Unlock()
}

// subscribe returns the history so far plus a live channel. The channel is
// closed once the run's terminal event has been delivered (or already was
// before subscribing, in which case it arrives via history and the channel is
// nil). unsubscribe is safe to call regardless.
func (rec *runRecord) subscribe() (history []pipeline.Event, events <-chan pipeline.Event, unsubscribe func()) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	history = make([]pipeline.Event, len(rec.history))
	copy(history, rec.history)

	if rec.finished {
		return history, nil, func() {}
	}

	id := uuid.NewString()
	ch := make(chan pipeline.Event, subscriberBuffer)
	rec.subscribers[id] = ch

	return history, ch, func() {
		rec.mu.Lock()
		if live, ok := rec.subscribers[id]; ok {
			close(live)
			delete(rec.subscribers, id)
		}
		rec.mu.Unlock()
	}
}

// snapshot returns the history without subscribing.
func (rec *runRecord) snapshot() []pipeline.Event {
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	out := make([]pipeline.Event, len(rec.history))
	copy(out, rec.history)
	return out
}

func (rec *runRecord) isFinished() bool {
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.finished
}
