// ABOUTME: Run-scoped context accumulator: field store with ownership, stale tagging, and scores.
// ABOUTME: Merge is atomic with respect to readers; fields are never deleted during a run.

package pipeline

import "sync"

// fieldEntry is one accumulated field with its owning step and stale bit.
type fieldEntry struct {
	Value any
	Owner string
	Stale bool
}

// Context is the shared accumulating state of one run. Exactly one step
// executes at a time, but the HTTP relay and controller read concurrently,
// so access goes through an RWMutex for immediate consistency.
type Context struct {
	mu     sync.RWMutex
	fields map[string]fieldEntry
	scores map[string]float64
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{
		fields: make(map[string]fieldEntry),
		scores: make(map[string]float64),
	}
}

// Merge writes a step's declared output fields, overwriting existing values,
// recording stepID as the owner and clearing the stale bit. All fields of a
// result merge under one lock acquisition: no partial merge is observable.
func (c *Context) Merge(stepID string, fields map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range fields {
		c.fields[k] = fieldEntry{Value: v, Owner: stepID}
	}
}

// MergeScores folds a step's numeric scores into the accumulated score map.
func (c *Context) MergeScores(scores map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range scores {
		c.scores[k] = v
	}
}

// Get returns one field's value.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.fields[key]
	return e.Value, ok
}

// Owner returns the step that last wrote the field.
func (c *Context) Owner(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields[key].Owner
}

// Stale reports whether the field was tagged overwritable by a loop decision.
func (c *Context) Stale(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields[key].Stale
}

// View returns a snapshot of every accumulated field. Every step sees all
// prior declared outputs (cumulative context policy): downstream steps need
// upstream rationale, not just upstream conclusions.
func (c *Context) View() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	view := make(map[string]any, len(c.fields))
	for k, e := range c.fields {
		view[k] = e.Value
	}
	return view
}

// Scores returns a snapshot of the accumulated score map.
func (c *Context) Scores() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	scores := make(map[string]float64, len(c.scores))
	for k, v := range c.scores {
		scores[k] = v
	}
	return scores
}

// MarkStaleFrom tags every field owned by one of the given steps as stale.
// Stale fields stay readable (auditing the decision history remains possible)
// and are overwritten when their owner re-runs after a loop.
func (c *Context) MarkStaleFrom(stepIDs []string) {
	owners := make(map[string]bool, len(stepIDs))
	for _, id := range stepIDs {
		owners[id] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.fields {
		if owners[e.Owner] {
			e.Stale = true
			c.fields[k] = e
		}
	}
}
