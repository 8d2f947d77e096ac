// ABOUTME: Step model and pipeline definition types: kinds, declared outputs, dimension ownership.
// ABOUTME: Also defines the Searcher collaborator boundary used by fetch steps.

package pipeline

import (
	"context"

	"github.com/seam-research/lacuna/gapstat"
)

// StepKind discriminates how a step executes.
type StepKind string

const (
	// StepGenerative delegates reasoning to the generative capability and
	// parses structured JSON from its output.
	StepGenerative StepKind = "generative"

	// StepFetch calls the retrieval collaborator for the document corpus.
	StepFetch StepKind = "fetch"

	// StepAggregate runs the deterministic corpus statistics. No capability call.
	StepAggregate StepKind = "aggregate"

	// StepController computes the authoritative routing decision from scores.
	StepController StepKind = "controller"
)

// BuildInputFunc renders a step's user prompt from the goal, the cumulative
// context view, and the loop feedback for this step ("" outside a loop).
type BuildInputFunc func(goal string, view map[string]any, feedback string) string

// Step is one unit of pipeline work.
type Step struct {
	ID           string
	Name         string
	Kind         StepKind
	Thinking     string // short progress line surfaced in step_started events
	SystemPrompt string
	BuildInput   BuildInputFunc
	OutputFields []string // declared fields merged into the context
	ScoreKey     string   // dimension this step scores, "" if none
}

// StepResult is the output of one step invocation: fields to merge, scores in
// [0,1], and the raw text the capability produced. It is consumed by the
// engine immediately; only the merged fields persist.
type StepResult struct {
	Fields   map[string]any
	Scores   map[string]float64
	Text     string
	Decision *Decision // controller steps only
}

// Pipeline is an ordered step list plus the routing metadata the controller
// needs: which step owns each scored dimension, and the fixed priority order
// that breaks ties between equal lowest scores.
type Pipeline struct {
	Kind              string
	Linear            bool // no controller, no backward edges; always ends completed
	Steps             []Step
	DimensionOwners   map[string]string // dimension -> owning step ID
	DimensionPriority []string
}

// StepIndex returns the position of a step ID, or -1.
func (p *Pipeline) StepIndex(id string) int {
	for i, s := range p.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Searcher is the retrieval collaborator boundary. Documents are assumed
// deduplicated by ID before they reach the aggregator.
type Searcher interface {
	Search(ctx context.Context, queries []string) ([]gapstat.Document, error)
}
