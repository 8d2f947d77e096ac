// ABOUTME: StepHandler interface and registry dispatching execution by step kind.
// ABOUTME: Generative, fetch, aggregate, and controller handlers cover the built-in pipelines.

package pipeline

import (
	"context"
	"fmt"

	"github.com/seam-research/lacuna/gapstat"
)

// ExecInput carries everything a handler may need for one step execution.
type ExecInput struct {
	Goal       string
	View       map[string]any
	Feedback   string
	OnFragment FragmentFunc

	// Routing state, populated for controller steps only.
	Scores    map[string]float64
	LoopsUsed int
	Pending   []string
	Pipeline  *Pipeline
}

// StepHandler executes steps of one kind.
type StepHandler interface {
	// Kind returns the step kind this handler serves.
	Kind() StepKind

	// Execute runs the step against the current context view and returns its
	// result. Implementations must honor ctx cancellation.
	Execute(ctx context.Context, step Step, in ExecInput) (*StepResult, error)
}

// HandlerRegistry maps step kinds to handlers.
type HandlerRegistry struct {
	handlers map[StepKind]StepHandler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[StepKind]StepHandler)}
}

// Register adds a handler, replacing any previous handler for its kind.
func (r *HandlerRegistry) Register(h StepHandler) {
	r.handlers[h.Kind()] = h
}

// Get returns the handler for a kind.
func (r *HandlerRegistry) Get(kind StepKind) (StepHandler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

// DefaultHandlerRegistry wires the four built-in handlers. searcher may be
// nil; fetch steps then fail with a CapabilityError instead of silently
// producing an empty corpus.
func DefaultHandlerRegistry(inv *Invoker, searcher Searcher, supportThreshold int, th Thresholds) *HandlerRegistry {
	r := NewHandlerRegistry()
	r.Register(&GenerativeHandler{Invoker: inv})
	r.Register(&FetchHandler{Searcher: searcher})
	r.Register(&AggregateHandler{SupportThreshold: supportThreshold})
	r.Register(&ControllerHandler{Thresholds: th})
	return r
}

// GenerativeHandler delegates to the StepInvoker.
type GenerativeHandler struct {
	Invoker *Invoker
}

func (h *GenerativeHandler) Kind() StepKind { return StepGenerative }

func (h *GenerativeHandler) Execute(ctx context.Context, step Step, in ExecInput) (*StepResult, error) {
	if h.Invoker == nil {
		return nil, &CapabilityError{Capability: "generative", Message: "no invoker configured"}
	}
	return h.Invoker.Invoke(ctx, step, in.Goal, in.View, in.Feedback, in.OnFragment)
}

// FetchHandler calls the retrieval collaborator with the planned queries.
type FetchHandler struct {
	Searcher Searcher
}

func (h *FetchHandler) Kind() StepKind { return StepFetch }

func (h *FetchHandler) Execute(ctx context.Context, step Step, in ExecInput) (*StepResult, error) {
	if h.Searcher == nil {
		return nil, &CapabilityError{Capability: "retrieval", Message: "no searcher configured"}
	}

	queries := stringSlice(in.View["queries"])
	if len(queries) == 0 {
		queries = []string{in.Goal}
	}

	docs, err := h.Searcher.Search(ctx, queries)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &CapabilityError{Capability: "retrieval", Message: "search failed", Cause: err}
	}

	return &StepResult{
		Fields: map[string]any{
			"documents":      docs,
			"document_count": len(docs),
		},
	}, nil
}

// AggregateHandler runs the deterministic corpus statistics. No capability call.
type AggregateHandler struct {
	SupportThreshold int
}

func (h *AggregateHandler) Kind() StepKind { return StepAggregate }

func (h *AggregateHandler) Execute(ctx context.Context, step Step, in ExecInput) (*StepResult, error) {
	docs, ok := in.View["documents"].([]gapstat.Document)
	if !ok {
		return nil, fmt.Errorf("step %s: no document corpus in context", step.ID)
	}

	summary := gapstat.Summarize(docs, h.SupportThreshold)

	return &StepResult{
		Fields: map[string]any{
			"statistics":      summary,
			"statistics_text": summary.FormatForPrompt(),
		},
	}, nil
}

// ControllerHandler computes the authoritative routing decision from the
// numeric rule. Any prose rationale is event metadata only and never drives
// transitions.
type ControllerHandler struct {
	Thresholds Thresholds
}

func (h *ControllerHandler) Kind() StepKind { return StepController }

func (h *ControllerHandler) Execute(ctx context.Context, step Step, in ExecInput) (*StepResult, error) {
	d := Decide(in.Scores, in.LoopsUsed, in.Pending, in.Pipeline, h.Thresholds)

	rationale := describeDecision(d, in.Scores, h.Thresholds)

	return &StepResult{
		Fields:   map[string]any{"routing_rationale": rationale},
		Decision: &d,
	}, nil
}

// describeDecision renders a human-readable rationale for event metadata.
func describeDecision(d Decision, scores map[string]float64, th Thresholds) string {
	switch d.Kind {
	case DecisionLoop:
		return d.Feedback
	case DecisionTerminate:
		if d.Outcome == OutcomeApproved {
			return fmt.Sprintf("all %d scored dimensions meet the adequate threshold of %.2f", len(scores), th.Adequate)
		}
		return fmt.Sprintf("at least one scored dimension is below the adequate threshold of %.2f", th.Adequate)
	default:
		return "scored steps remain; advancing"
	}
}
