// ABOUTME: Score-gated routing: the authoritative transition rule of the dynamic pipeline.
// ABOUTME: Pure function of scores, loop usage, and pending steps; prose never drives transitions.

package pipeline

import "fmt"

// Thresholds configures the routing rule. Critical is the floor below which a
// dimension forces a loop; Adequate is the bar every dimension must clear for
// approval; MaxLoops is the iteration ceiling: the total number of passes
// through the scored steps, so a run loops backward at most MaxLoops-1 times.
type Thresholds struct {
	Critical float64 `json:"critical" yaml:"critical"`
	Adequate float64 `json:"adequate" yaml:"adequate"`
	MaxLoops int     `json:"max_loops" yaml:"max_loops"`
}

// DefaultThresholds returns the values the built-in discovery pipeline ships
// with: critical 0.40, adequate 0.55, ceiling 3.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 0.40, Adequate: 0.55, MaxLoops: 3}
}

// DecisionKind discriminates a routing decision.
type DecisionKind string

const (
	DecisionAdvance   DecisionKind = "advance"
	DecisionLoop      DecisionKind = "loop"
	DecisionTerminate DecisionKind = "terminate"
)

// Decision is the outcome of one controller evaluation. Computed fresh each
// cycle; never cached, because scores change every iteration.
type Decision struct {
	Kind         DecisionKind
	Outcome      Outcome // terminate only
	TargetStepID string  // loop only
	Dimension    string  // loop only: the weak dimension
	Score        float64 // loop only: its score
	Feedback     string  // loop only: always non-empty
}

// Decide applies the routing rule. loopsUsed counts completed backward loops,
// so the pass under evaluation is number loopsUsed+1 of at most MaxLoops:
//  1. Final permitted pass: terminate, approved iff every score clears
//     Adequate.
//  2. Lowest dimension below Critical: loop to that dimension's owner with
//     feedback naming the dimension and score.
//  3. Unexecuted steps remain: advance.
//  4. Otherwise terminate by rule 1's threshold logic.
//
// Ties on the lowest score break by the pipeline's fixed dimension priority
// order, keeping routing reproducible for identical inputs.
func Decide(scores map[string]float64, loopsUsed int, pendingSteps []string, pipe *Pipeline, th Thresholds) Decision {
	if loopsUsed+1 >= th.MaxLoops {
		return terminateByThreshold(scores, th)
	}

	dim, score, ok := lowestDimension(scores, pipe.DimensionPriority)
	if ok && score < th.Critical {
		owner := pipe.DimensionOwners[dim]
		return Decision{
			Kind:         DecisionLoop,
			TargetStepID: owner,
			Dimension:    dim,
			Score:        score,
			Feedback: fmt.Sprintf(
				"the %s dimension scored %.2f, below the critical threshold of %.2f; revise the output of step %s to strengthen %s",
				dim, score, th.Critical, owner, dim),
		}
	}

	if len(pendingSteps) > 0 {
		return Decision{Kind: DecisionAdvance}
	}

	return terminateByThreshold(scores, th)
}

// terminateByThreshold resolves the terminal outcome: approved iff every
// score meets the adequate bar, rejected otherwise. An empty score map
// cannot be approved.
func terminateByThreshold(scores map[string]float64, th Thresholds) Decision {
	if len(scores) == 0 {
		return Decision{Kind: DecisionTerminate, Outcome: OutcomeRejected}
	}
	for _, s := range scores {
		if s < th.Adequate {
			return Decision{Kind: DecisionTerminate, Outcome: OutcomeRejected}
		}
	}
	return Decision{Kind: DecisionTerminate, Outcome: OutcomeApproved}
}

// lowestDimension finds the lowest-scoring dimension, breaking ties by the
// given priority order. Dimensions absent from the priority list sort last,
// alphabetically, so the result stays deterministic even for ad hoc scores.
func lowestDimension(scores map[string]float64, priority []string) (string, float64, bool) {
	if len(scores) == 0 {
		return "", 0, false
	}

	rank := make(map[string]int, len(priority))
	for i, d := range priority {
		rank[d] = i
	}
	rankOf := func(dim string) int {
		if r, ok := rank[dim]; ok {
			return r
		}
		return len(priority)
	}

	var bestDim string
	var bestScore float64
	first := true
	for dim, score := range scores {
		if first {
			bestDim, bestScore, first = dim, score, false
			continue
		}
		switch {
		case score < bestScore:
			bestDim, bestScore = dim, score
		case score == bestScore:
			if rankOf(dim) < rankOf(bestDim) ||
				(rankOf(dim) == rankOf(bestDim) && dim < bestDim) {
				bestDim, bestScore = dim, score
			}
		}
	}
	return bestDim, bestScore, true
}
