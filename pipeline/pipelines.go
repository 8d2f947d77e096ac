// ABOUTME: Built-in pipeline definitions: the linear gap finder and the score-routed discovery loop.
// ABOUTME: Prompts, declared outputs, dimension ownership, and input builders live here.

package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Pipeline kinds accepted by Engine.Start.
const (
	KindGapFinder = "gap_finder"
	KindDiscovery = "discovery"
)

// ByKind returns the built-in pipeline definition for a kind.
func ByKind(kind string) (*Pipeline, bool) {
	switch kind {
	case KindGapFinder:
		return gapFinderPipeline(), true
	case KindDiscovery:
		return discoveryPipeline(), true
	default:
		return nil, false
	}
}

// Kinds lists the available pipeline kinds, sorted.
func Kinds() []string {
	ks := []string{KindGapFinder, KindDiscovery}
	sort.Strings(ks)
	return ks
}

// gapFinderPipeline is the linear variant: plan queries, fetch the corpus,
// aggregate deterministic statistics, analyze, synthesize. No controller, no
// backward edges; it always ends completed unless a step fails.
func gapFinderPipeline() *Pipeline {
	return &Pipeline{
		Kind:   KindGapFinder,
		Linear: true,
		Steps: []Step{
			{
				ID:       "query_planner",
				Name:     "Query Planner",
				Kind:     StepGenerative,
				Thinking: "Planning literature search queries",
				SystemPrompt: "You are a biomedical literature search strategist. Given a research " +
					"goal, produce focused search queries that together cover the goal's " +
					"population, intervention, and outcome facets. Respond with ONLY a JSON " +
					"object with keys \"queries\" (array of 3-6 query strings) and " +
					"\"rationale\" (one short paragraph).",
				BuildInput: func(goal string, view map[string]any, feedback string) string {
					var b strings.Builder
					fmt.Fprintf(&b, "Research goal: %s\n", goal)
					if feedback != "" {
						fmt.Fprintf(&b, "\nRevision feedback: %s\n", feedback)
					}
					b.WriteString("\nPlan the search queries.")
					return b.String()
				},
				OutputFields: []string{"queries", "rationale"},
			},
			{
				ID:       "data_fetcher",
				Name:     "Data Fetcher",
				Kind:     StepFetch,
				Thinking: "Retrieving the document corpus",
			},
			{
				ID:       "aggregator",
				Name:     "Corpus Aggregator",
				Kind:     StepAggregate,
				Thinking: "Computing co-occurrence and trend statistics",
			},
			{
				ID:       "literature_analyzer",
				Name:     "Literature Analyzer",
				Kind:     StepGenerative,
				Thinking: "Analyzing corpus statistics for patterns",
				SystemPrompt: "You are a systematic-review methodologist. You are given " +
					"deterministic statistics computed over a retrieved corpus: category " +
					"distributions, a population-by-intervention co-occurrence matrix with " +
					"under-supported cells, temporal trends, and sample abstracts. Interpret " +
					"the numbers; do not invent counts. Respond with ONLY a JSON object with " +
					"keys \"themes\" (array of strings), \"saturated_areas\" (array of " +
					"strings), and \"observations\" (string).",
				BuildInput: func(goal string, view map[string]any, feedback string) string {
					var b strings.Builder
					fmt.Fprintf(&b, "Research goal: %s\n\n", goal)
					b.WriteString(viewString(view, "statistics_text"))
					if feedback != "" {
						fmt.Fprintf(&b, "\n\nRevision feedback: %s", feedback)
					}
					return b.String()
				},
				OutputFields: []string{"themes", "saturated_areas", "observations"},
			},
			{
				ID:       "gap_synthesizer",
				Name:     "Gap Synthesizer",
				Kind:     StepGenerative,
				Thinking: "Synthesizing research gap candidates",
				SystemPrompt: "You are a research strategist. Using the corpus statistics and the " +
					"analyst's observations, identify concrete research gaps: " +
					"population-intervention combinations with thin evidence, declining areas " +
					"that deserve revisiting, and understudied outcomes. Every gap must cite " +
					"the statistic that supports it. Respond with ONLY a JSON object with " +
					"keys \"gaps\" (array of objects with \"title\", \"description\", and " +
					"\"supporting_statistic\") and \"report\" (a markdown report string).",
				BuildInput: func(goal string, view map[string]any, feedback string) string {
					var b strings.Builder
					fmt.Fprintf(&b, "Research goal: %s\n\n", goal)
					b.WriteString(viewString(view, "statistics_text"))
					fmt.Fprintf(&b, "\n\nAnalyst observations: %s\n", viewString(view, "observations"))
					if feedback != "" {
						fmt.Fprintf(&b, "\nRevision feedback: %s\n", feedback)
					}
					return b.String()
				},
				OutputFields: []string{"gaps", "report"},
			},
		},
	}
}

// discoveryPipeline is the score-routed variant: a hypothesis step followed by
// four scored assessments and a controller. Each scored step emits a score in
// [0,1] plus its own feedback field; the controller's numeric rule decides
// whether to advance, loop back to a dimension's owner, or terminate.
func discoveryPipeline() *Pipeline {
	return &Pipeline{
		Kind: KindDiscovery,
		Steps: []Step{
			{
				ID:       "target_hypothesis",
				Name:     "Target Hypothesis",
				Kind:     StepGenerative,
				Thinking: "Formulating the target hypothesis",
				SystemPrompt: "You are a drug-discovery scientist. Given a disease-area goal, " +
					"propose one molecular target and a mechanism-of-action hypothesis. Be " +
					"specific: name the target, the modality, and the expected effect. " +
					"Respond with ONLY a JSON object with keys \"target\" (string), " +
					"\"mechanism\" (string), and \"hypothesis\" (one paragraph string).",
				BuildInput: func(goal string, view map[string]any, feedback string) string {
					var b strings.Builder
					fmt.Fprintf(&b, "Discovery goal: %s\n", goal)
					if feedback != "" {
						fmt.Fprintf(&b, "\nRevision feedback: %s\nPropose a revised or better-supported hypothesis.\n", feedback)
					}
					return b.String()
				},
				OutputFields: []string{"target", "mechanism", "hypothesis"},
			},
			{
				ID:       "literature_evidence",
				Name:     "Literature Evidence",
				Kind:     StepGenerative,
				Thinking: "Assessing literature support",
				SystemPrompt: "You are a literature reviewer scoring the evidence behind a target " +
					"hypothesis. Score strictly: 0.8+ means multiple independent lines of " +
					"evidence, 0.5 means plausible but thin, below 0.4 means speculative. " +
					"Respond with ONLY a JSON object with keys \"score\" (number 0-1), " +
					"\"evidence_summary\" (string), and \"evidence_feedback\" (what evidence " +
					"would raise the score, string).",
				BuildInput:   scoredInput("evidence"),
				OutputFields: []string{"evidence_summary", "evidence_feedback"},
				ScoreKey:     "evidence",
			},
			{
				ID:       "druggability",
				Name:     "Druggability Assessment",
				Kind:     StepGenerative,
				Thinking: "Assessing target druggability",
				SystemPrompt: "You are a medicinal chemist scoring target druggability. Consider " +
					"binding-site tractability, modality fit, and precedent. Score strictly " +
					"on a 0-1 scale. Respond with ONLY a JSON object with keys \"score\" " +
					"(number 0-1), \"druggability_assessment\" (string), and " +
					"\"druggability_feedback\" (what would change the assessment, string).",
				BuildInput:   scoredInput("druggability"),
				OutputFields: []string{"druggability_assessment", "druggability_feedback"},
				ScoreKey:     "druggability",
			},
			{
				ID:       "novelty",
				Name:     "Novelty Assessment",
				Kind:     StepGenerative,
				Thinking: "Assessing hypothesis novelty",
				SystemPrompt: "You are a competitive-intelligence analyst scoring hypothesis " +
					"novelty against the known landscape. A crowded, well-trodden mechanism " +
					"scores low even when the science is sound. Respond with ONLY a JSON " +
					"object with keys \"score\" (number 0-1), \"novelty_assessment\" " +
					"(string), and \"novelty_feedback\" (string).",
				BuildInput:   scoredInput("novelty"),
				OutputFields: []string{"novelty_assessment", "novelty_feedback"},
				ScoreKey:     "novelty",
			},
			{
				ID:       "preclinical_design",
				Name:     "Preclinical Design",
				Kind:     StepGenerative,
				Thinking: "Designing the preclinical study",
				SystemPrompt: "You are a preclinical pharmacologist. Design the first in-vivo " +
					"study for the hypothesis and score its feasibility: model availability, " +
					"endpoint measurability, and timeline realism. Respond with ONLY a JSON " +
					"object with keys \"score\" (number 0-1), \"study_design\" (string), and " +
					"\"feasibility_feedback\" (string).",
				BuildInput:   scoredInput("feasibility"),
				OutputFields: []string{"study_design", "feasibility_feedback"},
				ScoreKey:     "feasibility",
			},
			{
				ID:       "controller",
				Name:     "Routing Controller",
				Kind:     StepController,
				Thinking: "Evaluating scores against thresholds",
			},
		},
		DimensionOwners: map[string]string{
			"evidence":     "literature_evidence",
			"druggability": "target_hypothesis",
			"novelty":      "target_hypothesis",
			"feasibility":  "preclinical_design",
		},
		DimensionPriority: []string{"evidence", "druggability", "novelty", "feasibility"},
	}
}

// scoredInput builds the shared prompt shape for the discovery assessors: the
// goal, the current hypothesis, and any loop feedback addressed to this step.
func scoredInput(dimension string) BuildInputFunc {
	return func(goal string, view map[string]any, feedback string) string {
		var b strings.Builder
		fmt.Fprintf(&b, "Discovery goal: %s\n\n", goal)
		fmt.Fprintf(&b, "Target: %s\n", viewString(view, "target"))
		fmt.Fprintf(&b, "Mechanism: %s\n", viewString(view, "mechanism"))
		fmt.Fprintf(&b, "Hypothesis: %s\n", viewString(view, "hypothesis"))
		if feedback != "" {
			fmt.Fprintf(&b, "\nRevision feedback: %s\n", feedback)
		}
		fmt.Fprintf(&b, "\nAssess the %s dimension.", dimension)
		return b.String()
	}
}

// viewString reads a context value as a string, tolerating absent keys.
func viewString(view map[string]any, key string) string {
	if v, ok := view[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}
