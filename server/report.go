// ABOUTME: Final report assembly from a finished run's accumulated context.
// ABOUTME: Markdown by default; goldmark renders the HTML variant on request.

package server

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/seam-research/lacuna/pipeline"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderMarkdown converts a markdown report to HTML.
func renderMarkdown(md string) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// reportMarkdown assembles the run's report from its accumulated context.
// The gap finder synthesizes its own markdown report; the discovery pipeline's
// report is composed here from the hypothesis and the scored assessments.
// Returns "" when the run produced nothing reportable.
func reportMarkdown(rec *runRecord) string {
	cctx := rec.run.Context()

	if report := contextString(cctx, "report"); report != "" {
		return report
	}

	hypothesis := contextString(cctx, "hypothesis")
	if hypothesis == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Discovery Run: %s\n\n", rec.goal)
	fmt.Fprintf(&b, "**Outcome:** %s after %d loop iteration(s)\n\n", rec.run.Outcome(), rec.run.Iteration())

	fmt.Fprintf(&b, "## Hypothesis\n\n")
	fmt.Fprintf(&b, "- **Target:** %s\n", contextString(cctx, "target"))
	fmt.Fprintf(&b, "- **Mechanism:** %s\n\n", contextString(cctx, "mechanism"))
	fmt.Fprintf(&b, "%s\n\n", hypothesis)

	scores := cctx.Scores()
	if len(scores) > 0 {
		b.WriteString("## Scores\n\n")
		dims := make([]string, 0, len(scores))
		for d := range scores {
			dims = append(dims, d)
		}
		sort.Strings(dims)
		b.WriteString("| Dimension | Score |\n|---|---|\n")
		for _, d := range dims {
			fmt.Fprintf(&b, "| %s | %.2f |\n", d, scores[d])
		}
		b.WriteString("\n")
	}

	sections := []struct {
		title string
		field string
	}{
		{"Evidence", "evidence_summary"},
		{"Druggability", "druggability_assessment"},
		{"Novelty", "novelty_assessment"},
		{"Preclinical Design", "study_design"},
	}
	for _, sec := range sections {
		if text := contextString(cctx, sec.field); text != "" {
			fmt.Fprintf(&b, "## %s\n\n%s\n\n", sec.title, text)
		}
	}

	return b.String()
}

func contextString(c *pipeline.Context, key string) string {
	v, ok := c.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
