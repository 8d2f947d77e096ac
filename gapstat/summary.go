// ABOUTME: Assembles the complete corpus statistics object and renders it for prompt input.
// ABOUTME: Distributions, co-occurrence sparse cells, trends, understudied categories, sampled abstracts.

package gapstat

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSupportThreshold flags cells with fewer co-occurring documents
	// than this as candidate gaps.
	DefaultSupportThreshold = 3

	// maxSparseCells caps how many flagged cells the summary carries forward.
	maxSparseCells = 20

	// sampleSize is how many abstracts the summary includes for analysis.
	sampleSize = 15

	// abstractTruncateLen bounds each sampled abstract in the prompt.
	abstractTruncateLen = 500

	understudiedPctDefault = 5.0
	understudiedPctOutcome = 10.0
)

// CategoryShare is one category's document count and corpus percentage.
type CategoryShare struct {
	Category   string  `json:"category"`
	Display    string  `json:"display_name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Summary is the full deterministic statistics object produced by Summarize.
type Summary struct {
	TotalDocuments   int                      `json:"total_documents"`
	YearMin          int                      `json:"year_min,omitempty"`
	YearMax          int                      `json:"year_max,omitempty"`
	Distributions    map[Axis][]CategoryShare `json:"distributions"`
	Matrix           *GapMatrix               `json:"matrix"`
	SparseCells      []Cell                   `json:"sparse_cells"`
	Trends           TrendReport              `json:"trends"`
	Understudied     map[Axis][]CategoryShare `json:"understudied"`
	Samples          []Document               `json:"samples"`
	SupportThreshold int                      `json:"support_threshold"`
}

// Summarize computes the complete statistics object for a corpus. threshold
// is the sparse-cell support threshold; values below 1 fall back to the
// default. The output is idempotent: the same corpus always produces the
// same summary.
func Summarize(docs []Document, threshold int) *Summary {
	if threshold < 1 {
		threshold = DefaultSupportThreshold
	}

	s := &Summary{
		TotalDocuments:   len(docs),
		Distributions:    make(map[Axis][]CategoryShare),
		Understudied:     make(map[Axis][]CategoryShare),
		SupportThreshold: threshold,
	}

	counts := countByAxis(docs)
	for _, axis := range Axes {
		s.Distributions[axis] = distribution(counts[axis], len(docs))
	}

	for _, d := range docs {
		if d.Year <= 0 {
			continue
		}
		if s.YearMin == 0 || d.Year < s.YearMin {
			s.YearMin = d.Year
		}
		if d.Year > s.YearMax {
			s.YearMax = d.Year
		}
	}

	s.Matrix = BuildMatrix(docs, AxisPopulation, AxisIntervention)
	s.SparseCells = s.Matrix.SparseCells(threshold)
	if len(s.SparseCells) > maxSparseCells {
		s.SparseCells = s.SparseCells[:maxSparseCells]
	}

	s.Trends = TemporalTrends(docs)

	for _, axis := range Axes {
		pct := understudiedPctDefault
		if axis == AxisOutcome {
			pct = understudiedPctOutcome
		}
		s.Understudied[axis] = understudied(counts[axis], len(docs), pct)
	}

	s.Samples = SampleForCells(docs, s.SparseCells, sampleSize)

	return s
}

// countByAxis counts, per axis, how many documents exhibit each category.
func countByAxis(docs []Document) map[Axis]map[string]int {
	counts := make(map[Axis]map[string]int)
	for _, axis := range Axes {
		counts[axis] = make(map[string]int)
	}
	for _, d := range docs {
		mapped := MapTags(d.Tags)
		for _, axis := range Axes {
			for _, cat := range mapped[axis] {
				counts[axis][cat]++
			}
		}
	}
	return counts
}

// distribution converts counts to sorted shares (count descending, then label).
func distribution(counts map[string]int, total int) []CategoryShare {
	shares := make([]CategoryShare, 0, len(counts))
	for cat, n := range counts {
		pct := 0.0
		if total > 0 {
			pct = round1(float64(n) / float64(total) * 100)
		}
		shares = append(shares, CategoryShare{
			Category:   cat,
			Display:    DisplayName(cat),
			Count:      n,
			Percentage: pct,
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Category < shares[j].Category
	})
	return shares
}

// understudied returns categories present in the corpus but below thresholdPct
// of documents, most understudied first.
func understudied(counts map[string]int, total int, thresholdPct float64) []CategoryShare {
	var out []CategoryShare
	for cat, n := range counts {
		pct := 0.0
		if total > 0 {
			pct = float64(n) / float64(total) * 100
		}
		if pct < thresholdPct {
			out = append(out, CategoryShare{
				Category:   cat,
				Display:    DisplayName(cat),
				Count:      n,
				Percentage: round1(pct),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage < out[j].Percentage
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// FormatForPrompt renders the summary as plain text for a generative step.
func (s *Summary) FormatForPrompt() string {
	var b strings.Builder

	fmt.Fprintf(&b, "CORPUS: %d documents", s.TotalDocuments)
	if s.YearMin > 0 {
		fmt.Fprintf(&b, " (%d-%d)", s.YearMin, s.YearMax)
	}
	b.WriteString("\n\n")

	for _, axis := range Axes {
		shares := s.Distributions[axis]
		if len(shares) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s DISTRIBUTION:\n", strings.ToUpper(string(axis)))
		for _, sh := range shares {
			fmt.Fprintf(&b, "  %s: %d (%.1f%%)\n", sh.Display, sh.Count, sh.Percentage)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "SPARSE COMBINATIONS (support < %d, candidate gaps):\n", s.SupportThreshold)
	if len(s.SparseCells) == 0 {
		b.WriteString("  none\n")
	}
	for _, cell := range s.SparseCells {
		fmt.Fprintf(&b, "  %s: %d documents\n", cell.Display, cell.Count)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "TEMPORAL TREND: %s", s.Trends.Trend)
	if s.Trends.Trend != TrendInsufficientData {
		fmt.Fprintf(&b, " (avg recent change %.1f%%, peak %d with %d documents)",
			s.Trends.AvgRecentChange, s.Trends.PeakYear, s.Trends.PeakCount)
	}
	b.WriteString("\n\n")

	for _, axis := range Axes {
		under := s.Understudied[axis]
		if len(under) == 0 {
			continue
		}
		fmt.Fprintf(&b, "UNDERSTUDIED %s:\n", strings.ToUpper(string(axis)))
		for _, sh := range under {
			fmt.Fprintf(&b, "  %s: %d (%.1f%%)\n", sh.Display, sh.Count, sh.Percentage)
		}
		b.WriteString("\n")
	}

	if len(s.Samples) > 0 {
		b.WriteString("SAMPLE ABSTRACTS:\n")
		for _, d := range s.Samples {
			abstract := truncateAbstract(d.Abstract)
			fmt.Fprintf(&b, "- [%s] %s (%d)\n  %s\n", d.ID, d.Title, d.Year, abstract)
		}
	}

	return b.String()
}

// truncateAbstract bounds an abstract, cutting on a rune boundary so a
// multi-byte character straddling the limit is never split.
func truncateAbstract(s string) string {
	if len(s) <= abstractTruncateLen {
		return s
	}
	cut := abstractTruncateLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
