// ABOUTME: Temporal trend analysis over a document corpus: year histogram and year-over-year changes.
// ABOUTME: Classifies publication activity as growing, declining, or stable.

package gapstat

import (
	"math"
	"sort"
)

// Trend classifications.
const (
	TrendGrowing          = "growing"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// trendBandPct is the band, in percent, within which average recent change
// counts as stable.
const trendBandPct = 15.0

// YearChange records the year-over-year delta between two adjacent years.
type YearChange struct {
	FromYear  int     `json:"from_year"`
	ToYear    int     `json:"to_year"`
	FromCount int     `json:"from_count"`
	ToCount   int     `json:"to_count"`
	PctChange float64 `json:"pct_change"`
}

// TrendReport summarizes publication activity over time.
type TrendReport struct {
	Trend           string       `json:"trend"`
	AvgRecentChange float64      `json:"avg_recent_change,omitempty"`
	Changes         []YearChange `json:"changes"`
	PeakYear        int          `json:"peak_year,omitempty"`
	PeakCount       int          `json:"peak_count,omitempty"`
}

// TemporalTrends builds a year histogram from the corpus and classifies the
// overall trend from the average of the last three year-over-year changes.
// Documents without a year are ignored.
func TemporalTrends(docs []Document) TrendReport {
	yearCounts := make(map[int]int)
	for _, d := range docs {
		if d.Year > 0 {
			yearCounts[d.Year]++
		}
	}

	if len(yearCounts) < 2 {
		return TrendReport{Trend: TrendInsufficientData, Changes: []YearChange{}}
	}

	years := make([]int, 0, len(yearCounts))
	for y := range yearCounts {
		years = append(years, y)
	}
	sort.Ints(years)

	changes := make([]YearChange, 0, len(years)-1)
	for i := 1; i < len(years); i++ {
		prev, curr := years[i-1], years[i]
		prevCount, currCount := yearCounts[prev], yearCounts[curr]

		var pct float64
		if prevCount > 0 {
			pct = float64(currCount-prevCount) / float64(prevCount) * 100
		} else if currCount > 0 {
			pct = 100
		}

		changes = append(changes, YearChange{
			FromYear:  prev,
			ToYear:    curr,
			FromCount: prevCount,
			ToCount:   currCount,
			PctChange: round1(pct),
		})
	}

	recent := changes
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	var sum float64
	for _, c := range recent {
		sum += c.PctChange
	}
	avg := sum / float64(len(recent))

	trend := TrendStable
	switch {
	case avg > trendBandPct:
		trend = TrendGrowing
	case avg < -trendBandPct:
		trend = TrendDeclining
	}

	peakYear, peakCount := 0, 0
	for y, n := range yearCounts {
		if n > peakCount || (n == peakCount && y > peakYear) {
			peakYear, peakCount = y, n
		}
	}

	return TrendReport{
		Trend:           trend,
		AvgRecentChange: round1(avg),
		Changes:         changes,
		PeakYear:        peakYear,
		PeakCount:       peakCount,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
