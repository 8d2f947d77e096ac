// ABOUTME: Tests for temporal trend classification over year histograms.

package gapstat

import "testing"

func docsForYears(counts map[int]int) []Document {
	var docs []Document
	i := 0
	for year, n := range counts {
		for j := 0; j < n; j++ {
			docs = append(docs, Document{ID: string(rune('a' + i)), Year: year})
			i++
		}
	}
	return docs
}

func TestTemporalTrendsInsufficientData(t *testing.T) {
	r := TemporalTrends(docsForYears(map[int]int{2024: 5}))
	if r.Trend != TrendInsufficientData {
		t.Errorf("trend = %q, want %q", r.Trend, TrendInsufficientData)
	}

	r = TemporalTrends(nil)
	if r.Trend != TrendInsufficientData {
		t.Errorf("trend for empty corpus = %q, want %q", r.Trend, TrendInsufficientData)
	}
}

func TestTemporalTrendsGrowing(t *testing.T) {
	r := TemporalTrends(docsForYears(map[int]int{2021: 2, 2022: 4, 2023: 8, 2024: 16}))
	if r.Trend != TrendGrowing {
		t.Errorf("trend = %q, want %q", r.Trend, TrendGrowing)
	}
	if r.PeakYear != 2024 || r.PeakCount != 16 {
		t.Errorf("peak = %d/%d, want 2024/16", r.PeakYear, r.PeakCount)
	}
}

func TestTemporalTrendsDeclining(t *testing.T) {
	r := TemporalTrends(docsForYears(map[int]int{2021: 16, 2022: 8, 2023: 4, 2024: 2}))
	if r.Trend != TrendDeclining {
		t.Errorf("trend = %q, want %q", r.Trend, TrendDeclining)
	}
}

func TestTemporalTrendsStable(t *testing.T) {
	r := TemporalTrends(docsForYears(map[int]int{2022: 10, 2023: 10, 2024: 11}))
	if r.Trend != TrendStable {
		t.Errorf("trend = %q, want %q", r.Trend, TrendStable)
	}
}

func TestTemporalTrendsUsesLastThreeChanges(t *testing.T) {
	// Early growth, flat recent years: classification must follow the recent window.
	r := TemporalTrends(docsForYears(map[int]int{2019: 1, 2020: 10, 2021: 10, 2022: 10, 2023: 10}))
	if r.Trend != TrendStable {
		t.Errorf("trend = %q, want %q", r.Trend, TrendStable)
	}
	if len(r.Changes) != 4 {
		t.Errorf("changes = %d, want 4", len(r.Changes))
	}
}
