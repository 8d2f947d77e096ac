// ABOUTME: Tests for the assembled corpus summary and its prompt rendering.

package gapstat

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func summaryCorpus() []Document {
	return []Document{
		{ID: "d1", Title: "NRT in pregnancy", Abstract: "A pilot study.", Year: 2021,
			Tags: []string{"Pregnant Women", "Nicotine Replacement Therapy", "Smoking Cessation", "Pilot Projects"}},
		{ID: "d2", Title: "NRT trial", Abstract: "An RCT.", Year: 2022,
			Tags: []string{"Adult", "Nicotine Replacement Therapy", "Smoking Cessation", "Randomized Controlled Trial"}},
		{ID: "d3", Title: "NRT trial 2", Abstract: "Another RCT.", Year: 2023,
			Tags: []string{"Adult", "Nicotine Replacement Therapy", "Smoking Cessation", "Randomized Controlled Trial"}},
		{ID: "d4", Title: "NRT cohort", Abstract: "A cohort study.", Year: 2023,
			Tags: []string{"Adult", "Nicotine Replacement Therapy", "Treatment Outcome", "Cohort Studies"}},
		{ID: "d5", Title: "NRT review", Abstract: "A review.", Year: 2024,
			Tags: []string{"Adult", "Nicotine Replacement Therapy", "Smoking Cessation", "Review"}},
	}
}

func TestSummarizeBasics(t *testing.T) {
	s := Summarize(summaryCorpus(), 3)

	if s.TotalDocuments != 5 {
		t.Errorf("TotalDocuments = %d, want 5", s.TotalDocuments)
	}
	if s.YearMin != 2021 || s.YearMax != 2024 {
		t.Errorf("year range = %d-%d, want 2021-2024", s.YearMin, s.YearMax)
	}
	if s.SupportThreshold != 3 {
		t.Errorf("SupportThreshold = %d, want 3", s.SupportThreshold)
	}

	if len(s.SparseCells) != 1 {
		t.Fatalf("SparseCells = %+v, want exactly the pregnant/nrt cell", s.SparseCells)
	}
	if s.SparseCells[0].RowCategory != "pregnant" || s.SparseCells[0].ColCategory != "nrt" {
		t.Errorf("flagged cell = (%s, %s), want (pregnant, nrt)",
			s.SparseCells[0].RowCategory, s.SparseCells[0].ColCategory)
	}
}

func TestSummarizeDefaultThreshold(t *testing.T) {
	s := Summarize(summaryCorpus(), 0)
	if s.SupportThreshold != DefaultSupportThreshold {
		t.Errorf("SupportThreshold = %d, want default %d", s.SupportThreshold, DefaultSupportThreshold)
	}
}

func TestSummarizeDistributionsSorted(t *testing.T) {
	s := Summarize(summaryCorpus(), 3)

	pops := s.Distributions[AxisPopulation]
	if len(pops) != 2 {
		t.Fatalf("population distribution = %+v, want 2 entries", pops)
	}
	if pops[0].Category != "adults" || pops[0].Count != 4 {
		t.Errorf("top population = %+v, want adults with count 4", pops[0])
	}
	if pops[1].Category != "pregnant" || pops[1].Percentage != 20.0 {
		t.Errorf("second population = %+v, want pregnant at 20%%", pops[1])
	}
}

func TestSummarizeIdempotent(t *testing.T) {
	a := Summarize(summaryCorpus(), 3)
	b := Summarize(summaryCorpus(), 3)

	if !reflect.DeepEqual(a.Distributions, b.Distributions) {
		t.Error("distributions differ across identical runs")
	}
	if !reflect.DeepEqual(a.SparseCells, b.SparseCells) {
		t.Error("sparse cells differ across identical runs")
	}
	if !reflect.DeepEqual(a.Samples, b.Samples) {
		t.Error("samples differ across identical runs")
	}
}

func TestFormatForPromptSections(t *testing.T) {
	text := Summarize(summaryCorpus(), 3).FormatForPrompt()

	for _, want := range []string{
		"CORPUS: 5 documents (2021-2024)",
		"POPULATION DISTRIBUTION:",
		"SPARSE COMBINATIONS",
		"Pregnant + Nrt: 1 documents",
		"TEMPORAL TREND:",
		"SAMPLE ABSTRACTS:",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt text missing %q\n%s", want, text)
		}
	}
}

func TestFormatForPromptTruncatesAbstracts(t *testing.T) {
	long := strings.Repeat("x", 2000)
	docs := []Document{
		{ID: "d1", Title: "Long", Abstract: long, Year: 2024, Tags: []string{"Adult"}},
		{ID: "d2", Title: "Other", Abstract: "short", Year: 2023, Tags: []string{"Adult"}},
	}

	text := Summarize(docs, 3).FormatForPrompt()
	if strings.Contains(text, long) {
		t.Error("abstract was not truncated in prompt text")
	}
}

func TestFormatForPromptTruncationKeepsRunesIntact(t *testing.T) {
	// A 3-byte rune straddles the truncation limit: ASCII up to one byte
	// short of the limit, then multi-byte characters past it.
	abstract := strings.Repeat("a", abstractTruncateLen-1) + strings.Repeat("世", 10)
	docs := []Document{
		{ID: "d1", Title: "Unicode", Abstract: abstract, Year: 2024, Tags: []string{"Adult"}},
	}

	text := Summarize(docs, 3).FormatForPrompt()
	if !utf8.ValidString(text) {
		t.Fatal("prompt text contains a split rune")
	}
	if strings.Contains(text, "世") {
		t.Error("rune straddling the limit should be dropped, not kept partially")
	}
	if !strings.Contains(text, strings.Repeat("a", abstractTruncateLen-1)) {
		t.Error("text up to the rune boundary should survive")
	}
}
