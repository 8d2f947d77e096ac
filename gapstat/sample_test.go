// ABOUTME: Tests for deterministic stratified abstract sampling.

package gapstat

import (
	"fmt"
	"reflect"
	"testing"
)

func TestSampleDocumentsSkipsMissingAbstracts(t *testing.T) {
	docs := []Document{
		{ID: "d1", Abstract: "text"},
		{ID: "d2"},
		{ID: "d3", Abstract: "text"},
	}

	got := SampleDocuments(docs, 10)
	if len(got) != 2 {
		t.Fatalf("sampled %d documents, want 2", len(got))
	}
	for _, d := range got {
		if d.Abstract == "" {
			t.Errorf("sampled document %s has no abstract", d.ID)
		}
	}
}

func TestSampleDocumentsBounded(t *testing.T) {
	var docs []Document
	for i := 0; i < 50; i++ {
		docs = append(docs, Document{ID: fmt.Sprintf("d%02d", i), Abstract: "text"})
	}

	got := SampleDocuments(docs, 15)
	if len(got) != 15 {
		t.Errorf("sampled %d documents, want 15", len(got))
	}
}

func TestSampleDocumentsSpreadsAcrossStudyTypes(t *testing.T) {
	var docs []Document
	for i := 0; i < 20; i++ {
		docs = append(docs, Document{
			ID:       fmt.Sprintf("rct%02d", i),
			Abstract: "text",
			Tags:     []string{"Randomized Controlled Trial"},
		})
	}
	docs = append(docs, Document{ID: "rev01", Abstract: "text", Tags: []string{"Review"}})

	got := SampleDocuments(docs, 10)

	foundReview := false
	for _, d := range got {
		if d.ID == "rev01" {
			foundReview = true
		}
	}
	if !foundReview {
		t.Error("minority study type missing from diverse sample")
	}
}

func TestSampleForCellsPrioritizesFlaggedEvidence(t *testing.T) {
	var docs []Document
	for i := 0; i < 20; i++ {
		docs = append(docs, Document{
			ID:       fmt.Sprintf("adult%02d", i),
			Abstract: "text",
			Tags:     []string{"Adult", "Counseling"},
		})
	}
	docs = append(docs,
		Document{ID: "preg01", Abstract: "text", Tags: []string{"Pregnant Women", "Nicotine Replacement Therapy"}},
		Document{ID: "vet01", Abstract: "text", Tags: []string{"Veterans", "Varenicline"}},
	)

	cells := []Cell{
		{RowCategory: "pregnant", ColCategory: "nrt", Count: 1},
		{RowCategory: "veterans", ColCategory: "varenicline", Count: 1},
	}

	got := SampleForCells(docs, cells, 5)

	ids := make(map[string]bool)
	for _, d := range got {
		ids[d.ID] = true
	}
	if !ids["preg01"] || !ids["vet01"] {
		t.Errorf("flagged-cell evidence missing from sample: %v", ids)
	}
	if len(got) != 5 {
		t.Errorf("sampled %d documents, want 5", len(got))
	}
}

func TestSampleForCellsFallsBackWithoutCells(t *testing.T) {
	docs := []Document{
		{ID: "d1", Abstract: "text"},
		{ID: "d2", Abstract: "text"},
	}
	got := SampleForCells(docs, nil, 1)
	if len(got) != 1 || got[0].ID != "d1" {
		t.Errorf("fallback sample = %+v, want [d1]", got)
	}
}

func TestSampleDocumentsDeterministic(t *testing.T) {
	var docs []Document
	for i := 0; i < 40; i++ {
		tags := []string{"Randomized Controlled Trial"}
		if i%3 == 0 {
			tags = []string{"Cohort Studies"}
		}
		docs = append(docs, Document{ID: fmt.Sprintf("d%02d", i), Abstract: "text", Tags: tags})
	}

	a := SampleDocuments(docs, 15)
	b := SampleDocuments(docs, 15)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical input produced different samples")
	}
}
