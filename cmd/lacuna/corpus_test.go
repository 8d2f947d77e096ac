package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleCorpus = `[
  {"id": "d1", "title": "Varenicline in adults", "abstract": "A trial of varenicline.", "tags": ["Adults", "Varenicline"], "year": 2020},
  {"id": "d2", "title": "NRT during pregnancy", "abstract": "Nicotine patches for pregnant smokers.", "tags": ["Pregnant Women", "Nicotine Replacement Therapy"], "year": 2021},
  {"id": "d3", "title": "Counseling approaches", "abstract": "Behavioral counseling for cessation.", "tags": ["Adults", "Counseling"], "year": 2022}
]`

func TestLoadCorpusAndSearch(t *testing.T) {
	s, err := loadCorpus(writeCorpus(t, sampleCorpus))
	if err != nil {
		t.Fatalf("loadCorpus: %v", err)
	}

	docs, err := s.Search(context.Background(), []string{"varenicline"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "d1" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestSearchMatchesAcrossQueriesWithoutDuplicates(t *testing.T) {
	s, err := loadCorpus(writeCorpus(t, sampleCorpus))
	if err != nil {
		t.Fatalf("loadCorpus: %v", err)
	}

	docs, err := s.Search(context.Background(), []string{"pregnancy counseling", "nicotine"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	seen := make(map[string]int)
	for _, d := range docs {
		seen[d.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("document %s returned %d times", id, n)
		}
	}
	if seen["d2"] == 0 || seen["d3"] == 0 {
		t.Errorf("expected d2 and d3 in results: %v", seen)
	}
}

func TestSearchEmptyQueriesReturnsAll(t *testing.T) {
	s, err := loadCorpus(writeCorpus(t, sampleCorpus))
	if err != nil {
		t.Fatalf("loadCorpus: %v", err)
	}
	docs, err := s.Search(context.Background(), nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 3 {
		t.Errorf("docs = %d, want 3", len(docs))
	}
}

func TestLoadCorpusRejectsEmptyAndMalformed(t *testing.T) {
	if _, err := loadCorpus(writeCorpus(t, `[]`)); err == nil {
		t.Error("empty corpus should fail")
	}
	if _, err := loadCorpus(writeCorpus(t, `not json`)); err == nil {
		t.Error("malformed corpus should fail")
	}
	if _, err := loadCorpus(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}
