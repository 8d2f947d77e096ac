// ABOUTME: File-backed document searcher: serves a pre-retrieved corpus from a JSON file.
// ABOUTME: Matches query terms against titles, abstracts, and tags; no ranking.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/seam-research/lacuna/gapstat"
)

// fileSearcher serves documents from a local corpus file. It stands in for a
// live literature API: the fetch step stays exercised end to end while
// retrieval infrastructure remains out of scope.
type fileSearcher struct {
	docs []gapstat.Document
}

// loadCorpus reads a JSON array of documents from path.
func loadCorpus(path string) (*fileSearcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}

	var docs []gapstat.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing corpus %s: %w", path, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("corpus %s contains no documents", path)
	}

	return &fileSearcher{docs: docs}, nil
}

// Search returns every document matching any query term in its title,
// abstract, or tags. Documents are deduplicated by ID.
func (s *fileSearcher) Search(ctx context.Context, queries []string) ([]gapstat.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var terms []string
	for _, q := range queries {
		for _, t := range strings.Fields(strings.ToLower(q)) {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return s.docs, nil
	}

	seen := make(map[string]bool, len(s.docs))
	var out []gapstat.Document
	for _, doc := range s.docs {
		if seen[doc.ID] {
			continue
		}
		haystack := strings.ToLower(doc.Title + " " + doc.Abstract + " " + strings.Join(doc.Tags, " "))
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				seen[doc.ID] = true
				out = append(out, doc)
				break
			}
		}
	}
	return out, nil
}
