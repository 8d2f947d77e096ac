// ABOUTME: Co-occurrence matrix over a document corpus and sparse-cell gap detection.
// ABOUTME: Deterministic counting only; identical input always yields identical output.

package gapstat

import (
	"fmt"
	"sort"
)

// Document is one retrieved literature record. Tags carry the raw
// controlled-vocabulary terms; MapTags resolves them into axis categories.
type Document struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Abstract  string   `json:"abstract,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Year      int      `json:"year,omitempty"`
	Citations int      `json:"citations,omitempty"`
}

// categories returns the document's distinct categories on one axis.
func (d Document) categories(axis Axis) []string {
	return MapTags(d.Tags)[axis]
}

// Cell is one (row, col) pair in a co-occurrence matrix with its document count.
type Cell struct {
	RowCategory string `json:"row_category"`
	ColCategory string `json:"col_category"`
	Count       int    `json:"count"`
	Display     string `json:"display"`
}

// GapMatrix is a co-occurrence matrix between two axes. Rows and Cols hold the
// categories observed in the corpus, sorted, so the matrix renders identically
// for identical input.
type GapMatrix struct {
	RowAxis Axis     `json:"row_axis"`
	ColAxis Axis     `json:"col_axis"`
	Rows    []string `json:"rows"`
	Cols    []string `json:"cols"`

	counts map[string]map[string]int
}

// BuildMatrix counts, for each (row, col) category pair, the number of
// documents exhibiting both. A document contributes at most once per pair
// regardless of how many of its tags map to the same category.
func BuildMatrix(docs []Document, rowAxis, colAxis Axis) *GapMatrix {
	m := &GapMatrix{
		RowAxis: rowAxis,
		ColAxis: colAxis,
		counts:  make(map[string]map[string]int),
	}

	rowSeen := make(map[string]bool)
	colSeen := make(map[string]bool)

	for _, doc := range docs {
		mapped := MapTags(doc.Tags)
		rowCats := mapped[rowAxis]
		colCats := mapped[colAxis]

		for _, r := range rowCats {
			rowSeen[r] = true
		}
		for _, c := range colCats {
			colSeen[c] = true
		}

		// MapTags already dedupes within an axis, so each pair in the cross
		// product increments exactly once for this document.
		for _, r := range rowCats {
			if m.counts[r] == nil {
				m.counts[r] = make(map[string]int)
			}
			for _, c := range colCats {
				m.counts[r][c]++
			}
		}
	}

	for r := range rowSeen {
		m.Rows = append(m.Rows, r)
	}
	for c := range colSeen {
		m.Cols = append(m.Cols, c)
	}
	sort.Strings(m.Rows)
	sort.Strings(m.Cols)

	return m
}

// Count returns the number of documents exhibiting both categories.
func (m *GapMatrix) Count(row, col string) int {
	return m.counts[row][col]
}

// SparseCells returns every cell whose count is strictly below threshold,
// sorted ascending by count, then row label, then col label. Cells at zero
// represent category pairs seen individually but never together.
func (m *GapMatrix) SparseCells(threshold int) []Cell {
	var sparse []Cell
	for _, r := range m.Rows {
		for _, c := range m.Cols {
			count := m.counts[r][c]
			if count < threshold {
				sparse = append(sparse, Cell{
					RowCategory: r,
					ColCategory: c,
					Count:       count,
					Display:     fmt.Sprintf("%s + %s", DisplayName(r), DisplayName(c)),
				})
			}
		}
	}

	sort.Slice(sparse, func(i, j int) bool {
		if sparse[i].Count != sparse[j].Count {
			return sparse[i].Count < sparse[j].Count
		}
		if sparse[i].RowCategory != sparse[j].RowCategory {
			return sparse[i].RowCategory < sparse[j].RowCategory
		}
		return sparse[i].ColCategory < sparse[j].ColCategory
	})

	return sparse
}
