// ABOUTME: Deterministic stratified sampling of abstracts for downstream analysis.
// ABOUTME: Round-robins across flagged cells (falling back to study-type strata); no randomness.

package gapstat

import "sort"

// SampleForCells selects up to n documents with abstracts as evidence for the
// flagged cells: it round-robins across the cells in their given order, taking
// from each the unsampled document with the lowest ID that exhibits both of
// the cell's categories, then fills leftover slots from the remaining
// documents in ID order. With no flagged cells it falls back to study-type
// stratification. Output is fully determined by the input.
func SampleForCells(docs []Document, cells []Cell, n int) []Document {
	if len(cells) == 0 {
		return SampleDocuments(docs, n)
	}

	withAbstracts := abstractsByID(docs)
	if len(withAbstracts) <= n {
		return withAbstracts
	}

	// Documents exhibiting each flagged cell, in ID order.
	perCell := make([][]Document, len(cells))
	for i, cell := range cells {
		for _, d := range withAbstracts {
			mapped := MapTags(d.Tags)
			if containsString(mapped[AxisPopulation], cell.RowCategory) &&
				containsString(mapped[AxisIntervention], cell.ColCategory) {
				perCell[i] = append(perCell[i], d)
			}
		}
	}

	sampled := make([]Document, 0, n)
	taken := make(map[string]bool)
	next := make([]int, len(cells))

	// Round-robin across cells until a full pass adds nothing.
	for len(sampled) < n {
		added := false
		for i := range cells {
			if len(sampled) == n {
				break
			}
			for next[i] < len(perCell[i]) {
				d := perCell[i][next[i]]
				next[i]++
				if !taken[d.ID] {
					sampled = append(sampled, d)
					taken[d.ID] = true
					added = true
					break
				}
			}
		}
		if !added {
			break
		}
	}

	for _, d := range withAbstracts {
		if len(sampled) == n {
			break
		}
		if !taken[d.ID] {
			sampled = append(sampled, d)
			taken[d.ID] = true
		}
	}

	sort.Slice(sampled, func(i, j int) bool { return sampled[i].ID < sampled[j].ID })
	return sampled
}

// SampleDocuments selects up to n documents with abstracts, spread across
// study types so the sample is not dominated by one design. Within each
// stratum documents are taken in ascending ID order, and leftover slots are
// filled from the remaining documents in ID order.
func SampleDocuments(docs []Document, n int) []Document {
	withAbstracts := abstractsByID(docs)
	if len(withAbstracts) <= n {
		return withAbstracts
	}

	strata := make(map[string][]Document)
	for _, d := range withAbstracts {
		key := "unknown"
		if types := d.categories(AxisStudyType); len(types) > 0 {
			key = types[0]
		}
		strata[key] = append(strata[key], d)
	}

	keys := make([]string, 0, len(strata))
	for k := range strata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	perStratum := n / len(keys)
	if perStratum < 1 {
		perStratum = 1
	}

	sampled := make([]Document, 0, n)
	taken := make(map[string]bool)
	for _, k := range keys {
		for i := 0; i < perStratum && i < len(strata[k]); i++ {
			if len(sampled) == n {
				break
			}
			d := strata[k][i]
			sampled = append(sampled, d)
			taken[d.ID] = true
		}
	}

	for _, d := range withAbstracts {
		if len(sampled) == n {
			break
		}
		if !taken[d.ID] {
			sampled = append(sampled, d)
			taken[d.ID] = true
		}
	}

	sort.Slice(sampled, func(i, j int) bool { return sampled[i].ID < sampled[j].ID })
	return sampled
}

// abstractsByID filters to documents with abstracts, sorted by ID.
func abstractsByID(docs []Document) []Document {
	var out []Document
	for _, d := range docs {
		if d.Abstract != "" {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
