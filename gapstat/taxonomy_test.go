// ABOUTME: Tests for the tag taxonomy: mapping, dedup, and display names.

package gapstat

import (
	"reflect"
	"sort"
	"testing"
)

func TestMapTagsGroupsByAxis(t *testing.T) {
	got := MapTags([]string{"Adult", "Counseling", "Primary Health Care", "Smoking Cessation", "Randomized Controlled Trial"})

	want := map[Axis][]string{
		AxisPopulation:   {"adults"},
		AxisIntervention: {"counseling"},
		AxisSetting:      {"primary_care"},
		AxisOutcome:      {"cessation"},
		AxisStudyType:    {"rct"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapTags = %v, want %v", got, want)
	}
}

func TestMapTagsDedupesWithinAxis(t *testing.T) {
	// Both tags resolve to the same intervention category.
	got := MapTags([]string{"Nicotine Replacement Therapy", "Nicotine"})

	if len(got[AxisIntervention]) != 1 || got[AxisIntervention][0] != "nrt" {
		t.Errorf("intervention categories = %v, want [nrt]", got[AxisIntervention])
	}
}

func TestMapTagsDropsUnknownTags(t *testing.T) {
	got := MapTags([]string{"Completely Unknown Term", "Adult"})

	if len(got[AxisPopulation]) != 1 {
		t.Errorf("population categories = %v, want [adults]", got[AxisPopulation])
	}
	total := 0
	for _, cats := range got {
		total += len(cats)
	}
	if total != 1 {
		t.Errorf("unknown tag leaked into mapping: %v", got)
	}
}

func TestCategoriesSortedAndDistinct(t *testing.T) {
	cats := Categories(AxisIntervention)

	if !sort.StringsAreSorted(cats) {
		t.Errorf("Categories not sorted: %v", cats)
	}
	seen := make(map[string]bool)
	for _, c := range cats {
		if seen[c] {
			t.Errorf("duplicate category %q", c)
		}
		seen[c] = true
	}
	if !seen["nrt"] {
		t.Error("expected nrt among intervention categories")
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"pregnant":                 "Pregnant",
		"emergency_department":     "Emergency Department",
		"motivational_interviewing": "Motivational Interviewing",
	}
	for in, want := range cases {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}
