package pipeline

import (
	"reflect"
	"testing"
)

func TestParseStructuredPlainObject(t *testing.T) {
	out, err := ParseStructured(`{"target": "KRAS", "score": 0.7}`)
	if err != nil {
		t.Fatalf("ParseStructured: %v", err)
	}
	if out["target"] != "KRAS" {
		t.Errorf("target = %v", out["target"])
	}
}

func TestParseStructuredUnwrapsFences(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"report\": \"ok\"}\n```\nHope that helps!"
	out, err := ParseStructured(raw)
	if err != nil {
		t.Fatalf("ParseStructured: %v", err)
	}
	if out["report"] != "ok" {
		t.Errorf("report = %v", out["report"])
	}
}

func TestParseStructuredClipsSurroundingProse(t *testing.T) {
	raw := `Sure! {"themes": ["a"]} Let me know if you need more.`
	out, err := ParseStructured(raw)
	if err != nil {
		t.Fatalf("ParseStructured: %v", err)
	}
	if !reflect.DeepEqual(out["themes"], []any{"a"}) {
		t.Errorf("themes = %v", out["themes"])
	}
}

func TestParseStructuredRepairsTrailingCommas(t *testing.T) {
	out, err := ParseStructured(`{"gaps": ["x", "y",], "report": "r",}`)
	if err != nil {
		t.Fatalf("ParseStructured: %v", err)
	}
	if out["report"] != "r" {
		t.Errorf("report = %v", out["report"])
	}
}

func TestParseStructuredRepairsSmartQuotes(t *testing.T) {
	out, err := ParseStructured("{“report”: “ok”}")
	if err != nil {
		t.Fatalf("ParseStructured: %v", err)
	}
	if out["report"] != "ok" {
		t.Errorf("report = %v", out["report"])
	}
}

func TestParseStructuredRejectsNonObject(t *testing.T) {
	for _, raw := range []string{"", "no json here", `["just", "an", "array"]`, `{"unterminated": `} {
		if _, err := ParseStructured(raw); err == nil {
			t.Errorf("ParseStructured(%q) succeeded, want error", raw)
		}
	}
}

func TestScoreValueCoercion(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{0.42, 0.42, true},
		{0.0, 0.0, true},
		{1, 1.0, true},
		{"0.73", 0.73, true},
		{" 0.5 ", 0.5, true},
		{-0.3, 0, false}, // out of range, never clamped
		{1.8, 0, false},
		{"high", 0, false},
		{nil, 0, false},
		{[]any{0.5}, 0, false},
	}
	for _, c := range cases {
		got, ok := scoreValue(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("scoreValue(%v) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestStringSliceCoercion(t *testing.T) {
	if got := stringSlice([]any{"a", 1, "b"}); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("[]any = %v", got)
	}
	if got := stringSlice([]string{"q"}); !reflect.DeepEqual(got, []string{"q"}) {
		t.Errorf("[]string = %v", got)
	}
	if got := stringSlice("solo"); !reflect.DeepEqual(got, []string{"solo"}) {
		t.Errorf("string = %v", got)
	}
	if got := stringSlice(nil); got != nil {
		t.Errorf("nil = %v", got)
	}
}
