// ABOUTME: Repair pass for structured JSON extracted from generative output.
// ABOUTME: Strips markdown fences, clips to the outermost object, removes trailing commas.

package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	fenceRe         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	smartQuotes     = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// ParseStructured extracts one JSON object from possibly messy capability
// output. The raw text is treated as untrusted: fenced blocks are unwrapped,
// text outside the outermost braces is discarded, and smart quotes plus
// trailing commas are repaired before the final parse attempt. Partial JSON
// is never accepted.
func ParseStructured(raw string) (map[string]any, error) {
	s := strings.TrimSpace(raw)

	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in output")
	}
	s = s[start : end+1]

	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out, nil
	}

	repaired := trailingCommaRe.ReplaceAllString(smartQuotes.Replace(s), "$1")
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return out, nil
}

// scoreValue coerces a parsed field into a [0,1] score. Accepts numbers and
// numeric strings already in range; anything else fails. Out-of-range values
// are rejected rather than clamped so a bad score is retried, never invented.
func scoreValue(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

// stringSlice coerces a context value into a string slice. JSON round-trips
// produce []any; native merges produce []string.
func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}
