// ABOUTME: Typed errors surfaced by pipeline execution as run_failed diagnostics.
// ABOUTME: CapabilityError for unreachable collaborators, ParseError for malformed structured output.

package pipeline

import (
	"errors"
	"fmt"
)

// Error kind labels carried in run_failed event data.
const (
	ErrKindCapabilityUnavailable = "capability_unavailable"
	ErrKindOutputParse           = "output_parse_error"
	ErrKindInternal              = "internal_error"
)

// CapabilityError reports that an external collaborator (generative capability
// or retrieval service) cannot be reached or is not configured. It is not
// retried indefinitely; the run fails.
type CapabilityError struct {
	Capability string // "generative" or "retrieval"
	Message    string
	Cause      error
}

func (e *CapabilityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s capability unavailable: %s: %v", e.Capability, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s capability unavailable: %s", e.Capability, e.Message)
}

func (e *CapabilityError) Unwrap() error { return e.Cause }

// ParseError reports that a step's structured output stayed malformed after
// the single format-reminder retry. Raw carries the offending text for
// diagnosis; none of the attempt's fields were merged.
type ParseError struct {
	StepID string
	Raw    string
	Cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("step %s: output parse failed after retry: %v", e.StepID, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// errKind classifies an error for run_failed event data.
func errKind(err error) string {
	var ce *CapabilityError
	var pe *ParseError
	switch {
	case errors.As(err, &ce):
		return ErrKindCapabilityUnavailable
	case errors.As(err, &pe):
		return ErrKindOutputParse
	default:
		return ErrKindInternal
	}
}
