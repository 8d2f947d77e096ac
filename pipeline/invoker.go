// ABOUTME: StepInvoker: drives one generative capability call for a step.
// ABOUTME: Streams fragments in arrival order, buffers full text, parses once, retries once with a format reminder.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/seam-research/lacuna/llm"
)

// Invoker wraps the generative capability for generative steps. Fragments are
// relayed through the callback as they arrive; the accumulated full text is
// parsed into structured fields only once streaming completes. Partial JSON
// is never merged.
type Invoker struct {
	client *llm.Client
	model  string
	retry  llm.RetryPolicy
}

// NewInvoker creates an Invoker. model may be empty to use the adapter default.
func NewInvoker(client *llm.Client, model string) *Invoker {
	return &Invoker{
		client: client,
		model:  model,
		retry:  llm.DefaultRetryPolicy(),
	}
}

// FragmentFunc receives each content fragment in arrival order. Returning an
// error stops the stream (used for cooperative cancellation at fragment
// boundaries).
type FragmentFunc func(text string) error

// Invoke runs one generative step: renders the prompt, streams the
// capability's output, and parses the declared fields. A parse failure is
// retried exactly once with a stricter format reminder; the second failure
// returns a *ParseError carrying the raw text. No fields from a failed
// attempt are ever returned.
func (inv *Invoker) Invoke(ctx context.Context, step Step, goal string, view map[string]any, feedback string, onFragment FragmentFunc) (*StepResult, error) {
	if inv.client == nil {
		return nil, &CapabilityError{Capability: "generative", Message: "no LLM client configured"}
	}

	input := goal
	if step.BuildInput != nil {
		input = step.BuildInput(goal, view, feedback)
	}

	messages := []llm.Message{
		llm.SystemMessage(step.SystemPrompt),
		llm.UserMessage(input),
	}

	raw, err := inv.streamOnce(ctx, messages, onFragment)
	if err != nil {
		return nil, err
	}

	result, parseErr := inv.parseResult(step, raw)
	if parseErr == nil {
		return result, nil
	}

	log.Printf("component=invoker action=parse_retry step=%s error=%v", step.ID, parseErr)

	// One retry with a stricter format reminder, carrying the failed reply so
	// the capability can see what it did wrong.
	keys := step.OutputFields
	if step.ScoreKey != "" {
		keys = append(append([]string(nil), keys...), "score (a number between 0 and 1)")
	}
	reminder := fmt.Sprintf(
		"Your previous reply could not be parsed as JSON. Respond again with ONLY a single JSON object, no prose and no markdown fences, containing the keys: %s.",
		strings.Join(keys, ", "))
	retryMessages := append(messages,
		llm.AssistantMessage(raw),
		llm.UserMessage(reminder),
	)

	raw, err = inv.streamOnce(ctx, retryMessages, onFragment)
	if err != nil {
		return nil, err
	}

	result, parseErr = inv.parseResult(step, raw)
	if parseErr != nil {
		return nil, &ParseError{StepID: step.ID, Raw: raw, Cause: parseErr}
	}
	return result, nil
}

// streamOnce performs one streaming capability call, relaying deltas and
// returning the accumulated full text. Transport errors are retried per the
// retry policy only while no fragment has been relayed yet; once fragments
// have gone out a retry would duplicate them.
func (inv *Invoker) streamOnce(ctx context.Context, messages []llm.Message, onFragment FragmentFunc) (string, error) {
	var buf strings.Builder

	for attempt := 0; ; attempt++ {
		buf.Reset()
		emitted := false

		err := inv.streamAttempt(ctx, messages, &buf, func(text string) error {
			emitted = true
			if onFragment == nil {
				return nil
			}
			return onFragment(text)
		})
		if err == nil {
			return buf.String(), nil
		}

		if emitted || !inv.retry.ShouldRetry(err, attempt) {
			return "", inv.classify(err)
		}

		delay := inv.retry.CalculateDelay(attempt)
		log.Printf("component=invoker action=transport_retry attempt=%d delay=%s error=%v", attempt, delay, err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (inv *Invoker) streamAttempt(ctx context.Context, messages []llm.Message, buf *strings.Builder, onFragment FragmentFunc) error {
	events, err := inv.client.Stream(ctx, llm.Request{
		Model:    inv.model,
		Messages: messages,
	})
	if err != nil {
		return err
	}

	for evt := range events {
		switch evt.Type {
		case llm.StreamTextDelta:
			buf.WriteString(evt.Delta)
			if err := onFragment(evt.Delta); err != nil {
				// Cancellation at a fragment boundary: drain and unwind.
				go drain(events)
				return err
			}
		case llm.StreamErrorEvt:
			return evt.Error
		}
		if ctx.Err() != nil {
			go drain(events)
			return ctx.Err()
		}
	}

	return nil
}

// parseResult validates the raw text into the step's declared outputs.
func (inv *Invoker) parseResult(step Step, raw string) (*StepResult, error) {
	parsed, err := ParseStructured(raw)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(step.OutputFields))
	for _, name := range step.OutputFields {
		v, ok := parsed[name]
		if !ok {
			return nil, fmt.Errorf("missing declared output field %q", name)
		}
		fields[name] = v
	}

	result := &StepResult{Fields: fields, Text: raw}

	if step.ScoreKey != "" {
		score, ok := scoreValue(parsed["score"])
		if !ok {
			return nil, fmt.Errorf("score field is not a number in [0,1]")
		}
		result.Scores = map[string]float64{step.ScoreKey: score}
	}

	return result, nil
}

// classify maps capability transport failures onto pipeline error kinds.
// Anything from the LLM error hierarchy means the collaborator is unreachable
// or rejecting us; context errors pass through untouched.
func (inv *Invoker) classify(err error) error {
	if err == nil {
		return nil
	}
	var se *llm.SDKError
	if errors.As(err, &se) {
		return &CapabilityError{Capability: "generative", Message: "LLM call failed", Cause: err}
	}
	return err
}

// drain consumes a stream channel so the producing goroutine can exit after
// an early unwind.
func drain(events <-chan llm.StreamEvent) {
	for range events {
	}
}
