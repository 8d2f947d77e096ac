// ABOUTME: OpenAI Chat Completions provider adapter with base URL support for compatible providers.
// ABOUTME: Wraps the official openai-go SDK for Complete and streaming with a chunk accumulator.

package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when neither the request nor the adapter sets a model.
const DefaultOpenAIModel = "gpt-5.2"

// defaultMaxTokens bounds completion length when the request does not set one.
const defaultMaxTokens = 4096

// OpenAIAdapter implements ProviderAdapter using the OpenAI Chat Completions
// API. A custom base URL points it at OpenAI-compatible providers (Cerebras,
// OpenRouter, Cloudflare AI Gateway, etc.); /v1/chat/completions is the
// endpoint all of them support.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

// NewOpenAIAdapter creates a Chat Completions adapter. model and baseURL may
// be empty, in which case the default model and the official endpoint apply.
func NewOpenAIAdapter(apiKey, model, baseURL string) *OpenAIAdapter {
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Name returns the provider name.
func (a *OpenAIAdapter) Name() string { return "openai" }

// Close releases adapter resources. The underlying HTTP client needs no teardown.
func (a *OpenAIAdapter) Close() error { return nil }

// Complete sends a request and returns the complete response.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params := a.convertRequest(req)

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, a.convertError(err)
	}

	return a.convertResponse(resp), nil
}

// Stream sends a request and returns a channel of streaming events. The
// channel carries StreamStart, text deltas in arrival order, and a final
// StreamFinish with the accumulated response (or StreamErrorEvt on failure).
func (a *OpenAIAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	params := a.convertRequest(req)
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)

	eventChan := make(chan StreamEvent, 100)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "Error: panic recovered in OpenAIAdapter stream: %v\n", r)
				eventChan <- StreamEvent{
					Type:  StreamErrorEvt,
					Error: &StreamError{SDKError: SDKError{Message: fmt.Sprintf("panic in stream processing: %v", r)}},
				}
			}
			close(eventChan)
		}()

		var acc openai.ChatCompletionAccumulator

		eventChan <- StreamEvent{Type: StreamStart}

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				eventChan <- StreamEvent{
					Type:  StreamTextDelta,
					Delta: chunk.Choices[0].Delta.Content,
				}
			}
		}

		if err := stream.Err(); err != nil {
			eventChan <- StreamEvent{
				Type:  StreamErrorEvt,
				Error: a.convertError(err),
			}
			return
		}

		eventChan <- StreamEvent{
			Type:     StreamFinish,
			Response: a.convertResponse(&acc.ChatCompletion),
		}
	}()

	return eventChan, nil
}

// convertRequest converts a unified Request to OpenAI ChatCompletionNewParams.
func (a *OpenAIAdapter) convertRequest(req Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = a.model
	}

	params := openai.ChatCompletionNewParams{
		Model: model,
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}
	params.MaxCompletionTokens = openai.Int(int64(maxTokens))

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	params.Messages = messages

	return params
}

// convertResponse converts an OpenAI ChatCompletion to a unified Response.
func (a *OpenAIAdapter) convertResponse(resp *openai.ChatCompletion) *Response {
	result := &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: a.Name(),
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}

	if len(resp.Choices) == 0 {
		result.FinishReason = FinishReason{Reason: FinishOther}
		return result
	}

	choice := resp.Choices[0]
	result.Text = choice.Message.Content

	switch choice.FinishReason {
	case "stop":
		result.FinishReason = FinishReason{Reason: FinishStop, Raw: choice.FinishReason}
	case "length":
		result.FinishReason = FinishReason{Reason: FinishLength, Raw: choice.FinishReason}
	case "content_filter":
		result.FinishReason = FinishReason{Reason: FinishContentFilter, Raw: choice.FinishReason}
	default:
		result.FinishReason = FinishReason{Reason: FinishOther, Raw: choice.FinishReason}
	}

	return result
}

// convertError maps SDK errors onto the unified error hierarchy. API errors
// carry a status code; everything else is treated as a network-level failure.
func (a *OpenAIAdapter) convertError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return ErrorFromStatusCode(apiErr.StatusCode, apiErr.Error(), a.Name(), "", nil, nil)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &NetworkError{SDKError: SDKError{Message: "openai request failed", Cause: err}}
}

// Compile-time interface assertion.
var _ ProviderAdapter = (*OpenAIAdapter)(nil)
