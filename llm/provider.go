// ABOUTME: ProviderAdapter interface for the unified LLM client.
// ABOUTME: Adapters translate the unified Request/Response model to a concrete provider API.

package llm

import "context"

// ProviderAdapter is the interface that all provider adapters must implement.
// Adapters are registered on a Client under a provider name and receive
// requests routed by Request.Provider or the client default.
type ProviderAdapter interface {
	// Name returns the provider name this adapter serves.
	Name() string

	// Complete sends a request and returns the complete response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream sends a request and returns a channel of streaming events. The
	// channel is closed after the final event (StreamFinish or StreamErrorEvt).
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)

	// Close releases any resources held by the adapter.
	Close() error
}
