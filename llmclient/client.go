// Package llmclient defines the abstract contract the orchestrator
// drives: send, stream, cancel. It is intentionally transport-agnostic —
// the orchestrator never imports a provider SDK directly, only this
// contract.
package llmclient

import (
	"context"

	"github.com/nrcarlson/mcpcore/conversation"
)

// Response is a completed, non-streamed answer from the model.
type Response struct {
	ID      string
	Content string
}

// Chunk is one fragment of a streamed response. A stream for one turn
// shares one ID across all of its chunks; the final chunk has Done set.
type Chunk struct {
	ID      string
	Content string
	Done    bool
	Err     error
}

// Client is the contract the orchestrator consumes. A session holds exactly
// one Client instance; constructing a second one for streaming vs unary is
// the bug this interface is designed to make impossible.
//
// Send and Stream make exactly one model call each — any tool-calling loop
// lives in the orchestrator, not here. This is the key departure from a
// self-looping chat client: the orchestrator must observe every model
// response in order to extract tool calls, check the ledger, and decide
// whether to re-enter the model, none of which a client that loops
// internally would let it do.
type Client interface {
	// Send issues one unary request for the given conversation and returns
	// the complete response.
	Send(ctx context.Context, messages []conversation.Message) (Response, error)

	// Stream issues one streaming request. The returned channel is closed
	// after the chunk with Done=true (or an error chunk) is delivered.
	Stream(ctx context.Context, messages []conversation.Message) (<-chan Chunk, error)

	// Cancel best-effort cancels the request with the given id. Safe to
	// call when no request with that id is outstanding.
	Cancel(requestID string)
}
