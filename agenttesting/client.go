// Package agenttesting provides deterministic test doubles for the
// llmclient.Client and tool.Tool contracts, shared across the module's
// test suites so each package doesn't hand-roll its own.
package agenttesting

import (
	"context"
	"fmt"
	"sync"

	"github.com/nrcarlson/mcpcore/conversation"
	"github.com/nrcarlson/mcpcore/llmclient"
)

// StreamScript describes one scripted Stream call: the chunks to emit in
// order, and optional hooks fired synchronously right after a given chunk
// index is sent — used to inject mid-stream side effects (cancellation,
// assertions) deterministically rather than via a sleep.
type StreamScript struct {
	ID         string
	Chunks     []string
	AfterChunk map[int]func()
	Err        error
}

// ScriptedClient is a queue-driven llmclient.Client: each Send/Stream call
// consumes the next scripted entry, in order. Calling past the end of a
// queue is a test bug, reported as an error rather than a panic so a
// failing assertion stays readable.
type ScriptedClient struct {
	mu sync.Mutex

	sendQueue   []llmclient.Response
	sendErrs    []error
	streamQueue []StreamScript

	cancelled []string
}

var _ llmclient.Client = (*ScriptedClient)(nil)

// NewScriptedClient builds an empty ScriptedClient; use QueueSend/QueueStream
// to script responses before driving it.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{}
}

// QueueSend appends a scripted unary response.
func (c *ScriptedClient) QueueSend(resp llmclient.Response) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendQueue = append(c.sendQueue, resp)
	return c
}

// QueueSendError appends a scripted unary error.
func (c *ScriptedClient) QueueSendError(err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErrs = append(c.sendErrs, err)
	return c
}

// QueueStream appends a scripted streamed response.
func (c *ScriptedClient) QueueStream(s StreamScript) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamQueue = append(c.streamQueue, s)
	return c
}

// Cancelled returns the request ids passed to Cancel, in call order.
func (c *ScriptedClient) Cancelled() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.cancelled))
	copy(out, c.cancelled)
	return out
}

func (c *ScriptedClient) Send(ctx context.Context, messages []conversation.Message) (llmclient.Response, error) {
	c.mu.Lock()
	if len(c.sendErrs) > 0 {
		err := c.sendErrs[0]
		c.sendErrs = c.sendErrs[1:]
		c.mu.Unlock()
		if err != nil {
			return llmclient.Response{}, err
		}
	} else {
		c.mu.Unlock()
	}

	c.mu.Lock()
	if len(c.sendQueue) == 0 {
		c.mu.Unlock()
		return llmclient.Response{}, fmt.Errorf("agenttesting: Send called with no scripted response left")
	}
	resp := c.sendQueue[0]
	c.sendQueue = c.sendQueue[1:]
	c.mu.Unlock()
	return resp, nil
}

func (c *ScriptedClient) Stream(ctx context.Context, messages []conversation.Message) (<-chan llmclient.Chunk, error) {
	c.mu.Lock()
	if len(c.streamQueue) == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("agenttesting: Stream called with no scripted response left")
	}
	script := c.streamQueue[0]
	c.streamQueue = c.streamQueue[1:]
	c.mu.Unlock()

	id := script.ID
	if id == "" {
		id = "stream-1"
	}

	out := make(chan llmclient.Chunk, 16)
	go func() {
		defer close(out)
		for i, chunk := range script.Chunks {
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- llmclient.Chunk{ID: id, Content: chunk}:
			case <-ctx.Done():
				return
			}
			if hook, ok := script.AfterChunk[i]; ok {
				hook()
			}
		}
		if ctx.Err() != nil {
			return
		}
		if script.Err != nil {
			select {
			case out <- llmclient.Chunk{ID: id, Err: script.Err, Done: true}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- llmclient.Chunk{ID: id, Done: true}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

func (c *ScriptedClient) Cancel(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, requestID)
}
