// Package openai adapts the OpenAI Chat Completions API to the
// llmclient.Client contract: one call per invocation, no internal
// tool-calling loop. The Responses API is not used.
package openai

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nrcarlson/mcpcore/conversation"
	"github.com/nrcarlson/mcpcore/internal/logging"
	"github.com/nrcarlson/mcpcore/llmclient"
)

var log = logging.For("llmclient.openai")

// OpenAIURL and OllamaURL are the default base URLs for the two backends
// this adapter is known to work against.
const (
	OpenAIURL = "https://api.openai.com/v1"
	OllamaURL = "http://localhost:11434/v1"
)

// Config configures a Client.
type Config struct {
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     float64
	MaxTokens       int
	UseResponsesAPI bool
}

// Client implements llmclient.Client against OpenAI's Chat Completions API.
// UseResponsesAPI is accepted for parity with the provider-detection logic
// in llmclient.NewClient (gpt-5/o-series route there) but the Chat
// Completions surface below is sufficient for the single-call text-only
// contract this system needs; a Responses-specific code path is not worth
// the duplication it would add.
type Client struct {
	sdk       openai.Client
	model     string
	temp      float64
	maxTokens int64

	mu      sync.Mutex
	pending map[string]context.CancelFunc
}

var _ llmclient.Client = (*Client)(nil)

// New builds a Client. It does not make any network calls.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = OpenAIURL
	}

	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &Client{
		sdk:       openai.NewClient(opts...),
		model:     cfg.Model,
		temp:      cfg.Temperature,
		maxTokens: int64(cfg.MaxTokens),
		pending:   make(map[string]context.CancelFunc),
	}
}

func (c *Client) params(messages []conversation.Message) openai.ChatCompletionNewParams {
	var sdkMessages []openai.ChatCompletionMessageParamUnion
	for _, m := range messages {
		switch m.Role {
		case conversation.SystemRole:
			sdkMessages = append(sdkMessages, openai.SystemMessage(m.Content))
		case conversation.AssistantRole:
			sdkMessages = append(sdkMessages, openai.AssistantMessage(m.Content))
		default:
			sdkMessages = append(sdkMessages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: sdkMessages,
	}
	if c.temp > 0 {
		params.Temperature = openai.Float(c.temp)
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxTokens)
	}
	return params
}

// Send issues one unary request and returns the full text response.
func (c *Client) Send(ctx context.Context, messages []conversation.Message) (llmclient.Response, error) {
	ctx, cancel := c.track(ctx, uuid.NewString())
	defer cancel()

	resp, err := c.sdk.Chat.Completions.New(ctx, c.params(messages))
	if err != nil {
		return llmclient.Response{}, fmt.Errorf("openai: send: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llmclient.Response{}, fmt.Errorf("openai: send: empty choices")
	}

	return llmclient.Response{ID: resp.ID, Content: resp.Choices[0].Message.Content}, nil
}

// Stream issues one streaming request, emitting a Chunk per content delta.
func (c *Client) Stream(ctx context.Context, messages []conversation.Message) (<-chan llmclient.Chunk, error) {
	id := uuid.NewString()
	ctx, cancel := c.track(ctx, id)

	out := make(chan llmclient.Chunk, 16)

	go func() {
		defer cancel()
		defer close(out)

		stream := c.sdk.Chat.Completions.NewStreaming(ctx, c.params(messages))
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- llmclient.Chunk{ID: id, Content: delta}:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil {
			log.Warn("openai stream ended with error", "err", err)
			out <- llmclient.Chunk{ID: id, Done: true, Err: fmt.Errorf("openai: stream: %w", err)}
			return
		}

		out <- llmclient.Chunk{ID: id, Done: true}
	}()

	return out, nil
}

// Cancel best-effort cancels the request with the given id.
func (c *Client) Cancel(requestID string) {
	c.mu.Lock()
	cancel, ok := c.pending[requestID]
	delete(c.pending, requestID)
	c.mu.Unlock()

	if ok {
		cancel()
	}
}

func (c *Client) track(parent context.Context, id string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.pending[id] = cancel
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		cancel()
	}
}
