// Package claude adapts the Anthropic Messages API to the llmclient.Client
// contract: a single unary or streaming call per invocation, with no
// internal tool-calling loop. Tool calls in this system travel as
// JSON-RPC text embedded in the assistant's prose, not as native
// "tool_use" content blocks, so messages are sent as plain text turns.
package claude

import (
	"context"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/nrcarlson/mcpcore/conversation"
	"github.com/nrcarlson/mcpcore/internal/logging"
	"github.com/nrcarlson/mcpcore/llmclient"
)

var log = logging.For("llmclient.claude")

// AnthropicURL is the default Anthropic API base URL.
const AnthropicURL = "https://api.anthropic.com/v1"

// Config configures a Client.
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// Client implements llmclient.Client against the Anthropic Messages API.
type Client struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
	temp      float64

	mu      sync.Mutex
	pending map[string]context.CancelFunc
}

var _ llmclient.Client = (*Client)(nil)

// New builds a Client. It does not make any network calls.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = AnthropicURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
	}

	return &Client{
		sdk:       anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(maxTokens),
		temp:      cfg.Temperature,
		pending:   make(map[string]context.CancelFunc),
	}
}

func (c *Client) params(messages []conversation.Message) anthropic.MessageNewParams {
	var system string
	var sdkMessages []anthropic.MessageParam

	for _, m := range messages {
		switch m.Role {
		case conversation.SystemRole:
			system = m.Content
		case conversation.UserRole:
			sdkMessages = append(sdkMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case conversation.AssistantRole:
			sdkMessages = append(sdkMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case conversation.ToolRole:
			// Tool results are plain JSON text turns from the model's point
			// of view, attributed to the user, since no native tool_use
			// block started this exchange.
			sdkMessages = append(sdkMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  sdkMessages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if c.temp > 0 {
		params.Temperature = anthropic.Float(c.temp)
	}
	return params
}

// Send issues one unary request and returns the full text response.
func (c *Client) Send(ctx context.Context, messages []conversation.Message) (llmclient.Response, error) {
	ctx, cancel := c.track(ctx, uuid.NewString())
	defer cancel()

	msg, err := c.sdk.Messages.New(ctx, c.params(messages))
	if err != nil {
		return llmclient.Response{}, fmt.Errorf("claude: send: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return llmclient.Response{ID: msg.ID, Content: text}, nil
}

// Stream issues one streaming request, emitting a Chunk per text delta.
func (c *Client) Stream(ctx context.Context, messages []conversation.Message) (<-chan llmclient.Chunk, error) {
	id := uuid.NewString()
	ctx, cancel := c.track(ctx, id)

	out := make(chan llmclient.Chunk, 16)

	go func() {
		defer cancel()
		defer close(out)

		stream := c.sdk.Messages.NewStreaming(ctx, c.params(messages))
		for stream.Next() {
			event := stream.Current()
			if event.Type != "content_block_delta" {
				continue
			}
			delta := event.Delta.Text
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
			log.Warn("claude stream ended with error", "err", err)
			out <- llmclient.Chunk{ID: id, Done: true, Err: fmt.Errorf("claude: stream: %w", err)}
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
