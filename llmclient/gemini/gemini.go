// Package gemini adapts Google's genai SDK to the llmclient.Client
// contract: one call per invocation, no internal tool-calling loop.
package gemini

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/nrcarlson/mcpcore/conversation"
	"github.com/nrcarlson/mcpcore/internal/logging"
	"github.com/nrcarlson/mcpcore/llmclient"
)

var log = logging.For("llmclient.gemini")

// Config configures a Client.
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// Client implements llmclient.Client against the Gemini API.
type Client struct {
	sdk       *genai.Client
	model     string
	baseURL   string
	temp      float64
	maxTokens int32

	mu      sync.Mutex
	pending map[string]context.CancelFunc
}

var _ llmclient.Client = (*Client)(nil)

// New builds a Client, constructing the underlying genai client eagerly.
// It panics if that construction fails: an empty API key, or an error from
// genai.NewClient.
func New(cfg Config) *Client {
	c, err := newClient(cfg)
	if err != nil {
		// llmclient.NewClient rejects an empty API key before reaching
		// here, so on that path only a genai.NewClient error remains.
		panic(fmt.Sprintf("gemini: %v", err))
	}
	return c
}

func newClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key required")
	}

	genaiCfg := &genai.ClientConfig{APIKey: cfg.APIKey}
	if cfg.BaseURL != "" {
		genaiCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	sdk, err := genai.NewClient(context.Background(), genaiCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}

	return &Client{
		sdk:       sdk,
		model:     cfg.Model,
		baseURL:   cfg.BaseURL,
		temp:      cfg.Temperature,
		maxTokens: int32(cfg.MaxTokens),
		pending:   make(map[string]context.CancelFunc),
	}, nil
}

func (c *Client) contents(messages []conversation.Message) []*genai.Content {
	var contents []*genai.Content
	for _, m := range messages {
		role := "user"
		if m.Role == conversation.AssistantRole {
			role = "model"
		}
		// Gemini has no distinct system turn; a system message is sent as
		// the first user-role content, ahead of the rest of the history.
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return contents
}

func (c *Client) config() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if c.temp > 0 {
		t := float32(c.temp)
		cfg.Temperature = &t
	}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = c.maxTokens
	}
	return cfg
}

// Send issues one unary request and returns the full text response.
func (c *Client) Send(ctx context.Context, messages []conversation.Message) (llmclient.Response, error) {
	ctx, cancel := c.track(ctx, uuid.NewString())
	defer cancel()

	resp, err := c.sdk.Models.GenerateContent(ctx, c.model, c.contents(messages), c.config())
	if err != nil {
		return llmclient.Response{}, fmt.Errorf("gemini: send: %w", err)
	}

	return llmclient.Response{ID: uuid.NewString(), Content: resp.Text()}, nil
}

// Stream issues one streaming request, emitting a Chunk per text fragment.
func (c *Client) Stream(ctx context.Context, messages []conversation.Message) (<-chan llmclient.Chunk, error) {
	id := uuid.NewString()
	ctx, cancel := c.track(ctx, id)

	out := make(chan llmclient.Chunk, 16)

	go func() {
		defer cancel()
		defer close(out)

		stream := c.sdk.Models.GenerateContentStream(ctx, c.model, c.contents(messages), c.config())
		for chunk, err := range stream {
			if err != nil {
				log.Warn("gemini stream ended with error", "err", err)
				out <- llmclient.Chunk{ID: id, Done: true, Err: fmt.Errorf("gemini: stream: %w", err)}
				return
			}
			text := chunk.Text()
			if text == "" {
				continue
			}
			select {
			case out <- llmclient.Chunk{ID: id, Content: text}:
			case <-ctx.Done():
				return
			}
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
