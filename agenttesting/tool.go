package agenttesting

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nrcarlson/mcpcore/schema"
	"github.com/nrcarlson/mcpcore/tool"
)

// ScriptedTool is a minimal tool.Tool whose Execute is a caller-supplied
// function, with call counting so duplicate-suppression and retry tests can
// assert exactly how many times the underlying operation actually ran.
type ScriptedTool struct {
	meta tool.Metadata
	fn   func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

	mu    sync.Mutex
	calls int
}

var _ tool.Tool = (*ScriptedTool)(nil)

// NewScriptedTool builds a tool registered under id whose Execute calls fn.
func NewScriptedTool(id string, fn func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)) *ScriptedTool {
	return &ScriptedTool{
		meta: tool.Metadata{ID: id, Name: id, Description: "scripted test tool"},
		fn:   fn,
	}
}

// WithSchema attaches an input schema, for tests exercising validation.
func (s *ScriptedTool) WithSchema(in *schema.JSON) *ScriptedTool {
	s.meta.InputSchema = in
	return s
}

func (s *ScriptedTool) Metadata() tool.Metadata { return s.meta }

func (s *ScriptedTool) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(ctx, params)
}

// CallCount reports how many times Execute actually ran.
func (s *ScriptedTool) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// EchoTool returns a ScriptedTool registered under id that echoes its
// params back as the output, unconditionally successful.
func EchoTool(id string) *ScriptedTool {
	return NewScriptedTool(id, func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		return params, nil
	})
}
