package mcp

import (
	"context"
	"encoding/json"

	"github.com/nrcarlson/mcpcore/schema"
	"github.com/nrcarlson/mcpcore/tool"
)

// stubTool is a test double implementing tool.Tool. schema is a legacy
// fixture-format JSON document (name/description/inputSchema/outputSchema)
// that Metadata parses on each call, so existing test fixtures didn't need
// reshaping into Go struct literals.
type stubTool struct {
	name        string
	description string
	schema      string
	result      string
	calledWith  *string
}

func (s *stubTool) Metadata() tool.Metadata {
	var parsed struct {
		Name         string          `json:"name"`
		Description  string          `json:"description"`
		InputSchema  json.RawMessage `json:"inputSchema"`
		OutputSchema json.RawMessage `json:"outputSchema"`
	}
	_ = json.Unmarshal([]byte(s.schema), &parsed)

	meta := tool.Metadata{ID: parsed.Name, Description: parsed.Description}
	if len(parsed.InputSchema) > 0 {
		var in schema.JSON
		if json.Unmarshal(parsed.InputSchema, &in) == nil {
			meta.InputSchema = &in
		}
	}
	if len(parsed.OutputSchema) > 0 {
		var out schema.JSON
		if json.Unmarshal(parsed.OutputSchema, &out) == nil {
			meta.OutputSchema = &out
		}
	}
	return meta
}

func (s *stubTool) Execute(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	if s.calledWith != nil {
		*s.calledWith = string(params)
	}
	return json.RawMessage(s.result), nil
}

var _ tool.Tool = (*stubTool)(nil)

// panicTool panics when executed, for testing the server's panic recovery.
type panicTool struct{}

func (panicTool) Metadata() tool.Metadata {
	return tool.Metadata{
		ID:          "PanicTool",
		Description: "A tool that panics for testing",
		InputSchema: &schema.JSON{Type: schema.Object, Properties: map[string]*schema.JSON{}},
	}
}

func (panicTool) Execute(context.Context, json.RawMessage) (json.RawMessage, error) {
	panic("intentional panic for testing")
}

var _ tool.Tool = (*panicTool)(nil)
