// Package jsonrpc extracts, validates, and filters JSON-RPC 2.0 tool-call
// envelopes embedded in free-form LLM text output.
package jsonrpc

import "encoding/json"

// Object is a parsed JSON-RPC 2.0 envelope. Fields mirror the wire shape;
// unused fields stay nil/empty depending on whether the object is a request
// or a response.
type Object struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  *Params         `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`

	// Raw is the exact source span this object was parsed from, kept so
	// callers (filter) can locate and replace it verbatim.
	Raw string `json:"-"`
}

// Params is the params payload of an "mcp.tool_call" request.
type Params struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

// ToolCallMethod is the only method name this package treats as a tool call.
const ToolCallMethod = "mcp.tool_call"

// IsToolCall reports whether o is a well-formed mcp.tool_call request.
func (o *Object) IsToolCall() bool {
	return o != nil && o.Method == ToolCallMethod && o.Params != nil && o.Params.Name != ""
}

// hasShape reports whether a decoded envelope satisfies the JSON-RPC 2.0
// shape rules used for extraction/validation: version "2.0", a present
// id, and exactly one of (method+params) / result / error.
func hasShape(o *Object) bool {
	if o == nil || o.Version != "2.0" {
		return false
	}
	if o.ID == nil {
		return false
	}

	hasResult := o.Result != nil
	hasError := o.Error != nil
	hasMethodParams := o.Method != "" && o.Params != nil

	n := 0
	for _, present := range []bool{hasMethodParams, hasResult, hasError} {
		if present {
			n++
		}
	}
	return n == 1
}
