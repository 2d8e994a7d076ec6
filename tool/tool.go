// Package tool defines the uniform contract every local capability (shell,
// filesystem, search, …) implements, plus the registry and executor that
// dispatch validated calls against it.
package tool

import (
	"context"
	"encoding/json"

	"github.com/nrcarlson/mcpcore/schema"
)

// Status is the terminal outcome of one tool invocation.
type Status string

const (
	Success Status = "success"
	Failure Status = "failure"
	Timeout Status = "timeout"
)

// Metadata describes a tool for dispatch, documentation generation, and
// input validation.
type Metadata struct {
	ID          string
	Name        string
	Description string
	Category    string
	InputSchema  *schema.JSON
	OutputSchema *schema.JSON
}

// Call is a request to invoke a tool, as extracted from the model's output.
type Call struct {
	CallID string
	ToolID string
	Params json.RawMessage
}

// Result is what a tool invocation produced, wrapped uniformly regardless
// of whether the tool itself failed, returned an application-level error,
// or timed out.
type Result struct {
	ToolID string          `json:"tool_id"`
	CallID string          `json:"call_id"`
	Status Status          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Tool is the contract every capability implements. Execute may block for
// the duration of the underlying operation (process exec, file I/O, network
// call); the executor is responsible for imposing a timeout around it.
// Tools own their own input validation beyond schema conformance, any
// security policy (path/command allowlists), and truncation of oversize
// output — none of that is the registry's or executor's concern.
type Tool interface {
	Metadata() Metadata
	Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error)
}
