package mcp

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nrcarlson/mcpcore/tool"
)

// Registry holds a collection of tools that can be exposed via an MCP server.
// It is safe for concurrent use; tools can be registered while the server is running.
type Registry struct {
	mu          sync.Mutex
	tools       map[string]tool.Tool
	definitions map[string]ToolDefinition
	order       []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:       make(map[string]tool.Tool),
		definitions: make(map[string]ToolDefinition),
		order:       make([]string, 0),
	}
}

// Register adds a tool to the registry. The tool's Metadata supplies its
// id, description, and schemas. If a tool with the same id already exists,
// it is replaced. Returns an error if the tool is nil or has no input
// schema.
func (r *Registry) Register(t tool.Tool) error {
	if t == nil {
		return fmt.Errorf("register tool: nil tool")
	}

	definition, err := toolDefinition(t)
	if err != nil {
		return fmt.Errorf("register tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[definition.Name]; !exists {
		r.order = append(r.order, definition.Name)
	}

	r.tools[definition.Name] = t
	r.definitions[definition.Name] = definition
	return nil
}

// Get retrieves a tool by name. Returns the tool and true if found,
// or nil and false if no tool with that name is registered.
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the tool definitions for all registered tools
// in the order they were first registered. This is used by tools/list.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		if def, ok := r.definitions[name]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}

func toolDefinition(t tool.Tool) (ToolDefinition, error) {
	meta := t.Metadata()
	if meta.ID == "" {
		return ToolDefinition{}, fmt.Errorf("missing tool name")
	}
	if meta.InputSchema == nil {
		return ToolDefinition{}, fmt.Errorf("missing input schema for %q", meta.ID)
	}

	inputSchema, err := json.Marshal(meta.InputSchema)
	if err != nil {
		return ToolDefinition{}, fmt.Errorf("marshal input schema for %q: %w", meta.ID, err)
	}

	var outputSchema json.RawMessage
	if meta.OutputSchema != nil {
		outputSchema, err = json.Marshal(meta.OutputSchema)
		if err != nil {
			return ToolDefinition{}, fmt.Errorf("marshal output schema for %q: %w", meta.ID, err)
		}
	}

	return ToolDefinition{
		Name:         meta.ID,
		Description:  meta.Description,
		InputSchema:  inputSchema,
		OutputSchema: outputSchema,
	}, nil
}
