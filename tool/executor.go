package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nrcarlson/mcpcore/bus"
	"github.com/nrcarlson/mcpcore/internal/logging"
)

var log = logging.For("tool")

// DefaultTimeout bounds a single tool invocation when the caller does not
// override it.
const DefaultTimeout = 30 * time.Second

// Executor dispatches a validated Call to the registry and shapes the
// Result, emitting ToolRequest/ToolResult lifecycle events on the Model
// channel. It never lets a tool failure propagate as a Go
// error: not-found, schema mismatch, panic, and timeout are all turned into
// Result{Status: Failure}.
type Executor struct {
	registry *Registry
	model    bus.Sender[bus.ModelEvent]
	timeout  time.Duration
}

// NewExecutor builds an executor bound to a registry and the Model channel
// it reports lifecycle events on.
func NewExecutor(registry *Registry, model bus.Sender[bus.ModelEvent]) *Executor {
	return &Executor{registry: registry, model: model, timeout: DefaultTimeout}
}

// WithTimeout overrides the per-call timeout.
func (e *Executor) WithTimeout(d time.Duration) *Executor {
	e.timeout = d
	return e
}

// Execute looks up the tool, validates params against its input schema,
// invokes it under a timeout with panic recovery, and returns a Result that
// is always populated — callers never need a second error path.
func (e *Executor) Execute(ctx context.Context, call Call) Result {
	e.model.Publish(bus.ModelEvent{
		Kind:   bus.ToolRequest,
		ToolID: call.ToolID,
		CallID: call.CallID,
		Params: call.Params,
	})

	result := e.execute(ctx, call)

	resultJSON, _ := json.Marshal(result)
	e.model.Publish(bus.ModelEvent{
		Kind:   bus.ToolResultEvent,
		ToolID: call.ToolID,
		CallID: call.CallID,
		Result: resultJSON,
	})

	return result
}

func (e *Executor) execute(ctx context.Context, call Call) Result {
	t, err := e.registry.Lookup(call.ToolID)
	if err != nil {
		log.Warn("tool not found", "tool_id", call.ToolID, "call_id", call.CallID)
		return failure(call, fmt.Sprintf("tool not found: %s", call.ToolID))
	}

	if err := validateParams(t.Metadata(), call.Params); err != nil {
		log.Warn("tool params failed schema validation", "tool_id", call.ToolID, "err", err)
		return Result{ToolID: call.ToolID, CallID: call.CallID, Status: Failure, Error: err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		output json.RawMessage
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		out, err := t.Execute(callCtx, call.Params)
		done <- outcome{output: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return Result{ToolID: call.ToolID, CallID: call.CallID, Status: Failure, Error: o.err.Error()}
		}
		return Result{ToolID: call.ToolID, CallID: call.CallID, Status: Success, Output: o.output}
	case <-callCtx.Done():
		log.Warn("tool call timed out", "tool_id", call.ToolID, "call_id", call.CallID)
		return Result{ToolID: call.ToolID, CallID: call.CallID, Status: Timeout, Error: "tool call timed out"}
	}
}

func failure(call Call, msg string) Result {
	return Result{ToolID: call.ToolID, CallID: call.CallID, Status: Failure, Error: msg}
}

// validateParams checks call params against the tool's input schema, when
// one is declared. A tool with no declared schema accepts any JSON object.
func validateParams(m Metadata, params json.RawMessage) error {
	if m.InputSchema == nil {
		return nil
	}

	schemaBytes, err := json.Marshal(m.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	resourceName := m.ID + ".schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var data interface{}
	if len(params) == 0 {
		params = []byte("{}")
	}
	if err := json.Unmarshal(params, &data); err != nil {
		return fmt.Errorf("params are not valid JSON: %w", err)
	}

	if err := compiled.Validate(data); err != nil {
		return fmt.Errorf("params failed schema validation: %w", err)
	}
	return nil
}
