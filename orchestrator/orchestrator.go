// Package orchestrator implements the session orchestrator: the turn state
// machine that drives one user message through "model call -> extract tool
// intents -> execute tools -> append results -> re-enter model" until the
// model produces a terminal answer.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nrcarlson/mcpcore/bus"
	"github.com/nrcarlson/mcpcore/conversation"
	"github.com/nrcarlson/mcpcore/internal/logging"
	"github.com/nrcarlson/mcpcore/jsonrpc"
	"github.com/nrcarlson/mcpcore/llmclient"
	"github.com/nrcarlson/mcpcore/tool"
)

var log = logging.For("orchestrator")

// DefaultMaxModelCallsPerTurn bounds how many LLM round trips a single turn
// may spend before the orchestrator gives up and returns to Idle.
const DefaultMaxModelCallsPerTurn = 20

// DefaultMaxProtocolRetries bounds how many times the orchestrator will
// re-prompt the model with a corrective message after a malformed response
// before giving up and showing the raw text as a best-effort answer.
const DefaultMaxProtocolRetries = 1

// DuplicateCallError is the error string synthesized into a tool result
// when a call's fingerprint is already present in the turn's ledger.
const DuplicateCallError = "duplicate call"

var (
	// ErrTurnInProgress is returned by ProcessUserMessage when the
	// orchestrator is not Idle.
	ErrTurnInProgress = errors.New("orchestrator: turn already in progress")
	// ErrCancelled is returned by ProcessUserMessage when the turn ended
	// because of a RequestCancellation.
	ErrCancelled = errors.New("orchestrator: turn cancelled")
	// ErrBudgetExceeded is returned when a turn spends its entire
	// per-turn model-call budget without reaching a terminal answer.
	ErrBudgetExceeded = errors.New("orchestrator: model call budget exceeded")
)

// Config controls per-session orchestrator behavior.
type Config struct {
	// Streaming selects Stream over Send for every model call this
	// session makes.
	Streaming bool
	// MaxModelCallsPerTurn bounds model round trips per turn. Zero means
	// DefaultMaxModelCallsPerTurn.
	MaxModelCallsPerTurn int
	// MaxProtocolRetries bounds corrective re-prompts per turn. Zero
	// means DefaultMaxProtocolRetries.
	MaxProtocolRetries int
	// SystemPrompt is the base persona/instructions text. The tool
	// catalog is appended to it.
	SystemPrompt string
}

func (c Config) withDefaults() Config {
	if c.MaxModelCallsPerTurn <= 0 {
		c.MaxModelCallsPerTurn = DefaultMaxModelCallsPerTurn
	}
	if c.MaxProtocolRetries <= 0 {
		c.MaxProtocolRetries = DefaultMaxProtocolRetries
	}
	return c
}

// Orchestrator drives one user turn at a time to a terminal assistant
// answer. It owns the conversation context, the active-call ledger, and
// the turn state machine; everything else is reached through the bus or
// through the llmclient.Client/tool.Executor contracts, never directly.
type Orchestrator struct {
	cfg      Config
	llm      llmclient.Client
	executor *tool.Executor
	model    bus.Sender[bus.ModelEvent]
	api      bus.Sender[bus.APIEvent]

	mu        sync.Mutex
	context   *conversation.Context
	ledger    *Ledger
	state     State
	cancel    context.CancelFunc
	requestID string

	queue chan string
	once  sync.Once
}

// NewOrchestrator builds an orchestrator around a single LLM client
// instance and a tool registry, publishing its lifecycle events on b.
// Exactly one Client is ever held; callers must not construct a second
// one for streaming vs unary.
func NewOrchestrator(llm llmclient.Client, registry *tool.Registry, b *bus.Bus, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()

	systemPrompt := cfg.SystemPrompt
	if catalog := registry.Documentation(); catalog != "" {
		if systemPrompt != "" {
			systemPrompt += "\n\n"
		}
		systemPrompt += catalog
	}

	return &Orchestrator{
		cfg:      cfg,
		llm:      llm,
		executor: tool.NewExecutor(registry, b.Model.Sender()),
		model:    b.Model.Sender(),
		api:      b.API.Sender(),
		context:  conversation.NewContext(systemPrompt),
		ledger:   NewLedger(),
		state:    Idle,
		queue:    make(chan string, 1),
	}
}

// State reports the orchestrator's current state. Safe for concurrent use;
// intended for tests and diagnostics, not for driving control flow.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Context returns the live conversation context.
func (o *Orchestrator) Context() *conversation.Context {
	return o.context
}

// Cancel requests cancellation of whatever turn is currently in flight. A
// no-op if the orchestrator is Idle.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wire registers the orchestrator as the Model channel's ProcessUserMessage
// and ResetContext handler, and as the UI channel's cancellation handler.
// ProcessUserMessage is not run inline on the bus's dispatch goroutine:
// Channel.dispatch blocks on every handler of event N before dispatching
// event N+1, and a multi-round turn publishes its own events (LlmStreamChunk,
// ToolRequest, ...) back onto that same Model channel. Running the turn
// inline would therefore deadlock the channel against itself the moment a
// turn tried to publish mid-flight. Instead the handler only enqueues; a
// single background worker drains the queue, preserving "one turn at a
// time" without blocking the bus.
func (o *Orchestrator) Wire(b *bus.Bus) {
	o.once.Do(func() {
		go o.runQueue()
	})

	b.Model.RegisterHandler(func(ev bus.ModelEvent) {
		switch ev.Kind {
		case bus.ProcessUserMessage:
			select {
			case o.queue <- ev.Text:
			default:
				log.Warn("orchestrator queue full, dropping turn request")
			}
		case bus.ResetContext:
			o.reset()
		}
	})

	b.UI.RegisterHandler(func(ev bus.UIEvent) {
		if ev.Kind == bus.RequestCancellation {
			o.Cancel()
		}
	})
}

func (o *Orchestrator) runQueue() {
	for text := range o.queue {
		if err := o.ProcessUserMessage(context.Background(), text); err != nil {
			log.Warn("turn ended with error", "err", err)
		}
	}
}

func (o *Orchestrator) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Idle {
		return
	}
	o.context = conversation.NewContext(o.context.SystemPrompt())
	o.ledger.Clear()
}

// ProcessUserMessage drives one complete turn synchronously: it returns
// once the turn reaches Idle, Cancelled, or Error. This is the entry point
// tests use for deterministic, blocking turn execution; Wire's bus handler
// calls it from the background worker instead of calling it directly.
func (o *Orchestrator) ProcessUserMessage(ctx context.Context, text string) error {
	o.mu.Lock()
	if o.state != Idle {
		o.mu.Unlock()
		return ErrTurnInProgress
	}
	turnCtx, cancel := context.WithCancel(ctx)
	o.state = AwaitingModel
	o.cancel = cancel
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.state = Idle
		o.cancel = nil
		o.requestID = ""
		o.mu.Unlock()
		cancel()
		o.ledger.Clear()
	}()

	o.model.Publish(bus.ModelEvent{Kind: bus.ProcessUserMessage, Text: text})

	if err := o.context.Append(conversation.Message{Role: conversation.UserRole, Content: text}); err != nil {
		return o.fail(fmt.Errorf("append user message: %w", err))
	}

	protocolRetries := 0
	var corrective string

	for callCount := 0; callCount < o.cfg.MaxModelCallsPerTurn; callCount++ {
		if turnCtx.Err() != nil {
			return o.cancelTurn()
		}

		o.setState(AwaitingModel)

		raw, err := o.callModel(turnCtx, corrective)
		corrective = ""
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return o.cancelTurn()
			}
			return o.fail(fmt.Errorf("model call: %w", err))
		}

		calls := extractToolCalls(raw)

		if len(calls) > 0 {
			if err := o.context.Append(conversation.Message{
				Role:      conversation.AssistantRole,
				Content:   jsonrpc.Filter(raw),
				ToolCalls: calls,
			}); err != nil {
				return o.fail(fmt.Errorf("append assistant message: %w", err))
			}

			o.setState(ExecutingTools)
			results := o.dispatchToolCalls(turnCtx, calls)
			for _, r := range results {
				payload, _ := json.Marshal(r)
				if err := o.context.Append(conversation.Message{
					Role:       conversation.ToolRole,
					Content:    string(payload),
					ToolCallID: r.CallID,
				}); err != nil {
					return o.fail(fmt.Errorf("append tool result: %w", err))
				}
			}
			continue
		}

		done, retry, next, err := o.finalizeNoCalls(raw, &protocolRetries)
		if err != nil {
			return o.fail(err)
		}
		if retry {
			// The malformed draft itself is never appended to the context:
			// only the corrective text travels to the next call (as a
			// transient addendum, not a persisted message), so a retried
			// turn still ends with exactly one assistant message and
			// Roles() keeps matching system?-user-(assistant-tool+)*-assistant.
			corrective = next
			continue
		}
		if done {
			if err := o.context.Append(conversation.Message{
				Role:    conversation.AssistantRole,
				Content: jsonrpc.Filter(raw),
			}); err != nil {
				return o.fail(fmt.Errorf("append assistant message: %w", err))
			}
			return nil
		}
	}

	o.model.Publish(bus.ModelEvent{Kind: bus.LlmMessage, Text: "Turn aborted: exceeded the per-turn model call budget without a final answer."})
	o.model.Publish(bus.ModelEvent{Kind: bus.LlmResponseComplete})
	return ErrBudgetExceeded
}

// finalizeNoCalls handles the branch where a model response contained no
// tool calls: it decides whether to unwrap a JSON-RPC result (Open
// Question (a): "unwrap only when the whole response is a single valid
// JSON-RPC result object"), retry with a corrective prompt, or show the
// raw text as the turn's final answer. done is true when the turn is over;
// retry is true when the caller should loop back to another model call, in
// which case corrective is the text to pass to the next callModel call.
func (o *Orchestrator) finalizeNoCalls(raw string, protocolRetries *int) (done bool, retry bool, corrective string, err error) {
	// In streaming mode the final text has already reached the UI as a
	// sequence of LlmStreamChunk events: streaming sends those events
	// live, unary sends a single LlmMessage. The branches below only
	// publish LlmMessage for unary turns; both
	// modes still end with exactly one LlmResponseComplete.
	if !strings.Contains(raw, "{") {
		// Plain prose, no JSON-RPC attempted at all: the ordinary case for
		// a final chat answer. No protocol retry applies here.
		if !o.cfg.Streaming {
			o.model.Publish(bus.ModelEvent{Kind: bus.LlmMessage, Text: strings.TrimSpace(raw)})
		}
		o.model.Publish(bus.ModelEvent{Kind: bus.LlmResponseComplete})
		return true, false, "", nil
	}

	verdict := jsonrpc.Validate(raw)

	if verdict.Kind == jsonrpc.Valid {
		if !o.cfg.Streaming {
			text := jsonrpc.Filter(raw)
			if verdict.JSON.Result != nil {
				var unwrapped string
				if err := json.Unmarshal(verdict.JSON.Result, &unwrapped); err == nil {
					text = unwrapped
				}
			}
			o.model.Publish(bus.ModelEvent{Kind: bus.LlmMessage, Text: text})
		}
		o.model.Publish(bus.ModelEvent{Kind: bus.LlmResponseComplete})
		return true, false, "", nil
	}

	// The response contains a brace but failed the strict whole-response
	// shape check: a genuine protocol error. Retry with a corrective
	// prompt up to the configured bound, then fall back to
	// showing the raw (filtered) text rather than failing the turn.
	if *protocolRetries < o.cfg.MaxProtocolRetries {
		*protocolRetries++
		// Passed to the next callModel call as a transient addendum, never
		// appended to the context: persisting it as a second UserRole
		// message would put two u's back to back in Roles(), which the
		// system?-user-(assistant-tool+)*-assistant ordering can't express.
		return false, true, jsonrpc.CorrectivePrompt(verdict), nil
	}

	if !o.cfg.Streaming {
		o.model.Publish(bus.ModelEvent{Kind: bus.LlmMessage, Text: jsonrpc.Filter(raw)})
	}
	o.model.Publish(bus.ModelEvent{Kind: bus.LlmResponseComplete})
	return true, false, "", nil
}

// extractToolCalls pulls tool-call envelopes out of raw model output and
// converts them into conversation.ToolCall values, preserving textual
// order.
func extractToolCalls(raw string) []conversation.ToolCall {
	objs := jsonrpc.Extract(raw)
	var calls []conversation.ToolCall
	for _, obj := range objs {
		if !obj.IsToolCall() {
			continue
		}
		calls = append(calls, conversation.ToolCall{
			ID:         idString(obj.ID),
			ToolID:     obj.Params.Name,
			Parameters: obj.Params.Parameters,
		})
	}
	return calls
}

// dispatchToolCalls runs every non-duplicate call concurrently and returns
// results in the same order the calls appeared in, regardless of
// completion order.
func (o *Orchestrator) dispatchToolCalls(ctx context.Context, calls []conversation.ToolCall) []tool.Result {
	results := make([]tool.Result, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		fingerprint := Fingerprint(call.ToolID, call.Parameters)
		if !o.ledger.CheckAndAdd(fingerprint) {
			results[i] = tool.Result{ToolID: call.ToolID, CallID: call.ID, Status: tool.Failure, Error: DuplicateCallError}
			o.model.Publish(bus.ModelEvent{Kind: bus.ToolRequest, ToolID: call.ToolID, CallID: call.ID, Params: call.Parameters})
			payload, _ := json.Marshal(results[i])
			o.model.Publish(bus.ModelEvent{Kind: bus.ToolResultEvent, ToolID: call.ToolID, CallID: call.ID, Result: payload})
			continue
		}

		wg.Add(1)
		go func(i int, call conversation.ToolCall) {
			defer wg.Done()
			results[i] = o.executor.Execute(ctx, tool.Call{CallID: call.ID, ToolID: call.ToolID, Params: call.Parameters})
		}(i, call)
	}
	wg.Wait()

	return results
}

// callModel issues one model round trip, streaming or unary per config, and
// returns the assembled raw response text. corrective, when non-empty, is a
// protocol-error re-prompt appended to the outgoing messages for this call
// only; it is never recorded in o.context, so it never shows up in a later
// Roles() snapshot.
func (o *Orchestrator) callModel(ctx context.Context, corrective string) (string, error) {
	messages := o.context.Messages()
	if corrective != "" {
		messages = append(messages, conversation.Message{Role: conversation.UserRole, Content: corrective})
	}

	id := uuid.NewString()
	o.setRequestID(id)
	o.api.Publish(bus.APIEvent{Kind: bus.SendRequest, ID: id})

	if !o.cfg.Streaming {
		resp, err := o.llm.Send(ctx, messages)
		if err != nil {
			return "", err
		}
		o.setRequestID(resp.ID)
		return resp.Content, nil
	}

	chunks, err := o.llm.Stream(ctx, messages)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for {
		if ctx.Err() != nil {
			return buf.String(), ctx.Err()
		}
		select {
		case <-ctx.Done():
			return buf.String(), ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if ctx.Err() != nil {
					return buf.String(), ctx.Err()
				}
				return buf.String(), nil
			}
			o.setRequestID(chunk.ID)
			if chunk.Err != nil {
				return buf.String(), chunk.Err
			}
			if chunk.Content != "" {
				buf.WriteString(chunk.Content)
				o.model.Publish(bus.ModelEvent{Kind: bus.LlmStreamChunk, Text: jsonrpc.Filter(chunk.Content)})
			}
			if chunk.Done {
				return buf.String(), nil
			}
		}
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) setRequestID(id string) {
	if id == "" {
		return
	}
	o.mu.Lock()
	o.requestID = id
	o.mu.Unlock()
}

func (o *Orchestrator) cancelTurn() error {
	o.setState(Cancelled)

	o.mu.Lock()
	id := o.requestID
	o.mu.Unlock()
	if id != "" {
		o.api.Publish(bus.APIEvent{Kind: bus.CancelRequest, ID: id})
		o.llm.Cancel(id)
	}

	o.model.Publish(bus.ModelEvent{Kind: bus.LlmResponseComplete})
	return ErrCancelled
}

func (o *Orchestrator) fail(err error) error {
	o.setState(ErrorState)
	o.api.Publish(bus.APIEvent{Kind: bus.ErrorEvent, Message: err.Error()})
	o.model.Publish(bus.ModelEvent{Kind: bus.LlmMessage, Text: fmt.Sprintf("Something went wrong: %v", err)})
	o.model.Publish(bus.ModelEvent{Kind: bus.LlmResponseComplete})
	return err
}

// idString renders a JSON-RPC id field (string, number, or null) as a
// plain string for use as a conversation.ToolCall id.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
