// Package journal implements an append-only, plain-text conversation log
// that subscribes to Model-channel bus events. It never feeds back into
// conversation.Context — it is a passive listener, not a participant in
// the turn state machine.
package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nrcarlson/mcpcore/bus"
	"github.com/nrcarlson/mcpcore/internal/logging"
)

var log = logging.For("journal")

// Writer appends "--- ROLE ---"-delimited plain text to an underlying
// io.Writer, one record per turn-relevant Model event. Safe for concurrent
// use; writes are serialized.
type Writer struct {
	mu  sync.Mutex
	out io.Writer

	pendingToolParams map[string]json.RawMessage

	streamBuf     strings.Builder
	sawLlmMessage bool
}

// New builds a Writer appending to out (typically an *os.File opened in
// append mode).
func New(out io.Writer) *Writer {
	return &Writer{out: out, pendingToolParams: make(map[string]json.RawMessage)}
}

// Wire subscribes the writer to b's Model channel. Call once at session
// wiring time, after the orchestrator's own handler is registered.
func (w *Writer) Wire(b *bus.Bus) {
	b.Model.RegisterHandler(w.handle)
}

func (w *Writer) handle(ev bus.ModelEvent) {
	switch ev.Kind {
	case bus.ProcessUserMessage:
		w.writeRecord("USER", ev.Text)
	case bus.LlmStreamChunk:
		w.mu.Lock()
		w.streamBuf.WriteString(ev.Text)
		w.mu.Unlock()
	case bus.LlmMessage:
		w.writeRecord("ASSISTANT", ev.Text)
		w.mu.Lock()
		w.sawLlmMessage = true
		w.mu.Unlock()
	case bus.LlmResponseComplete:
		w.flushStreamed()
	case bus.ToolRequest:
		w.mu.Lock()
		w.pendingToolParams[ev.CallID] = ev.Params
		w.mu.Unlock()
	case bus.ToolResultEvent:
		w.mu.Lock()
		params := w.pendingToolParams[ev.CallID]
		delete(w.pendingToolParams, ev.CallID)
		w.mu.Unlock()
		w.writeRecord("TOOL:"+ev.ToolID, formatToolRecord(params, ev.Result))
	}
}

// flushStreamed records a streamed answer once the turn completes, but only
// when no separate LlmMessage carried the same text — a streaming turn
// delivers its final answer solely via LlmStreamChunk events, so the
// journal must assemble it itself.
func (w *Writer) flushStreamed() {
	w.mu.Lock()
	text := w.streamBuf.String()
	already := w.sawLlmMessage
	w.streamBuf.Reset()
	w.sawLlmMessage = false
	w.mu.Unlock()

	if !already {
		w.writeRecord("ASSISTANT", text)
	}
}

func formatToolRecord(params, result json.RawMessage) string {
	if len(params) == 0 {
		params = []byte("{}")
	}
	if len(result) == 0 {
		result = []byte("{}")
	}
	return fmt.Sprintf("params: %s\nresult: %s", params, result)
}

func (w *Writer) writeRecord(role, text string) {
	if text == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.out, "--- %s ---\n%s\n\n", role, text); err != nil {
		log.Warn("journal write failed", "role", role, "err", err)
	}
}
