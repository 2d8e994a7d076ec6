package main

import (
	"fmt"
	"io"
	"time"

	"github.com/nrcarlson/mcpcore/bus"
)

// printer renders Model-channel bus events to a terminal as they arrive:
// streamed text inline, tool calls and results bracketed, and tracks when
// a turn's LlmResponseComplete event has been observed.
type printer struct {
	out  io.Writer
	done chan struct{}
}

func newPrinter(out io.Writer, cfg *Config) *printer {
	return &printer{out: out, done: make(chan struct{}, 1)}
}

func (p *printer) handle(ev bus.ModelEvent) {
	switch ev.Kind {
	case bus.LlmStreamChunk:
		fmt.Fprint(p.out, ev.Text)
	case bus.LlmMessage:
		fmt.Fprint(p.out, ev.Text)
	case bus.ToolRequest:
		fmt.Fprintf(p.out, "\n[tool] %s %s\n", ev.ToolID, ev.Params)
	case bus.ToolResultEvent:
		fmt.Fprintf(p.out, "[tool result] %s %s\n", ev.ToolID, ev.Result)
	case bus.LlmResponseComplete:
		select {
		case p.done <- struct{}{}:
		default:
		}
	}
}

// waitIdle blocks until the printer observes the LlmResponseComplete event
// for the turn ProcessUserMessage just finished, or a timeout elapses.
// Dispatch to handlers happens on the bus's own goroutine, so
// ProcessUserMessage returning does not itself guarantee every event has
// been rendered yet.
func (p *printer) waitIdle() {
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
	}
}
