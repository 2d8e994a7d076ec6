package conversation

import (
	"fmt"
	"sync"
)

// Context is an ordered, append-only sequence of Messages guarded for
// concurrent read/append. Only the orchestrator appends; everyone else
// (UI sinks, tests) gets read-only snapshots via Messages.
//
// Invariants enforced by Append:
//   - at most one system message, and if present it is always at index 0.
//   - a tool-role message may only be appended immediately after the
//     assistant message whose tool call it answers, or after another
//     tool-role message answering that same assistant message.
type Context struct {
	mu       sync.Mutex
	messages []Message
}

// NewContext creates an empty conversation context, optionally seeded with a
// system prompt.
func NewContext(systemPrompt string) *Context {
	c := &Context{}
	if systemPrompt != "" {
		c.messages = append(c.messages, Message{Role: SystemRole, Content: systemPrompt})
	}
	return c
}

// Append adds a message to the end of the context. It returns an error if
// appending would violate the role-ordering invariants instead of silently
// corrupting the sequence.
func (c *Context) Append(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.Role == SystemRole {
		if len(c.messages) != 0 {
			return fmt.Errorf("conversation: system message must be first, context already has %d messages", len(c.messages))
		}
	}

	if msg.Role == ToolRole {
		if len(c.messages) == 0 {
			return fmt.Errorf("conversation: tool message must follow an assistant message")
		}
		if last := c.messages[len(c.messages)-1].Role; last != AssistantRole && last != ToolRole {
			return fmt.Errorf("conversation: tool message must follow an assistant message or another tool message")
		}
	}

	c.messages = append(c.messages, msg)
	return nil
}

// AppendMany appends each message in order, stopping at the first invariant
// violation and returning how many messages were actually appended.
func (c *Context) AppendMany(msgs ...Message) (int, error) {
	for i, m := range msgs {
		if err := c.Append(m); err != nil {
			return i, err
		}
	}
	return len(msgs), nil
}

// Messages returns a defensive copy of the live sequence. This is the only
// way to read the context; it is what a test reconstructs against the
// no-mutation-after-return invariant.
func (c *Context) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages currently in the context.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// SystemPrompt returns the system message's content, or "" if none is set.
func (c *Context) SystemPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 || c.messages[0].Role != SystemRole {
		return ""
	}
	return c.messages[0].Content
}

// Roles returns the role sequence as a compact string, one letter per
// message (s/u/a/t), for cheap regex-style invariant checks in tests
// against the system? user (assistant tool+)* assistant role ordering.
func (c *Context) Roles() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]byte, len(c.messages))
	for i, m := range c.messages {
		switch m.Role {
		case SystemRole:
			out[i] = 's'
		case UserRole:
			out[i] = 'u'
		case AssistantRole:
			out[i] = 'a'
		case ToolRole:
			out[i] = 't'
		default:
			out[i] = '?'
		}
	}
	return string(out)
}
