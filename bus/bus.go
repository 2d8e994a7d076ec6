// Package bus implements the three-channel typed event fabric that is the
// only legal inter-subsystem communication path: UI, Model, and API
// channels, each with independent handler registration and bounded
// buffering.
package bus

import "github.com/nrcarlson/mcpcore/internal/logging"

var log = logging.For("bus")

// Bus owns the three logical channels. Construct one per session.
type Bus struct {
	UI    *Channel[UIEvent]
	Model *Channel[ModelEvent]
	API   *Channel[APIEvent]
}

// New creates a bus with the default buffer size on every channel.
func New() *Bus {
	return NewWithBuffer(DefaultBufferSize)
}

// NewWithBuffer creates a bus whose channels all share the given buffer size.
func NewWithBuffer(bufferSize int) *Bus {
	return &Bus{
		UI:    NewChannel[UIEvent]("ui", bufferSize),
		Model: NewChannel[ModelEvent]("model", bufferSize),
		API:   NewChannel[APIEvent]("api", bufferSize),
	}
}

// StartDistribution starts all three channels' event loops. Idempotent per
// channel; safe to call once at wiring time.
func (b *Bus) StartDistribution() {
	b.UI.StartDistribution()
	b.Model.StartDistribution()
	b.API.StartDistribution()
	log.Info("event distribution started")
}

// Shutdown stops all three channels. In-flight handlers finish; anything
// still queued is dropped.
func (b *Bus) Shutdown() {
	b.UI.Shutdown()
	b.Model.Shutdown()
	b.API.Shutdown()
}
