package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestChannel_DeliversToRegisteredHandler(t *testing.T) {
	t.Parallel()

	ch := NewChannel[UIEvent]("test", 10)
	var got atomic.Value
	ch.RegisterHandler(func(ev UIEvent) {
		got.Store(ev.Text)
	})
	ch.StartDistribution()
	defer ch.Shutdown()

	require.NoError(t, ch.Publish(UIEvent{Kind: UserInput, Text: "hello"}))

	waitFor(t, time.Second, func() bool {
		v, _ := got.Load().(string)
		return v == "hello"
	})
}

func TestChannel_FanOutToAllHandlers(t *testing.T) {
	t.Parallel()

	ch := NewChannel[ModelEvent]("test", 10)
	var count int32
	for i := 0; i < 5; i++ {
		ch.RegisterHandler(func(ModelEvent) {
			atomic.AddInt32(&count, 1)
		})
	}
	ch.StartDistribution()
	defer ch.Shutdown()

	require.NoError(t, ch.Publish(ModelEvent{Kind: LlmMessage, Text: "x"}))

	waitFor(t, time.Second, func() bool {
		return atomic.LoadInt32(&count) == 5
	})
}

func TestChannel_SerialDispatchPreservesPerHandlerOrder(t *testing.T) {
	t.Parallel()

	ch := NewChannel[ModelEvent]("test", 100)
	var mu sync.Mutex
	var seen []string
	ch.RegisterHandler(func(ev ModelEvent) {
		time.Sleep(time.Millisecond) // slow handler, to prove ordering isn't accidental
		mu.Lock()
		seen = append(seen, ev.Text)
		mu.Unlock()
	})
	ch.StartDistribution()
	defer ch.Shutdown()

	for i := 0; i < 10; i++ {
		require.NoError(t, ch.Publish(ModelEvent{Kind: LlmStreamChunk, Text: string(rune('a' + i))}))
	}

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 10
	})

	mu.Lock()
	defer mu.Unlock()
	for i, s := range seen {
		assert.Equal(t, string(rune('a'+i)), s)
	}
}

func TestChannel_HandlerPanicDoesNotCrashBusOrSiblings(t *testing.T) {
	t.Parallel()

	ch := NewChannel[UIEvent]("test", 10)
	var siblingRan atomic.Bool
	ch.RegisterHandler(func(UIEvent) {
		panic("boom")
	})
	ch.RegisterHandler(func(UIEvent) {
		siblingRan.Store(true)
	})
	ch.StartDistribution()
	defer ch.Shutdown()

	require.NoError(t, ch.Publish(UIEvent{Kind: Quit}))

	waitFor(t, time.Second, func() bool {
		return siblingRan.Load()
	})
}

func TestChannel_StartDistributionIsIdempotent(t *testing.T) {
	t.Parallel()

	ch := NewChannel[UIEvent]("test", 10)
	ch.StartDistribution()
	ch.StartDistribution()
	ch.StartDistribution()
	defer ch.Shutdown()

	var got atomic.Value
	ch.RegisterHandler(func(ev UIEvent) { got.Store(ev.Text) })
	require.NoError(t, ch.Publish(UIEvent{Kind: UserInput, Text: "still works"}))

	waitFor(t, time.Second, func() bool {
		v, _ := got.Load().(string)
		return v == "still works"
	})
}

func TestChannel_ClearHandlersIsIdempotent(t *testing.T) {
	t.Parallel()

	ch := NewChannel[UIEvent]("test", 10)
	ch.RegisterHandler(func(UIEvent) {})
	assert.Equal(t, 1, ch.HandlerCount())

	ch.ClearHandlers()
	ch.ClearHandlers()
	assert.Equal(t, 0, ch.HandlerCount())
}

func TestChannel_HandlersRegisteredAfterStartOnlySeeFutureEvents(t *testing.T) {
	t.Parallel()

	ch := NewChannel[UIEvent]("test", 10)
	ch.StartDistribution()
	defer ch.Shutdown()

	require.NoError(t, ch.Publish(UIEvent{Kind: UserInput, Text: "before"}))
	time.Sleep(20 * time.Millisecond)

	var seen atomic.Value
	seen.Store("")
	ch.RegisterHandler(func(ev UIEvent) { seen.Store(ev.Text) })

	require.NoError(t, ch.Publish(UIEvent{Kind: UserInput, Text: "after"}))

	waitFor(t, time.Second, func() bool {
		return seen.Load().(string) == "after"
	})
}

func TestChannel_PublishReturnsErrFullWhenSaturated(t *testing.T) {
	t.Parallel()

	ch := NewChannel[UIEvent]("test", 1)
	ch.grace = 10 * time.Millisecond
	// No distribution started: nothing drains the buffer.
	require.NoError(t, ch.Publish(UIEvent{Kind: Quit}))

	err := ch.Publish(UIEvent{Kind: Quit})
	assert.ErrorIs(t, err, ErrFull)
}

func TestChannel_ShutdownIsIdempotentAndPublishAfterFails(t *testing.T) {
	t.Parallel()

	ch := NewChannel[UIEvent]("test", 10)
	ch.StartDistribution()
	ch.Shutdown()
	ch.Shutdown()

	err := ch.Publish(UIEvent{Kind: Quit})
	assert.ErrorIs(t, err, ErrClosed)
}
