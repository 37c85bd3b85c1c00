package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sparrowbot/sparrow-go/internal/message"
	"github.com/stretchr/testify/assert"
)

func TestNewMessageBus(t *testing.T) {
	bus := NewMessageBus()
	assert.NotNil(t, bus)
	assert.Equal(t, 0, bus.InboundSize())
	assert.Equal(t, 0, bus.OutboundSize())
}

func TestMessageBus_PublishConsumeInbound(t *testing.T) {
	bus := NewMessageBus()
	ev := InboundEvent{
		Platform:   PlatformSlack,
		Raw:        map[string]any{"type": "message", "text": "hello"},
		ReceivedAt: time.Now(),
	}

	bus.PublishInbound(ev)
	assert.Equal(t, 1, bus.InboundSize())

	received := <-bus.Inbound
	assert.Equal(t, PlatformSlack, received.Platform)
	assert.Equal(t, "message", received.Type())
}

func TestInboundEvent_Type(t *testing.T) {
	ev := InboundEvent{Raw: map[string]any{"type": "hello"}}
	assert.Equal(t, "hello", ev.Type())

	empty := InboundEvent{Raw: map[string]any{}}
	assert.Equal(t, "", empty.Type())
}

func TestMessageBus_SubscribeAndDispatch(t *testing.T) {
	bus := NewMessageBus()

	var received []OutboundMessage
	var mu sync.Mutex

	bus.Subscribe(PlatformSlack, func(msg OutboundMessage) {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go bus.DispatchOutbound(ctx)

	bus.PublishOutbound(OutboundMessage{
		Platform: PlatformSlack,
		Message:  &message.Message{Text: "reply"},
	})

	// Wait for dispatch
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 1)
	assert.Equal(t, "reply", received[0].Message.Text)
}

func TestMessageBus_SubscribeDoesNotReceiveOtherPlatforms(t *testing.T) {
	bus := NewMessageBus()

	var count int
	var mu sync.Mutex
	bus.Subscribe("telegram", func(OutboundMessage) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.DispatchOutbound(ctx)

	bus.PublishOutbound(OutboundMessage{Platform: PlatformSlack, Message: &message.Message{Text: "x"}})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}
