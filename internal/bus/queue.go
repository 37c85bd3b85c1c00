package bus

import (
	"context"
	"sync"
)

// MessageBus carries raw events from the transport to the engine and handler
// replies back out. Inbound is consumed by a single goroutine, which is what
// serializes the dispatch path.
type MessageBus struct {
	Inbound  chan InboundEvent
	Outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string][]func(OutboundMessage)
}

// NewMessageBus creates a bus with buffered queues.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		Inbound:     make(chan InboundEvent, 100),
		Outbound:    make(chan OutboundMessage, 100),
		subscribers: make(map[string][]func(OutboundMessage)),
	}
}

// PublishInbound hands a raw transport event to the engine.
func (b *MessageBus) PublishInbound(ev InboundEvent) {
	b.Inbound <- ev
}

// PublishOutbound hands a handler reply to the platform sender.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.Outbound <- msg
}

// Subscribe registers a callback for outbound messages on one platform.
func (b *MessageBus) Subscribe(platform string, callback func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[platform] = append(b.subscribers[platform], callback)
}

// DispatchOutbound runs the outbound dispatch loop. Blocks until ctx is
// cancelled.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.Outbound:
			b.mu.RLock()
			subs := b.subscribers[msg.Platform]
			b.mu.RUnlock()
			for _, cb := range subs {
				cb(msg)
			}
		}
	}
}

// InboundSize returns the number of pending inbound events.
func (b *MessageBus) InboundSize() int {
	return len(b.Inbound)
}

// OutboundSize returns the number of pending outbound messages.
func (b *MessageBus) OutboundSize() int {
	return len(b.Outbound)
}
