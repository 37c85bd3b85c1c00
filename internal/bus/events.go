// Package bus provides the async queues decoupling the transport session
// from the dispatch engine and the handlers from the outbound sender.
package bus

import (
	"time"

	"github.com/sparrowbot/sparrow-go/internal/message"
)

// PlatformSlack is the only platform currently wired; the bus stays keyed so
// additional transports can subscribe independently.
const PlatformSlack = "slack"

// InboundEvent is one raw event read off the real-time transport.
type InboundEvent struct {
	Platform   string         `json:"platform"`
	Raw        map[string]any `json:"raw"`
	ReceivedAt time.Time      `json:"receivedAt"`
}

// Type returns the event's type tag, or "".
func (e *InboundEvent) Type() string {
	t, _ := e.Raw["type"].(string)
	return t
}

// OutboundMessage is a handler reply on its way to the platform API.
type OutboundMessage struct {
	Platform string           `json:"platform"`
	Message  *message.Message `json:"message"`
}
