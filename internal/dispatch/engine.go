package dispatch

import (
	"context"
	"log"

	"github.com/sparrowbot/sparrow-go/internal/events"
	"github.com/sparrowbot/sparrow-go/internal/message"
)

// Engine is the top-level event router for the transport session. Message
// events go to the Dispatcher, the login event captures the bot identity,
// everything else goes to the event dispatcher. Events arriving before login
// are dropped.
type Engine struct {
	Dispatcher *Dispatcher
	Events     *events.Dispatcher

	// OnLogin runs after the bot identity is captured, with the identity
	// set on the dispatcher. The serve loop uses it to (re)build the
	// handler registry once the {bot} placeholder can expand.
	OnLogin func(message.Identity)

	started bool
}

// NewEngine creates an engine over the given dispatchers.
func NewEngine(dispatcher *Dispatcher, eventDispatcher *events.Dispatcher) *Engine {
	return &Engine{Dispatcher: dispatcher, Events: eventDispatcher}
}

// Started reports whether the login event has been processed.
func (e *Engine) Started() bool {
	return e.started
}

// Incoming routes one raw transport event. It is called from a single
// goroutine (the inbound queue consumer), which serializes all routing
// decisions.
func (e *Engine) Incoming(ctx context.Context, raw map[string]any) {
	eventType, _ := raw["type"].(string)

	if !e.started {
		if eventType == "connected" {
			e.login(raw)
			return
		}
		log.Printf("[Engine] Not started, ignoring event %q", eventType)
		return
	}

	switch eventType {
	case "message":
		e.Dispatcher.Incoming(ctx, raw)
	case "hello", "reconnect_url", "":
		// Protocol noise and API acks.
		log.Printf("[Engine] Ignoring event %q", eventType)
	case "goodbye", "team_migration_started":
		// The platform is about to drop the socket; the transport's
		// retry loop reconnects and re-logins.
		log.Printf("[Engine] Session ending (%s), expecting reconnect", eventType)
	case "connected":
		// Reconnect re-login.
		e.login(raw)
	default:
		e.Events.Incoming(ctx, eventType, raw)
	}
}

// login captures the bot identity from the login payload and marks the
// engine started.
func (e *Engine) login(raw map[string]any) {
	id := message.Identity{}
	if self, ok := raw["self"].(map[string]any); ok {
		id.UserID, _ = self["id"].(string)
		id.BotID, _ = self["bot_id"].(string)
	}
	if id.BotID == "" {
		id.BotID, _ = raw["bot_id"].(string)
	}
	if id.UserID == "" {
		log.Printf("[Engine] ⚠️ Login event without self id, staying stopped")
		return
	}

	e.Dispatcher.SetIdentity(id)
	e.started = true
	if e.OnLogin != nil {
		e.OnLogin(id)
	}
	log.Printf("[Engine] ✅ Started as %s", id.UserID)
}
