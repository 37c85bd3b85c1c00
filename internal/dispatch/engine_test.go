package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/sparrowbot/sparrow-go/internal/events"
	"github.com/sparrowbot/sparrow-go/internal/message"
	"github.com/sparrowbot/sparrow-go/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedEvent() map[string]any {
	return map[string]any{
		"type": "connected",
		"self": map[string]any{
			"id":     "UBOT",
			"bot_id": "B42",
		},
	}
}

func TestEngine_DropsEventsBeforeLogin(t *testing.T) {
	h := newHarness(t, func(h *harness) []registry.HandlerSpec {
		return []registry.HandlerSpec{
			{Name: "all", Pattern: `.*`, Handler: h.counting("all")},
		}
	})
	engine := NewEngine(h.dispatcher, events.NewDispatcher())

	engine.Incoming(context.Background(), event("U1", "C1", "early", "1.0"))
	h.dispatcher.Supervisor().Wait()

	assert.False(t, engine.Started())
	assert.Equal(t, 0, h.invocations.count("all"))
}

func TestEngine_LoginSetsIdentityAndStarts(t *testing.T) {
	h := newHarness(t, nil)
	engine := NewEngine(h.dispatcher, events.NewDispatcher())

	var gotIdentity message.Identity
	engine.OnLogin = func(id message.Identity) { gotIdentity = id }

	engine.Incoming(context.Background(), connectedEvent())

	assert.True(t, engine.Started())
	assert.Equal(t, "UBOT", gotIdentity.UserID)
	assert.Equal(t, "B42", gotIdentity.BotID)
}

func TestEngine_LoginWithoutSelfStaysStopped(t *testing.T) {
	h := newHarness(t, nil)
	engine := NewEngine(h.dispatcher, events.NewDispatcher())

	engine.Incoming(context.Background(), map[string]any{"type": "connected"})
	assert.False(t, engine.Started())
}

func TestEngine_MessagesRoutedAfterLogin(t *testing.T) {
	h := newHarness(t, func(h *harness) []registry.HandlerSpec {
		return []registry.HandlerSpec{
			{Name: "ping", Pattern: `ping`, Handler: h.counting("ping")},
		}
	})
	engine := NewEngine(h.dispatcher, events.NewDispatcher())

	engine.Incoming(context.Background(), connectedEvent())
	engine.Incoming(context.Background(), event("U1", "C1", "ping", "1.0"))
	h.dispatcher.Supervisor().Wait()

	assert.Equal(t, 1, h.invocations.count("ping"))
}

func TestEngine_NonMessageEventsFanOut(t *testing.T) {
	h := newHarness(t, nil)
	ev := events.NewDispatcher()
	engine := NewEngine(h.dispatcher, ev)

	var mu sync.Mutex
	var seen []string
	ev.Register("reaction_added", "collect", func(_ context.Context, eventType string, _ map[string]any) {
		mu.Lock()
		seen = append(seen, eventType)
		mu.Unlock()
	})

	engine.Incoming(context.Background(), connectedEvent())
	engine.Incoming(context.Background(), map[string]any{"type": "reaction_added"})
	engine.Incoming(context.Background(), map[string]any{"type": "hello"})
	ev.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"reaction_added"}, seen)
}

func TestEngine_SessionEndEventsNotFannedOut(t *testing.T) {
	h := newHarness(t, nil)
	ev := events.NewDispatcher()
	engine := NewEngine(h.dispatcher, ev)

	var mu sync.Mutex
	var seen []string
	ev.Register("*", "collect", func(_ context.Context, eventType string, _ map[string]any) {
		mu.Lock()
		seen = append(seen, eventType)
		mu.Unlock()
	})

	engine.Incoming(context.Background(), connectedEvent())
	engine.Incoming(context.Background(), map[string]any{"type": "goodbye"})
	engine.Incoming(context.Background(), map[string]any{"type": "team_migration_started"})
	ev.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, seen)
	// The engine stays started; the transport owns the reconnect.
	assert.True(t, engine.Started())
}

func TestEngine_ReconnectRelogins(t *testing.T) {
	h := newHarness(t, nil)
	engine := NewEngine(h.dispatcher, events.NewDispatcher())

	logins := 0
	engine.OnLogin = func(message.Identity) { logins++ }

	engine.Incoming(context.Background(), connectedEvent())
	engine.Incoming(context.Background(), connectedEvent())

	assert.Equal(t, 2, logins)
}
