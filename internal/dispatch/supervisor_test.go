package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sparrowbot/sparrow-go/internal/conversation"
	"github.com/sparrowbot/sparrow-go/internal/message"
	"github.com/sparrowbot/sparrow-go/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMsg() *message.Message {
	return &message.Message{
		From:      &message.User{ID: "U1"},
		To:        message.Destination{ID: "C1", SendID: "C1", Kind: message.KindChannel},
		Text:      "hello",
		Timestamp: "100.000",
		Thread:    "100.000",
	}
}

func startSupervisor(t *testing.T) (*Supervisor, *conversation.Store) {
	t.Helper()
	conversations := conversation.NewStore(nil)
	sup := NewSupervisor(conversations)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sup.Run(ctx)
	return sup, conversations
}

func TestSupervisor_CompletesHandler(t *testing.T) {
	sup, _ := startSupervisor(t)

	done := make(chan struct{})
	sup.Submit(context.Background(), "ok", func(_ context.Context, _ *message.Message, _ registry.Services, _ []string) (*registry.Continuation, error) {
		close(done)
		return nil, nil
	}, testMsg(), nil, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
	sup.Wait()

	assert.EqualValues(t, 1, sup.Stats()["completed"])
	assert.EqualValues(t, 0, sup.Stats()["failures"])
}

func TestSupervisor_PanicContained(t *testing.T) {
	sup, conversations := startSupervisor(t)

	sup.Submit(context.Background(), "boom", func(_ context.Context, _ *message.Message, _ registry.Services, _ []string) (*registry.Continuation, error) {
		panic("kaboom")
	}, testMsg(), nil, nil)
	sup.Wait()

	assert.EqualValues(t, 1, sup.Stats()["failures"])
	assert.Equal(t, 0, conversations.Stats()["pendingDirect"])
}

func TestSupervisor_ErrorNoContinuation(t *testing.T) {
	sup, conversations := startSupervisor(t)

	sup.Submit(context.Background(), "fail", func(_ context.Context, _ *message.Message, _ registry.Services, _ []string) (*registry.Continuation, error) {
		// A continuation alongside an error must not be registered.
		return &registry.Continuation{Handler: func(context.Context, *message.Message, registry.Services, []string) (*registry.Continuation, error) {
			return nil, nil
		}}, errors.New("nope")
	}, testMsg(), nil, nil)
	sup.Wait()

	assert.EqualValues(t, 1, sup.Stats()["failures"])
	assert.Equal(t, 0, conversations.Stats()["pendingDirect"])
}

func TestSupervisor_ContinuationDefaults(t *testing.T) {
	sup, conversations := startSupervisor(t)

	next := func(context.Context, *message.Message, registry.Services, []string) (*registry.Continuation, error) {
		return nil, nil
	}
	sup.Submit(context.Background(), "ask", func(_ context.Context, _ *message.Message, _ registry.Services, _ []string) (*registry.Continuation, error) {
		return &registry.Continuation{Handler: next}, nil
	}, testMsg(), nil, nil)
	sup.Wait()

	// Defaults: keyed by (original sender, original destination), the
	// conversation id falls back to the message timestamp.
	entry, ok := conversations.LookupDirect("U1", "C1")
	require.True(t, ok)
	assert.Equal(t, "100.000", entry.ConversationID)
	assert.Equal(t, conversation.DefaultTTL, entry.TTL)
}

func TestSupervisor_ContinuationExplicitFields(t *testing.T) {
	sup, conversations := startSupervisor(t)

	next := func(context.Context, *message.Message, registry.Services, []string) (*registry.Continuation, error) {
		return nil, nil
	}
	sup.Submit(context.Background(), "ask", func(_ context.Context, _ *message.Message, _ registry.Services, _ []string) (*registry.Continuation, error) {
		return &registry.Continuation{
			Handler:        next,
			From:           "U9",
			To:             "D9",
			TimeoutSeconds: 60,
			ConversationID: "conv-x",
		}, nil
	}, testMsg(), nil, nil)
	sup.Wait()

	entry, ok := conversations.LookupDirect("U9", "D9")
	require.True(t, ok)
	assert.Equal(t, "conv-x", entry.ConversationID)
	assert.Equal(t, 60*time.Second, entry.TTL)
}

func TestSupervisor_ContinuationInheritsConversationID(t *testing.T) {
	sup, conversations := startSupervisor(t)

	msg := testMsg()
	msg.ConversationID = "conv-earlier"

	next := func(context.Context, *message.Message, registry.Services, []string) (*registry.Continuation, error) {
		return nil, nil
	}
	sup.Submit(context.Background(), "ask", func(_ context.Context, _ *message.Message, _ registry.Services, _ []string) (*registry.Continuation, error) {
		return &registry.Continuation{Handler: next}, nil
	}, msg, nil, nil)
	sup.Wait()

	entry, ok := conversations.LookupDirect("U1", "C1")
	require.True(t, ok)
	assert.Equal(t, "conv-earlier", entry.ConversationID)
}

func TestSupervisor_NilHandlerContinuationIsNoop(t *testing.T) {
	sup, conversations := startSupervisor(t)

	sup.Submit(context.Background(), "noop", func(_ context.Context, _ *message.Message, _ registry.Services, _ []string) (*registry.Continuation, error) {
		return &registry.Continuation{}, nil
	}, testMsg(), nil, nil)
	sup.Wait()

	assert.Equal(t, 0, conversations.Stats()["pendingDirect"])
}
