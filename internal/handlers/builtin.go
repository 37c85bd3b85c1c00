// Package handlers ships the builtin message handlers. It doubles as the
// reference implementation of the registry.Provider contract for plugins.
package handlers

import (
	"context"
	"fmt"

	"github.com/sparrowbot/sparrow-go/internal/message"
	"github.com/sparrowbot/sparrow-go/internal/registry"
)

// Builtin returns the stock handler specs.
func Builtin() []registry.HandlerSpec {
	return []registry.HandlerSpec{
		{
			Name:           "ping",
			Pattern:        `\bping\b`,
			Handler:        ping,
			RequireMention: true,
		},
		{
			Name:           "help",
			Pattern:        `^help$`,
			Handler:        help,
			RequireMention: true,
		},
		{
			Name:           "remind",
			Pattern:        `^remind me$`,
			Handler:        remindStart,
			RequireMention: true,
		},
	}
}

// Provider returns the builtin specs as a registry.Provider.
func Provider() registry.Provider {
	return registry.ProviderFunc(Builtin)
}

func ping(ctx context.Context, msg *message.Message, svc registry.Services, _ []string) (*registry.Continuation, error) {
	reply := msg.Response()
	reply.Text = "pong"
	return nil, svc.Say(ctx, reply)
}

func help(ctx context.Context, msg *message.Message, svc registry.Services, _ []string) (*registry.Continuation, error) {
	reply := msg.Response()
	reply.Text = "I answer to: ping, help, remind me"
	return nil, svc.Say(ctx, reply)
}

// remindStart opens a two-turn exchange: the sender's next message in the
// same place is captured as the reminder text.
func remindStart(ctx context.Context, msg *message.Message, svc registry.Services, _ []string) (*registry.Continuation, error) {
	reply := msg.Response()
	reply.Text = "What should I remind you about?"
	if err := svc.Say(ctx, reply); err != nil {
		return nil, err
	}
	return &registry.Continuation{
		Handler:        remindCapture,
		TimeoutSeconds: 120,
	}, nil
}

func remindCapture(ctx context.Context, msg *message.Message, svc registry.Services, _ []string) (*registry.Continuation, error) {
	reply := msg.Response()
	reply.Text = fmt.Sprintf("Noted: %s", msg.Text)
	return nil, svc.Say(ctx, reply)
}
