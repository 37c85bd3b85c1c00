// Package dispatch routes normalized messages to registered handlers and
// manages the fire-and-forget execution of the resulting handler tasks.
package dispatch

import (
	"context"
	"errors"
	"log"

	"github.com/sparrowbot/sparrow-go/internal/conversation"
	"github.com/sparrowbot/sparrow-go/internal/message"
	"github.com/sparrowbot/sparrow-go/internal/registry"
	"github.com/sparrowbot/sparrow-go/internal/store"
)

// legacyBotSurrogate is the platform's placeholder bot id, always filtered.
const legacyBotSurrogate = "B00000000"

// suppressedSubtypes never reach handlers: edits, deletions, membership
// churn and reply fan-out duplicates.
var suppressedSubtypes = []string{
	"message_changed",
	"message_deleted",
	"channel_join",
	"channel_leave",
	"message_replied",
}

// Sender delivers an outbound message through the transport.
type Sender func(ctx context.Context, msg *message.Message) error

// Options wires a Dispatcher.
type Options struct {
	Normalizer    *message.Normalizer
	Registry      *registry.Registry
	Conversations *conversation.Store
	Store         store.MessageStore // nil disables persistence
	SavePolicy    store.SavePolicy
	Sender        Sender
}

// Dispatcher decides, for each incoming message event, which handlers run and
// kicks them off through the supervisor.
type Dispatcher struct {
	normalizer    *message.Normalizer
	registry      *registry.Registry
	conversations *conversation.Store
	store         store.MessageStore
	savePolicy    store.SavePolicy
	supervisor    *Supervisor
	svc           registry.Services
}

// New creates a Dispatcher and its supervisor.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		normalizer:    opts.Normalizer,
		registry:      opts.Registry,
		conversations: opts.Conversations,
		store:         opts.Store,
		savePolicy:    opts.SavePolicy,
		supervisor:    NewSupervisor(opts.Conversations),
	}
	d.svc = &services{send: opts.Sender, conversations: opts.Conversations}
	return d
}

// Supervisor exposes the task supervisor, whose Run loop the caller owns.
func (d *Dispatcher) Supervisor() *Supervisor {
	return d.supervisor
}

// SetIdentity records the bot identity used for self-filtering, mention
// detection and the registry's {bot} placeholder.
func (d *Dispatcher) SetIdentity(id message.Identity) {
	d.normalizer.SetIdentity(id)
	d.registry.SetBotID(id.UserID)
}

// Incoming processes one raw message event end to end: normalize, filter,
// persist, route, spawn. Every failure path drops the message; duplicate
// delivery is expected and handled, not an error.
func (d *Dispatcher) Incoming(ctx context.Context, raw map[string]any) {
	msg, err := d.normalizer.Normalize(ctx, raw)
	if err != nil {
		log.Printf("[Dispatch] Dropping message: %v", err)
		return
	}
	if msg == nil {
		log.Printf("[Dispatch] Ignoring message without sender")
		return
	}

	// Filter our own messages before anything else, so self-sent messages
	// are never persisted.
	id := d.normalizer.Identity()
	if msg.From.ID == legacyBotSurrogate ||
		(id.UserID != "" && msg.From.ID == id.UserID) ||
		(id.BotID != "" && msg.From.ID == id.BotID) {
		log.Printf("[Dispatch] Ignoring message from ourselves")
		return
	}

	if d.store != nil && d.savePolicy.Includes(msg.Subtype) {
		if err := d.save(ctx, msg); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// Re-delivery of an already-processed message.
				log.Printf("[Dispatch] Message %q already saved, aborting", msg.Timestamp)
			} else {
				log.Printf("[Dispatch] ❌ Saving message %q failed: %v", msg.Timestamp, err)
			}
			return
		}
	}

	for _, subtype := range suppressedSubtypes {
		if msg.Subtype == subtype {
			log.Printf("[Dispatch] Ignoring %s subtype", subtype)
			return
		}
	}

	d.dispatch(ctx, msg)
}

func (d *Dispatcher) save(ctx context.Context, msg *message.Message) error {
	if err := d.store.Save(ctx, msg); err != nil {
		return err
	}
	return d.store.Commit(ctx)
}

// task is one selected handler invocation.
type task struct {
	name    string
	handler registry.HandlerFunc
	match   []string
}

// dispatch routes the message: a pending thread continuation wins, then a
// pending direct continuation, and only then pattern matching. Continuations
// are the sole handler for their message; pattern matching may select several
// handlers, all run concurrently.
func (d *Dispatcher) dispatch(ctx context.Context, msg *message.Message) {
	var tasks []task

	if handler, ok := d.conversations.LookupThread(msg.Thread, msg.From.ID); ok {
		log.Printf("[Dispatch] Thread continuation located for %q in %q, invoking", msg.From.ID, msg.Thread)
		tasks = append(tasks, task{name: "thread-continuation", handler: handler})
	} else if entry, ok := d.conversations.LookupDirect(msg.From.ID, msg.To.ID); ok {
		log.Printf("[Dispatch] Continuation located for %q in %q, invoking", msg.From.ID, msg.To.ID)
		msg.ConversationID = entry.ConversationID
		tasks = append(tasks, task{name: "continuation", handler: entry.Handler})
	} else {
		for _, m := range d.registry.Match(msg.Text) {
			spec := m.Spec
			if spec.RequireMention && !msg.Mention {
				continue
			}
			if spec.RequireAdmin && !msg.From.Admin {
				continue
			}
			if !spec.AllowsChannel(msg.To.ID) {
				continue
			}
			log.Printf("[Dispatch] Handler %q located for %q, invoking", spec.Name, msg.Text)
			tasks = append(tasks, task{name: spec.Name, handler: spec.Handler, match: m.Matches})
		}
	}

	for _, t := range tasks {
		d.supervisor.Submit(ctx, t.name, t.handler, msg, d.svc, t.match)
	}
}

// services implements registry.Services for dispatched handlers.
type services struct {
	send          Sender
	conversations *conversation.Store
}

func (s *services) Say(ctx context.Context, msg *message.Message) error {
	if s.send == nil {
		return errors.New("no sender configured")
	}
	return s.send(ctx, msg)
}

func (s *services) RegisterThread(threadID, key string, handler registry.HandlerFunc) {
	s.conversations.RegisterThread(threadID, key, handler)
}
