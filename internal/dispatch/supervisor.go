package dispatch

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sparrowbot/sparrow-go/internal/conversation"
	"github.com/sparrowbot/sparrow-go/internal/message"
	"github.com/sparrowbot/sparrow-go/internal/registry"
)

// result is one handler completion, delivered to the completion loop.
type result struct {
	name string
	msg  *message.Message
	cont *registry.Continuation
	err  error
}

// Supervisor runs handler callbacks as fire-and-forget goroutines and feeds
// their completions back into the conversation store.
//
// Every completion flows through a single loop goroutine that owns all
// continuation registrations, so conversation-state writes from concurrently
// finishing handlers never interleave.
type Supervisor struct {
	conversations *conversation.Store
	results       chan result
	pending       sync.WaitGroup

	completed atomic.Int64
	failures  atomic.Int64
}

// NewSupervisor creates a supervisor writing completions into conversations.
func NewSupervisor(conversations *conversation.Store) *Supervisor {
	return &Supervisor{
		conversations: conversations,
		results:       make(chan result, 64),
	}
}

// Submit schedules handler as an independent unit of work and returns
// immediately. A panicking handler is contained and surfaces as a failed
// completion; it never takes the dispatcher down.
func (s *Supervisor) Submit(ctx context.Context, name string, handler registry.HandlerFunc, msg *message.Message, svc registry.Services, match []string) {
	s.pending.Add(1)
	go func() {
		res := result{name: name, msg: msg}
		defer func() {
			if r := recover(); r != nil {
				res.cont = nil
				res.err = fmt.Errorf("handler panic: %v", r)
				log.Printf("[Supervisor] ❌ Handler %q panicked: %v\n%s", name, r, debug.Stack())
			}
			s.results <- res
		}()
		res.cont, res.err = handler(ctx, msg, svc, match)
	}()
}

// Run consumes handler completions until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-s.results:
			s.complete(res)
			s.pending.Done()
		}
	}
}

// Wait blocks until every submitted handler has finished and its completion
// has been processed. Test hook; the serve loop never waits.
func (s *Supervisor) Wait() {
	s.pending.Wait()
}

// complete reconciles one finished handler: failures are logged with full
// context and never retried; a continuation request registers a direct
// continuation with the documented defaults.
func (s *Supervisor) complete(res result) {
	s.completed.Add(1)

	if res.err != nil {
		s.failures.Add(1)
		from := "<none>"
		if res.msg.From != nil {
			from = res.msg.From.ID
		}
		log.Printf("[Supervisor] ❌ Handler %q failed for message %s (%s → %s): %v",
			res.name, res.msg.Timestamp, from, res.msg.To.ID, res.err)
		return
	}

	cont := res.cont
	if cont == nil || cont.Handler == nil {
		// No continuation requested.
		return
	}

	fromID := cont.From
	if fromID == "" && res.msg.From != nil {
		fromID = res.msg.From.ID
	}
	toID := cont.To
	if toID == "" {
		toID = res.msg.To.ID
	}
	ttl := time.Duration(cont.TimeoutSeconds) * time.Second
	if ttl <= 0 {
		ttl = conversation.DefaultTTL
	}
	conversationID := cont.ConversationID
	if conversationID == "" {
		conversationID = res.msg.ConversationID
	}
	if conversationID == "" {
		conversationID = res.msg.Timestamp
	}

	s.conversations.RegisterDirect(fromID, toID, cont.Handler, ttl, conversationID)
	log.Printf("[Supervisor] Continuation registered for (%s, %s), conversation %s", fromID, toID, conversationID)
}

// Stats returns supervisor counters.
func (s *Supervisor) Stats() map[string]any {
	return map[string]any{
		"completed": s.completed.Load(),
		"failures":  s.failures.Load(),
	}
}
