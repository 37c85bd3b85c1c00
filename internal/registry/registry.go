// Package registry holds the pattern→handler index used to route incoming
// messages, and the contracts handler providers implement.
//
// Handlers are supplied as a flat list of specs by an external Provider and
// compiled into an ordered index at startup. The index is immutable between
// builds; a rebuild replaces it wholesale.
package registry

import (
	"context"
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/sparrowbot/sparrow-go/internal/message"
)

// Services is the routing context handed to handlers: sending replies and
// registering thread continuations.
type Services interface {
	// Say delivers an outbound message through the transport.
	Say(ctx context.Context, msg *message.Message) error

	// RegisterThread registers a continuation for the next message in the
	// given thread. key is a sender id, or "all" for any sender.
	RegisterThread(threadID, key string, handler HandlerFunc)
}

// HandlerFunc processes one routed message. match holds the regexp submatches
// for pattern-routed invocations and is nil when the handler was reached
// through a continuation. A non-nil Continuation return registers a direct
// continuation once the handler completes.
type HandlerFunc func(ctx context.Context, msg *message.Message, svc Services, match []string) (*Continuation, error)

// Continuation is a handler's request to route a future message straight back
// to a callback, skipping pattern matching.
type Continuation struct {
	// Handler receives the continuation message. A Continuation without a
	// Handler is a no-op completion.
	Handler HandlerFunc

	// From is the sender the continuation waits for; defaults to the
	// original message's sender.
	From string

	// To is the destination the continuation is scoped to; defaults to the
	// original message's destination.
	To string

	// TimeoutSeconds bounds how long the continuation stays eligible.
	// Defaults to 300.
	TimeoutSeconds int

	// ConversationID carried to the continuation message; defaults to the
	// original message's conversation id, or its timestamp.
	ConversationID string
}

// HandlerSpec describes one message handler as supplied by a Provider.
type HandlerSpec struct {
	Name    string
	Pattern string // regular expression; "{bot}" expands to the bot mention
	Handler HandlerFunc

	RequireMention bool
	RequireAdmin   bool

	// Channels restricts the handler to these destination ids. Empty means
	// any destination.
	Channels []string
}

// AllowsChannel reports whether the spec may run for the given destination.
func (s HandlerSpec) AllowsChannel(id string) bool {
	if len(s.Channels) == 0 {
		return true
	}
	for _, c := range s.Channels {
		if c == id {
			return true
		}
	}
	return false
}

// Provider supplies the handler descriptors to register. Plugins implement
// this; the registry only ever consumes the returned list.
type Provider interface {
	ListMessageHandlers() []HandlerSpec
}

// ProviderFunc adapts a plain function to a Provider.
type ProviderFunc func() []HandlerSpec

func (f ProviderFunc) ListMessageHandlers() []HandlerSpec { return f() }

// compiled pairs a spec with its compiled pattern. Specs sharing a pattern
// stay separate entries, each evaluated independently.
type compiled struct {
	spec HandlerSpec
	re   *regexp.Regexp
}

// Match is one routing hit: the spec plus the regexp submatches.
type Match struct {
	Spec    HandlerSpec
	Matches []string
}

// Registry is the compiled pattern index. Reads far outnumber writes; Build
// swaps the whole index atomically so concurrent matches never observe a
// half-built state.
type Registry struct {
	mu       sync.RWMutex
	handlers []compiled
	botID    string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// SetBotID sets the bot user id substituted for the "{bot}" pattern
// placeholder on the next Build.
func (r *Registry) SetBotID(id string) {
	r.mu.Lock()
	r.botID = id
	r.mu.Unlock()
}

// Build compiles the given specs into a fresh index and swaps it in. A spec
// whose pattern fails to compile is logged and skipped; it never aborts the
// rest of the build. Registration order is preserved.
func (r *Registry) Build(specs []HandlerSpec) {
	r.mu.RLock()
	botID := r.botID
	r.mu.RUnlock()

	index := make([]compiled, 0, len(specs))
	for _, spec := range specs {
		pattern := spec.Pattern
		if botID != "" {
			pattern = strings.ReplaceAll(pattern, "{bot}", "<@"+botID+">")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			log.Printf("[Registry] ⚠️ Skipping handler %q: bad pattern %q: %v", spec.Name, spec.Pattern, err)
			continue
		}
		if spec.Handler == nil {
			log.Printf("[Registry] ⚠️ Skipping handler %q: nil handler", spec.Name)
			continue
		}
		index = append(index, compiled{spec: spec, re: re})
	}

	r.mu.Lock()
	r.handlers = index
	r.mu.Unlock()

	log.Printf("[Registry] ✅ Registered %d message handlers", len(index))
}

// Match returns every handler whose pattern matches text, in registration
// order, along with the regexp submatches.
func (r *Registry) Match(text string) []Match {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Match
	for _, c := range r.handlers {
		if m := c.re.FindStringSubmatch(text); m != nil {
			out = append(out, Match{Spec: c.spec, Matches: m})
		}
	}
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
