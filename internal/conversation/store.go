// Package conversation tracks pending multi-turn continuations.
//
// Two independent stores live here: direct continuations keyed by the
// (sender, destination) pair with a TTL, and thread continuations keyed by
// thread id with a per-sender sub-key. Both are single-use: a successful
// lookup consumes the entry.
package conversation

import (
	"log"
	"sync"
	"time"

	"github.com/sparrowbot/sparrow-go/internal/registry"
)

// AnySender is the thread continuation sub-key matching any sender.
const AnySender = "all"

// DefaultTTL bounds a direct continuation's eligibility when the registering
// handler does not pick one.
const DefaultTTL = 300 * time.Second

type directKey struct {
	from string
	to   string
}

// DirectEntry is a pending direct continuation.
type DirectEntry struct {
	Handler        registry.HandlerFunc
	RegisteredAt   time.Time
	TTL            time.Duration
	ConversationID string
}

func (e DirectEntry) expired(now time.Time) bool {
	return now.After(e.RegisteredAt.Add(e.TTL))
}

// Store holds both continuation maps. All mutation funnels through the
// dispatcher and the supervisor's completion loop; the mutex keeps the maps
// consistent between those two goroutines.
type Store struct {
	mu      sync.Mutex
	direct  map[directKey]DirectEntry
	threads map[string]map[string]registry.HandlerFunc

	now    func() time.Time
	stopCh chan struct{}
	stop   sync.Once
}

// NewStore creates an empty conversation store. now is the clock used for TTL
// checks; nil means time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		direct:  make(map[directKey]DirectEntry),
		threads: make(map[string]map[string]registry.HandlerFunc),
		now:     now,
		stopCh:  make(chan struct{}),
	}
}

// RegisterDirect records a continuation for the next message from fromID
// addressed to toID. An existing entry for the same pair is silently
// overwritten.
func (s *Store) RegisterDirect(fromID, toID string, handler registry.HandlerFunc, ttl time.Duration, conversationID string) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	s.direct[directKey{fromID, toID}] = DirectEntry{
		Handler:        handler,
		RegisteredAt:   s.now(),
		TTL:            ttl,
		ConversationID: conversationID,
	}
	s.mu.Unlock()
}

// LookupDirect returns and consumes the continuation for (fromID, toID) if one
// is registered and not yet expired. An expired entry is left in place: only
// the sweeper or a later overwrite removes it.
func (s *Store) LookupDirect(fromID, toID string) (DirectEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := directKey{fromID, toID}
	entry, ok := s.direct[key]
	if !ok || entry.expired(s.now()) {
		return DirectEntry{}, false
	}
	delete(s.direct, key)
	return entry, true
}

// RegisterThread records a continuation for the next message in threadID from
// the sender key (or AnySender). Overwrites unconditionally.
func (s *Store) RegisterThread(threadID, key string, handler registry.HandlerFunc) {
	s.mu.Lock()
	m, ok := s.threads[threadID]
	if !ok {
		m = make(map[string]registry.HandlerFunc)
		s.threads[threadID] = m
	}
	m[key] = handler
	s.mu.Unlock()
}

// LookupThread returns and consumes the continuation for the given thread and
// sender. The sender-specific key wins over AnySender; only the matched
// sub-key is removed. An emptied thread map may linger, it is merely unused.
func (s *Store) LookupThread(threadID, fromID string) (registry.HandlerFunc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.threads[threadID]
	if !ok {
		return nil, false
	}
	for _, key := range []string{fromID, AnySender} {
		if handler, ok := m[key]; ok {
			delete(m, key)
			return handler, true
		}
	}
	return nil, false
}

// HasThread reports whether any continuation is pending for the thread.
func (s *Store) HasThread(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads[threadID]) > 0
}

// Sweep removes expired direct continuations and returns how many were
// purged. Failed lookups never purge; this is the only reclamation path for
// registered-but-never-consumed pairs.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	purged := 0
	for key, entry := range s.direct {
		if entry.expired(now) {
			delete(s.direct, key)
			purged++
		}
	}
	return purged
}

// StartSweeper runs Sweep on the given interval until Stop is called.
func (s *Store) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Printf("[Conversation] Swept %d expired continuations", n)
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the sweeper.
func (s *Store) Stop() {
	s.stop.Do(func() { close(s.stopCh) })
}

// Stats returns store counters.
func (s *Store) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	pendingThread := 0
	for _, m := range s.threads {
		pendingThread += len(m)
	}
	return map[string]any{
		"pendingDirect": len(s.direct),
		"pendingThread": pendingThread,
	}
}
