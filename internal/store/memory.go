package store

import (
	"context"
	"sync"

	"github.com/sparrowbot/sparrow-go/internal/message"
)

// Memory is an in-process MessageStore, used when no Redis is configured and
// in tests.
type Memory struct {
	mu   sync.Mutex
	seen map[string]*message.Message
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]*message.Message)}
}

// Save stores the message, or returns ErrDuplicate if its key was seen.
func (m *Memory) Save(_ context.Context, msg *message.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(msg)
	if _, ok := m.seen[key]; ok {
		return ErrDuplicate
	}
	m.seen[key] = msg
	return nil
}

// Commit is a no-op for the in-memory store.
func (m *Memory) Commit(context.Context) error { return nil }

// Len returns the number of stored messages.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// Get returns a stored message by key, or nil.
func (m *Memory) Get(key string) *message.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[key]
}
