// Package events fans out non-message platform events (reactions, channel
// lifecycle, presence) to registered event handlers.
//
// Handlers register with an event-type pattern: an exact type, a "prefix.*"
// wildcard, or "*". YAML rule files can mute event types per deployment.
package events

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// HandlerFunc processes one platform event.
type HandlerFunc func(ctx context.Context, eventType string, event map[string]any)

type entry struct {
	pattern string
	name    string
	fn      HandlerFunc
}

// Rule mutes or re-enables an event type (from a YAML rules file).
type Rule struct {
	EventType string `yaml:"event_type"`
	Enabled   *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled returns whether the rule keeps the event type enabled (default true).
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Dispatcher routes events to handlers. Registration order is preserved per
// event; handlers run fire-and-forget with panic containment.
type Dispatcher struct {
	mu      sync.RWMutex
	entries []entry
	muted   map[string]bool

	wg sync.WaitGroup
}

// NewDispatcher creates an empty event dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{muted: make(map[string]bool)}
}

// Register adds a handler for event types matching pattern.
func (d *Dispatcher) Register(pattern, name string, fn HandlerFunc) {
	d.mu.Lock()
	d.entries = append(d.entries, entry{pattern: pattern, name: name, fn: fn})
	d.mu.Unlock()
}

// LoadRules loads event rules from all YAML files in dir. A missing directory
// means no rules.
func (d *Dispatcher) LoadRules(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read event rules dir: %w", err)
	}

	muted := make(map[string]bool)
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Printf("[Events] ⚠️ Failed to read %s: %v", name, err)
			continue
		}
		var rules []Rule
		if err := yaml.Unmarshal(data, &rules); err != nil {
			log.Printf("[Events] ⚠️ Failed to parse %s: %v", name, err)
			continue
		}
		for _, r := range rules {
			if !r.IsEnabled() {
				muted[r.EventType] = true
			}
		}
	}

	d.mu.Lock()
	d.muted = muted
	d.mu.Unlock()

	if len(muted) > 0 {
		log.Printf("[Events] Muted %d event types", len(muted))
	}
	return nil
}

// Incoming fans the event out to every matching handler, each in its own
// goroutine.
func (d *Dispatcher) Incoming(ctx context.Context, eventType string, event map[string]any) {
	d.mu.RLock()
	if d.muted[eventType] {
		d.mu.RUnlock()
		return
	}
	var matched []entry
	for _, e := range d.entries {
		if matchType(e.pattern, eventType) {
			matched = append(matched, e)
		}
	}
	d.mu.RUnlock()

	for _, e := range matched {
		e := e
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Events] ❌ Handler %q panicked on %s: %v\n%s", e.name, eventType, r, debug.Stack())
				}
			}()
			e.fn(ctx, eventType, event)
		}()
	}
}

// Wait blocks until all in-flight event handlers return. Test hook.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// matchType checks an event type against a pattern (exact, "prefix.*" or "*").
func matchType(pattern, eventType string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, ".*")
		return strings.HasPrefix(eventType, prefix+".")
	}
	return pattern == eventType
}
