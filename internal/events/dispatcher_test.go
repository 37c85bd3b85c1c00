package events

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchType(t *testing.T) {
	assert.True(t, matchType("*", "anything"))
	assert.True(t, matchType("reaction_added", "reaction_added"))
	assert.False(t, matchType("reaction_added", "reaction_removed"))
	assert.True(t, matchType("channel.*", "channel.created"))
	assert.False(t, matchType("channel.*", "channel"))
	assert.False(t, matchType("channel.*", "user.typing"))
}

type collector struct {
	mu   sync.Mutex
	seen []string
}

func (c *collector) handler(_ context.Context, eventType string, _ map[string]any) {
	c.mu.Lock()
	c.seen = append(c.seen, eventType)
	c.mu.Unlock()
}

func (c *collector) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

func TestIncoming_FansOutToMatchingHandlers(t *testing.T) {
	d := NewDispatcher()
	exact := &collector{}
	wild := &collector{}
	other := &collector{}

	d.Register("reaction_added", "exact", exact.handler)
	d.Register("*", "wild", wild.handler)
	d.Register("user_typing", "other", other.handler)

	d.Incoming(context.Background(), "reaction_added", map[string]any{})
	d.Wait()

	assert.Equal(t, []string{"reaction_added"}, exact.events())
	assert.Equal(t, []string{"reaction_added"}, wild.events())
	assert.Empty(t, other.events())
}

func TestIncoming_PanicContained(t *testing.T) {
	d := NewDispatcher()
	after := &collector{}

	d.Register("*", "boom", func(context.Context, string, map[string]any) {
		panic("kaboom")
	})
	d.Register("*", "after", after.handler)

	d.Incoming(context.Background(), "presence_change", map[string]any{})
	d.Wait()

	assert.Equal(t, []string{"presence_change"}, after.events())
}

func TestLoadRules_MutesEventTypes(t *testing.T) {
	dir := t.TempDir()
	rules := `- event_type: user_typing
  enabled: false
- event_type: reaction_added
  enabled: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yaml"), []byte(rules), 0644))

	d := NewDispatcher()
	c := &collector{}
	d.Register("*", "all", c.handler)
	require.NoError(t, d.LoadRules(dir))

	d.Incoming(context.Background(), "user_typing", map[string]any{})
	d.Incoming(context.Background(), "reaction_added", map[string]any{})
	d.Wait()

	assert.Equal(t, []string{"reaction_added"}, c.events())
}

func TestLoadRules_MissingDir(t *testing.T) {
	d := NewDispatcher()
	assert.NoError(t, d.LoadRules(filepath.Join(t.TempDir(), "nope")))
}
