package slack

import (
	"context"
	"strings"
	"sync"

	"github.com/sparrowbot/sparrow-go/internal/message"
)

// UserDirectory resolves users through users.info with an in-process cache.
// Implements message.UserSource.
type UserDirectory struct {
	client *Client

	mu    sync.RWMutex
	cache map[string]*message.User
}

// NewUserDirectory creates a user directory over the given client.
func NewUserDirectory(client *Client) *UserDirectory {
	return &UserDirectory{client: client, cache: make(map[string]*message.User)}
}

// User resolves a user id. Bot-surrogate ids (B…) are not users.info lookups;
// they resolve to a bare user reference so self-filtering can see them.
func (d *UserDirectory) User(ctx context.Context, id string) (*message.User, error) {
	if strings.HasPrefix(id, "B") {
		return &message.User{ID: id}, nil
	}

	d.mu.RLock()
	cached, ok := d.cache[id]
	d.mu.RUnlock()
	if ok {
		return cached, nil
	}

	result, err := d.client.api(ctx, "users.info", map[string]any{"user": id})
	if err != nil {
		return nil, err
	}
	user := &message.User{ID: id}
	if raw, ok := result["user"].(map[string]any); ok {
		user.Name, _ = raw["name"].(string)
		user.Admin, _ = raw["is_admin"].(bool)
	}

	d.mu.Lock()
	d.cache[id] = user
	d.mu.Unlock()
	return user, nil
}

// ChannelDirectory resolves channels and groups with an in-process cache.
// Implements message.ChannelSource.
type ChannelDirectory struct {
	client *Client

	mu    sync.RWMutex
	cache map[string]message.Destination
}

// NewChannelDirectory creates a channel directory over the given client.
func NewChannelDirectory(client *Client) *ChannelDirectory {
	return &ChannelDirectory{client: client, cache: make(map[string]message.Destination)}
}

// Channel resolves a channel or group id.
func (d *ChannelDirectory) Channel(ctx context.Context, id string) (message.Destination, error) {
	d.mu.RLock()
	cached, ok := d.cache[id]
	d.mu.RUnlock()
	if ok {
		return cached, nil
	}

	result, err := d.client.api(ctx, "conversations.info", map[string]any{"channel": id})
	if err != nil {
		return message.Destination{}, err
	}

	dest := message.Destination{ID: id, SendID: id, Kind: message.KindChannel}
	if strings.HasPrefix(id, "G") {
		dest.Kind = message.KindGroup
	}
	if raw, ok := result["channel"].(map[string]any); ok {
		dest.Name, _ = raw["name"].(string)
		if private, _ := raw["is_private"].(bool); private {
			dest.Kind = message.KindGroup
		}
	}

	d.mu.Lock()
	d.cache[id] = dest
	d.mu.Unlock()
	return dest, nil
}
