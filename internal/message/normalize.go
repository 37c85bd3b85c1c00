package message

import (
	"context"
	"fmt"
	"strings"
)

// UserSource resolves user references from the chat platform, including the
// sender's admin flag.
type UserSource interface {
	User(ctx context.Context, id string) (*User, error)
}

// ChannelSource resolves channel and group references.
type ChannelSource interface {
	Channel(ctx context.Context, id string) (Destination, error)
}

// Normalizer turns raw transport payloads into Messages. A nil result with a
// nil error means the payload carries no resolvable sender (e.g. platform
// system messages) and should be dropped by the caller.
type Normalizer struct {
	Users    UserSource
	Channels ChannelSource

	identity Identity
}

// SetIdentity sets the bot identity once the transport login completes.
func (n *Normalizer) SetIdentity(id Identity) {
	n.identity = id
}

// Identity returns the current bot identity.
func (n *Normalizer) Identity() Identity {
	return n.identity
}

// Normalize builds a Message from a raw event payload. Fields may live at the
// top level or inside a nested "message" envelope (edits, shares).
func (n *Normalizer) Normalize(ctx context.Context, raw map[string]any) (*Message, error) {
	inner, _ := raw["message"].(map[string]any)

	text := rawString(raw, inner, "text")
	userID := rawString(raw, inner, "user")
	channelID := rawString(raw, inner, "channel")
	timestamp := rawString(raw, inner, "ts")

	subtype := rawString(raw, inner, "subtype")
	if subtype == "" {
		subtype = "message"
	}
	// Edits carry the edited message's ts in the nested envelope.
	if subtype == "message_changed" && inner != nil {
		if ts, _ := inner["ts"].(string); ts != "" {
			timestamp = ts
		}
	}

	if channelID == "" {
		return nil, fmt.Errorf("event has no channel")
	}
	if timestamp == "" {
		return nil, fmt.Errorf("event has no ts")
	}

	from, err := n.resolveSender(ctx, raw, inner, userID)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, nil // no sender, caller drops
	}

	thread, _ := raw["thread_ts"].(string)
	if thread == "" {
		thread = timestamp
	}

	to, mention, err := n.resolveDestination(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if link := "<@" + n.identity.UserID + ">"; n.identity.UserID != "" && strings.Contains(text, link) {
		mention = true
		if strings.HasPrefix(text, link) {
			text = strings.TrimSpace(text[len(link):])
		}
	}

	return &Message{
		From:      from,
		To:        to,
		Text:      text,
		Subtype:   subtype,
		Mention:   mention,
		Thread:    thread,
		Timestamp: timestamp,
		Raw:       raw,
	}, nil
}

func (n *Normalizer) resolveSender(ctx context.Context, raw, inner map[string]any, userID string) (*User, error) {
	if userID != "" {
		user, err := n.Users.User(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("resolve sender %s: %w", userID, err)
		}
		return user, nil
	}
	if botID := rawString(raw, inner, "bot_id"); botID != "" {
		return &User{ID: botID}, nil
	}
	return nil, nil
}

func (n *Normalizer) resolveDestination(ctx context.Context, channelID string) (Destination, bool, error) {
	switch {
	case strings.HasPrefix(channelID, "D"):
		// IM with the bot: the destination is the bot itself, replies go
		// back through the IM channel. Private messages are implicit
		// mentions.
		return Destination{
			ID:     n.identity.UserID,
			SendID: channelID,
			Kind:   KindIM,
		}, true, nil
	case strings.HasPrefix(channelID, "C"), strings.HasPrefix(channelID, "G"):
		if n.Channels != nil {
			to, err := n.Channels.Channel(ctx, channelID)
			if err != nil {
				return Destination{}, false, fmt.Errorf("resolve channel %s: %w", channelID, err)
			}
			if to.SendID == "" {
				to.SendID = channelID
			}
			return to, false, nil
		}
		kind := KindChannel
		if strings.HasPrefix(channelID, "G") {
			kind = KindGroup
		}
		return Destination{ID: channelID, SendID: channelID, Kind: kind}, false, nil
	default:
		return Destination{}, false, fmt.Errorf("unknown channel kind: %s", channelID)
	}
}

// rawString reads a string field from the top level of the payload, falling
// back to the nested "message" envelope.
func rawString(raw, inner map[string]any, key string) string {
	if v, _ := raw[key].(string); v != "" {
		return v
	}
	if inner != nil {
		if v, _ := inner[key].(string); v != "" {
			return v
		}
	}
	return ""
}
