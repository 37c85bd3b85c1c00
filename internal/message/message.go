// Package message defines the normalized chat message model shared by the
// dispatch engine, the conversation store and the transport layer.
package message

// User is a resolved message participant.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Admin bool   `json:"admin,omitempty"`

	// DMChannel is the open IM channel for this user, used as the send
	// target when replying in private.
	DMChannel string `json:"dmChannel,omitempty"`
}

// Kind classifies a message destination.
type Kind string

const (
	KindChannel Kind = "channel"
	KindGroup   Kind = "group"
	KindIM      Kind = "im"
)

// Destination is where a message was posted: a public channel, a private
// group or an IM conversation with the bot.
type Destination struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	SendID string `json:"sendId"` // channel id used by chat.postMessage
	Kind   Kind   `json:"kind"`
}

// Identity holds the bot's own user id and its bot-surrogate id, used for
// self-message filtering and mention detection.
type Identity struct {
	UserID string `json:"userId"`
	BotID  string `json:"botId,omitempty"`
}

// Message is an immutable normalized incoming message. It is created once per
// transport event and not mutated afterwards, except for ConversationID which
// the router sets when a continuation is consumed.
type Message struct {
	From      *User
	To        Destination
	Text      string
	Subtype   string
	Mention   bool
	Thread    string // thread id, falls back to the message's own timestamp
	Timestamp string // unique per-message ordering key
	Raw       map[string]any

	// ConversationID groups a multi-turn exchange. Empty until a
	// continuation is consumed; defaults to Timestamp at completion time.
	ConversationID string
}

// Response builds a reply addressed back to where the message came from,
// preserving the thread.
func (m *Message) Response() *Message {
	return &Message{
		To:      m.To,
		Subtype: "message",
		Thread:  m.Thread,
	}
}

// Serialize returns the chat.postMessage argument map for this message.
func (m *Message) Serialize() map[string]any {
	args := map[string]any{
		"channel": m.To.SendID,
		"text":    m.Text,
	}
	if m.Thread != "" && m.Thread != m.Timestamp {
		args["thread_ts"] = m.Thread
	}
	return args
}
