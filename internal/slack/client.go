// Package slack implements the transport collaborators the dispatch core
// depends on: the Web API client, user/channel resolution and the real-time
// websocket session.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sparrowbot/sparrow-go/internal/message"
)

const defaultAPIBase = "https://slack.com/api/"

// Client is a minimal Slack Web API caller.
type Client struct {
	token string
	base  string
	http  *http.Client
}

// NewClient creates a Web API client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		token: token,
		base:  defaultAPIBase,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL overrides the API endpoint (tests).
func (c *Client) SetBaseURL(base string) {
	c.base = base
}

// api posts a JSON request to one Web API method and decodes the response.
// A response with ok=false is an error.
func (c *Client) api(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack api %s: %w", method, err)
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("slack api %s: decode: %w", method, err)
	}
	if ok, _ := result["ok"].(bool); !ok {
		return nil, fmt.Errorf("slack api %s: %v", method, result["error"])
	}
	return result, nil
}

// AuthTest returns the bot's own identity.
func (c *Client) AuthTest(ctx context.Context) (message.Identity, error) {
	result, err := c.api(ctx, "auth.test", nil)
	if err != nil {
		return message.Identity{}, err
	}
	id := message.Identity{}
	id.UserID, _ = result["user_id"].(string)
	id.BotID, _ = result["bot_id"].(string)
	return id, nil
}

// RTMConnect opens a real-time session and returns the websocket URL plus the
// bot identity reported by the platform.
func (c *Client) RTMConnect(ctx context.Context) (string, message.Identity, error) {
	result, err := c.api(ctx, "rtm.connect", nil)
	if err != nil {
		return "", message.Identity{}, err
	}
	wsURL, _ := result["url"].(string)
	if wsURL == "" {
		return "", message.Identity{}, fmt.Errorf("rtm.connect returned no url")
	}
	id := message.Identity{}
	if self, ok := result["self"].(map[string]any); ok {
		id.UserID, _ = self["id"].(string)
	}
	return wsURL, id, nil
}

// PostMessage sends one outbound message.
func (c *Client) PostMessage(ctx context.Context, msg *message.Message) error {
	_, err := c.api(ctx, "chat.postMessage", msg.Serialize())
	return err
}
