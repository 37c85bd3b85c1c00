package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readDeadline = 60 * time.Second
	pingInterval = 30 * time.Second
)

// RTMConfig bounds the reconnect supervisor around the real-time session:
// fixed delay between attempts, no exponential growth.
type RTMConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultRTMConfig returns the default reconnect settings.
func DefaultRTMConfig() RTMConfig {
	return RTMConfig{MaxRetries: 5, RetryDelay: 2 * time.Second}
}

// RTM runs the real-time websocket session and feeds every decoded event to
// OnEvent. After connecting it synthesizes a "connected" event carrying the
// bot identity, which is what starts the dispatch engine.
type RTM struct {
	client  *Client
	cfg     RTMConfig
	onEvent func(map[string]any)
}

// NewRTM creates a real-time session runner.
func NewRTM(client *Client, cfg RTMConfig, onEvent func(map[string]any)) *RTM {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRTMConfig().MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRTMConfig().RetryDelay
	}
	return &RTM{client: client, cfg: cfg, onEvent: onEvent}
}

// Run keeps a session up until ctx is cancelled or the retry budget is spent.
func (r *RTM) Run(ctx context.Context) error {
	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		err := r.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[RTM] ⚠️ Session ended (attempt %d/%d): %v", attempt, r.cfg.MaxRetries, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.RetryDelay):
		}
	}
	return fmt.Errorf("rtm: giving up after %d attempts", r.cfg.MaxRetries)
}

// session connects, announces the identity and pumps events until the
// connection drops.
func (r *RTM) session(ctx context.Context) error {
	wsURL, id, err := r.client.RTMConnect(ctx)
	if err != nil {
		return err
	}
	if id.BotID == "" {
		// rtm.connect does not report the bot-surrogate id.
		if auth, err := r.client.AuthTest(ctx); err == nil {
			id.BotID = auth.BotID
		}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("rtm dial: %w", err)
	}
	defer conn.Close()
	log.Printf("[RTM] 🔗 Connected as %s", id.UserID)

	// Close the connection when ctx is cancelled so ReadMessage unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	r.onEvent(map[string]any{
		"type": "connected",
		"self": map[string]any{"id": id.UserID, "bot_id": id.BotID},
	})

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("rtm read: %w", err)
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			log.Printf("[RTM] Skipping undecodable frame: %v", err)
			continue
		}
		r.onEvent(raw)
	}
}
