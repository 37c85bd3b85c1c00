package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sparrowbot/sparrow-go/internal/message"
)

// keyPrefix namespaces stored messages in Redis.
const keyPrefix = "msg:"

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL      string // redis://host:port
	Password string
	DB       int
	TTL      time.Duration // message retention, 0 means keep forever
}

// Redis is a Redis-backed MessageStore. Duplicate detection rides on SETNX:
// the first delivery of a timestamp wins, re-deliveries see ErrDuplicate.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// record is the persisted shape of a message.
type record struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
	Subtype   string `json:"subtype"`
	Thread    string `json:"thread,omitempty"`
	Timestamp string `json:"ts"`
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{client: client, ttl: cfg.TTL}, nil
}

// Save stores the message under its delivery key. Returns ErrDuplicate when
// the key already exists.
func (r *Redis) Save(ctx context.Context, msg *message.Message) error {
	rec := record{
		To:        msg.To.ID,
		Text:      msg.Text,
		Subtype:   msg.Subtype,
		Thread:    msg.Thread,
		Timestamp: msg.Timestamp,
	}
	if msg.From != nil {
		rec.From = msg.From.ID
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ok, err := r.client.SetNX(ctx, keyPrefix+Key(msg), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

// Commit is a no-op: Redis writes are immediate.
func (r *Redis) Commit(context.Context) error { return nil }

// Close releases the Redis connection.
func (r *Redis) Close() error { return r.client.Close() }
