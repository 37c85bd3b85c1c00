// Package config handles configuration loading, saving, and schema definition.
package config

// Config is the top-level sparrow configuration.
// Uses json tags in camelCase to match the JSON config file format.
type Config struct {
	Slack        SlackConfig        `json:"slack"`
	Save         SaveConfig         `json:"save"`
	Redis        *RedisConfig       `json:"redis,omitempty"`
	RTM          RTMConfig          `json:"rtm"`
	Conversation ConversationConfig `json:"conversation"`
	Events       EventsConfig       `json:"events,omitempty"`
}

// SlackConfig holds the bot token and optional handler override file.
type SlackConfig struct {
	BotToken     string `json:"botToken"`
	HandlersFile string `json:"handlersFile,omitempty"` // handlers.yaml overrides
}

// SaveConfig is the message persistence policy: save everything, or only the
// listed subtypes.
type SaveConfig struct {
	All      bool     `json:"all,omitempty"`
	Subtypes []string `json:"subtypes,omitempty"`
}

// RedisConfig holds the Redis message store settings. Absent means the
// in-memory store is used.
type RedisConfig struct {
	URL           string `json:"url"`
	Password      string `json:"password,omitempty"`
	DB            int    `json:"db,omitempty"`
	RetentionDays int    `json:"retentionDays,omitempty"`
}

// RTMConfig bounds the real-time session reconnect supervisor.
type RTMConfig struct {
	MaxRetries        int `json:"maxRetries,omitempty"`
	RetryDelaySeconds int `json:"retryDelaySeconds,omitempty"`
}

// ConversationConfig tunes the continuation store.
type ConversationConfig struct {
	SweepMinutes int `json:"sweepMinutes,omitempty"`
}

// EventsConfig points at the optional event rule files.
type EventsConfig struct {
	RulesDir string `json:"rulesDir,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Save: SaveConfig{
			Subtypes: []string{"message"},
		},
		RTM: RTMConfig{
			MaxRetries:        5,
			RetryDelaySeconds: 2,
		},
		Conversation: ConversationConfig{
			SweepMinutes: 5,
		},
	}
}
