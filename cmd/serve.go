package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sparrowbot/sparrow-go/internal/bus"
	"github.com/sparrowbot/sparrow-go/internal/config"
	"github.com/sparrowbot/sparrow-go/internal/conversation"
	"github.com/sparrowbot/sparrow-go/internal/dispatch"
	"github.com/sparrowbot/sparrow-go/internal/events"
	"github.com/sparrowbot/sparrow-go/internal/handlers"
	"github.com/sparrowbot/sparrow-go/internal/message"
	"github.com/sparrowbot/sparrow-go/internal/registry"
	"github.com/sparrowbot/sparrow-go/internal/slack"
	"github.com/sparrowbot/sparrow-go/internal/store"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sparrow bot (connects to Slack and dispatches messages)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Slack.BotToken == "" {
		return fmt.Errorf("slack.botToken not set, run `sparrow onboard` and edit %s", config.GetConfigPath())
	}

	fmt.Println("🐦 Starting sparrow...")

	client := slack.NewClient(cfg.Slack.BotToken)
	normalizer := &message.Normalizer{
		Users:    slack.NewUserDirectory(client),
		Channels: slack.NewChannelDirectory(client),
	}

	msgStore := makeStore(cfg)

	conversations := conversation.NewStore(nil)
	defer conversations.Stop()
	if m := cfg.Conversation.SweepMinutes; m > 0 {
		conversations.StartSweeper(time.Duration(m) * time.Minute)
	}

	reg := registry.New()
	msgBus := bus.NewMessageBus()

	dispatcher := dispatch.New(dispatch.Options{
		Normalizer:    normalizer,
		Registry:      reg,
		Conversations: conversations,
		Store:         msgStore,
		SavePolicy: store.SavePolicy{
			All:      cfg.Save.All,
			Subtypes: cfg.Save.Subtypes,
		},
		Sender: func(ctx context.Context, msg *message.Message) error {
			msgBus.PublishOutbound(bus.OutboundMessage{
				Platform: bus.PlatformSlack,
				Message:  msg,
			})
			return nil
		},
	})

	eventDispatcher := events.NewDispatcher()
	if dir := cfg.Events.RulesDir; dir != "" {
		if err := eventDispatcher.LoadRules(dir); err != nil {
			log.Printf("[Serve] ⚠️ Loading event rules: %v", err)
		}
	}

	engine := dispatch.NewEngine(dispatcher, eventDispatcher)
	engine.OnLogin = func(id message.Identity) {
		specs := handlers.Provider().ListMessageHandlers()
		if path := cfg.Slack.HandlersFile; path != "" {
			overrides, err := registry.LoadOverrides(path)
			if err != nil {
				log.Printf("[Serve] ⚠️ Loading handler overrides: %v", err)
			} else {
				specs = registry.ApplyOverrides(specs, overrides)
			}
		}
		reg.Build(specs)
		log.Printf("[Serve] ✅ Logged in as %s, %d handlers registered", id.UserID, reg.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgBus.Subscribe(bus.PlatformSlack, func(out bus.OutboundMessage) {
		if err := client.PostMessage(ctx, out.Message); err != nil {
			log.Printf("[Serve] ❌ Sending message: %v", err)
		}
	})
	go msgBus.DispatchOutbound(ctx)
	go dispatcher.Supervisor().Run(ctx)

	// Single consumer: all transport events funnel through one goroutine so
	// the engine's login state needs no locking.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-msgBus.Inbound:
				engine.Incoming(ctx, ev.Raw)
			}
		}
	}()

	rtm := slack.NewRTM(client, slack.RTMConfig{
		MaxRetries: cfg.RTM.MaxRetries,
		RetryDelay: time.Duration(cfg.RTM.RetryDelaySeconds) * time.Second,
	}, func(ev map[string]any) {
		msgBus.PublishInbound(bus.InboundEvent{
			Platform:   bus.PlatformSlack,
			Raw:        ev,
			ReceivedAt: time.Now(),
		})
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	return rtm.Run(ctx)
}

// makeStore picks the message store: Redis when configured, in-memory
// otherwise. A Redis connection failure falls back to memory so the bot still
// comes up.
func makeStore(cfg config.Config) store.MessageStore {
	if cfg.Redis == nil || cfg.Redis.URL == "" {
		return store.NewMemory()
	}
	rs, err := store.NewRedis(store.RedisConfig{
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      time.Duration(cfg.Redis.RetentionDays) * 24 * time.Hour,
	})
	if err != nil {
		log.Printf("[Serve] ⚠️ Redis unavailable, using in-memory store: %v", err)
		return store.NewMemory()
	}
	log.Println("[Serve] ✅ Redis message store connected")
	return rs
}
