package cmd

import (
	"fmt"

	"github.com/sparrowbot/sparrow-go/internal/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sparrow configuration status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	configPath := config.GetConfigPath()
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("🐦 sparrow Status")
	fmt.Println()
	fmt.Printf("Config: %s\n", configPath)

	if cfg.Slack.BotToken != "" {
		fmt.Println("Slack token: ✓")
	} else {
		fmt.Println("Slack token: ✗ (not set)")
	}
	if cfg.Slack.HandlersFile != "" {
		fmt.Printf("Handler overrides: %s\n", cfg.Slack.HandlersFile)
	}

	fmt.Println("\nMessage store:")
	if cfg.Redis != nil && cfg.Redis.URL != "" {
		fmt.Printf("  Redis: %s (db %d)\n", cfg.Redis.URL, cfg.Redis.DB)
		if cfg.Redis.RetentionDays > 0 {
			fmt.Printf("  Retention: %d days\n", cfg.Redis.RetentionDays)
		}
	} else {
		fmt.Println("  In-memory")
	}

	if cfg.Save.All {
		fmt.Println("Save policy: all messages")
	} else {
		fmt.Printf("Save policy: subtypes %v\n", cfg.Save.Subtypes)
	}

	fmt.Printf("RTM: %d retries, %ds delay\n", cfg.RTM.MaxRetries, cfg.RTM.RetryDelaySeconds)
	fmt.Printf("Conversation sweep: every %dm\n", cfg.Conversation.SweepMinutes)
	if cfg.Events.RulesDir != "" {
		fmt.Printf("Event rules: %s\n", cfg.Events.RulesDir)
	}

	return nil
}
