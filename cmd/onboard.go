package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sparrowbot/sparrow-go/internal/config"
	"github.com/spf13/cobra"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize sparrow configuration",
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	configPath := config.GetConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
	} else {
		os.MkdirAll(filepath.Dir(configPath), 0755)
		if err := config.Save(config.DefaultConfig(), ""); err != nil {
			return fmt.Errorf("creating config: %w", err)
		}
		fmt.Printf("✓ Created config at %s\n", configPath)
	}

	fmt.Println("\n🐦 sparrow is ready!")
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Add your Slack bot token to %s\n", configPath)
	fmt.Println("  2. Start the bot: sparrow serve")

	return nil
}
