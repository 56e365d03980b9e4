package commands

import (
	"fmt"
	"os"

	"github.com/jeffryhq/jeffry/internal/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration",
	Long: `Create the jeffry state directory and a default config file.

Creates:
  ~/.jeffry/config.toml    Configuration file
  ~/.jeffry/logs/          Log directory`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	// Create directories
	if err := config.EnsureDirs(); err != nil {
		return err
	}

	path := config.ConfigPath()
	if _, err := os.Stat(path); err == nil && !initForce {
		fmt.Printf("Exists: %s (use --force to overwrite)\n", path)
		return nil
	}

	// Save defaults only; keys from the environment stay out of the file.
	if err := config.Default().Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("Config: %s\n", path)

	fmt.Println("\njeffry initialized!")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set your API key:")
	fmt.Println("     export GOOGLE_API_KEY=...")
	fmt.Println("  2. Start chatting:")
	fmt.Println("     jeffry chat")
	fmt.Println("  3. Or serve the Telegram bot:")
	fmt.Println("     export TELEGRAM_BOT_TOKEN=...")
	fmt.Println("     jeffry telegram")

	return nil
}
