package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	verbose      bool
	flagProvider string
	flagModel    string
)

var rootCmd = &cobra.Command{
	Use:   "jeffry",
	Short: "jeffry - a personal assistant that reasons, searches and reminds",
	Long: `jeffry is a personal assistant agent. It answers with a reasoning loop
over tools: web and Wikipedia search, public channel reading, a to-do and
habit planner, and a scheduler that replays reminders at the time you ask.

  jeffry chat            Interactive terminal chat
  jeffry run "<prompt>"  Answer one prompt and exit
  jeffry telegram        Serve the Telegram bot
  jeffry tools           List available tools
  jeffry config          Show configuration`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.jeffry/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&flagProvider, "provider", "p", "", "model provider: gemini, anthropic, openai, openrouter, ollama")
	rootCmd.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "model to use")

	// Add commands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(telegramCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute(ver string) error {
	version = ver
	return rootCmd.Execute()
}

var version string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jeffry %s\n", version)
	},
}
