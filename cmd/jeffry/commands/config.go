package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/jeffryhq/jeffry/internal/config"
	"github.com/spf13/cobra"
)

var configJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage jeffry configuration.

Subcommands:
  show                   Show the effective configuration
  path                   Show config file path`,
}

func init() {
	configShowCmd.Flags().BoolVar(&configJSON, "json", false, "output as JSON")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configuration",
	Long: `Show the configuration after defaults, the config file and environment
overrides are applied. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		masked := maskSecrets(cfg)

		if configJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(masked)
		}
		return toml.NewEncoder(os.Stdout).Encode(masked)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			fmt.Println(cfgFile)
			return
		}
		fmt.Println(config.ConfigPath())
	},
}

func maskSecrets(cfg *config.Config) *config.Config {
	out := *cfg
	out.Provider = make(map[string]config.ProviderConfig, len(cfg.Provider))
	for name, p := range cfg.Provider {
		p.APIKey = mask(p.APIKey)
		out.Provider[name] = p
	}
	out.Channel.Telegram.Token = mask(cfg.Channel.Telegram.Token)
	return &out
}

func mask(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
