package commands

import (
	"fmt"

	"github.com/jeffryhq/jeffry/internal/channel"
	"github.com/spf13/cobra"
)

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Serve the Telegram bot",
	Long: `Run the assistant as a Telegram bot using long polling.

Every chat gets its own memory and reminders. The bot token comes from
channel.telegram.token in the config or TELEGRAM_BOT_TOKEN.

Commands understood by the bot:
  /start  /help  /info  /tasks`,
	RunE: runTelegram,
}

func runTelegram(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	tc := a.cfg.Channel.Telegram
	if tc.Token == "" {
		return fmt.Errorf("telegram bot token not set (channel.telegram.token or TELEGRAM_BOT_TOKEN)")
	}
	bot, err := channel.NewTelegram(channel.TelegramConfig{
		Token:       tc.Token,
		APIBase:     tc.APIBase,
		PollTimeout: tc.PollTimeout.Duration,
		Logger:      a.log,
	})
	if err != nil {
		return err
	}
	defer bot.Stop()

	front, mgr := a.assistant(bot, tc.Thinking)
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Stop()

	a.log.Info("telegram_started", "persona", a.cfg.Defaults.Persona)
	err = ignoreCancel(front.Run(ctx))
	a.log.Info("telegram_stopped")
	return err
}
