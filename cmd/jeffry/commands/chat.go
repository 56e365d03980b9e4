package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeffryhq/jeffry/internal/channel"
	"github.com/jeffryhq/jeffry/internal/session"
	"github.com/jeffryhq/jeffry/internal/tui"
	"github.com/spf13/cobra"
)

var (
	chatPlain   bool
	chatSession string
	chatTrace   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start interactive chat",
	Long: `Start an interactive terminal chat with the assistant.

Reminders scheduled during the chat are delivered into it while it runs.

Examples:
  jeffry chat
  jeffry chat --plain            # Plain terminal, no TUI
  jeffry chat --session work     # Separate memory and reminders
  jeffry chat -p anthropic -m claude-sonnet-4-20250514`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "use plain terminal mode (no TUI)")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "chat id; each id has its own memory and reminders (default: a new id)")
	chatCmd.Flags().BoolVar(&chatTrace, "trace", false, "show tool calls in plain mode")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, appOptions{quietLog: !chatPlain})
	if err != nil {
		return err
	}
	defer a.Close()

	if chatSession == "" {
		chatSession = session.GenerateID()
	}
	a.log.Info("chat_started", "chat_id", chatSession)

	if chatPlain {
		return runPlainChat(ctx, a)
	}
	return runTUIChat(ctx, cancel, a)
}

func runPlainChat(ctx context.Context, a *app) error {
	term := channel.NewTerminal(a.cfg.Defaults.Persona, chatSession, channel.WithToolTrace(chatTrace || verbose))

	front, mgr := a.assistant(term, "")
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Stop()

	return ignoreCancel(front.Run(ctx))
}

func runTUIChat(ctx context.Context, cancel context.CancelFunc, a *app) error {
	tuiChan := channel.NewTUIChannel(chatSession)

	front, mgr := a.assistant(tuiChan, "")
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Stop()

	runErr := make(chan error, 1)
	go func() {
		runErr <- front.Run(ctx)
	}()

	chatOutput := make(chan tui.ChatMessage, 100)
	go func() {
		defer close(chatOutput)
		for {
			select {
			case msg := <-tuiChan.TUIOutput():
				select {
				case chatOutput <- tui.ChatMessage{Role: msg.Role, Content: msg.Content, Tool: msg.Tool, At: msg.At}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	err := tui.RunChat(a.cfg.Defaults.Persona, chatSession, tuiChan.UserInput(), chatOutput)

	tuiChan.Stop()
	cancel()
	if runErr := ignoreCancel(<-runErr); err == nil && runErr != nil {
		err = fmt.Errorf("assistant: %w", runErr)
	}
	return err
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
