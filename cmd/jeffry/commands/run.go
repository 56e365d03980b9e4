package commands

import (
	"errors"
	"strings"

	"github.com/jeffryhq/jeffry/internal/channel"
	"github.com/spf13/cobra"
)

var runChatID string

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Answer one prompt and exit",
	Long: `Send one prompt through the reasoning loop, print the answer and exit.

The exit code is 1 when no answer could be produced.

Examples:
  jeffry run "what is the capital of Australia?"
  jeffry run "summarize the latest posts of @gonews"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringVar(&runChatID, "chat-id", "cli", "chat id the prompt runs as")
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	task := channel.NewTaskChannel(strings.Join(args, " "), runChatID)
	task.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())

	front, _ := a.assistant(task, "")
	if err := ignoreCancel(front.Run(ctx)); err != nil {
		return err
	}
	if task.Failed() {
		return errors.New("no answer produced")
	}
	return nil
}
