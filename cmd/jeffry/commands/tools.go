package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jeffryhq/jeffry/internal/scheduler"
	"github.com/jeffryhq/jeffry/internal/tool"
	"github.com/spf13/cobra"
)

var toolsCategory string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the assistant can use",
	Long: `List the tools registered for a chat with the current configuration.

Examples:
  jeffry tools
  jeffry tools --category search`,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().StringVarP(&toolsCategory, "category", "c", "", "only show one category: scheduling, search, channels, planner, utility")
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appOptions{noProvider: true})
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.schedulerOptions()...)
	reg, err := tool.NewRegistryFor(a.kit.Build("cli", sched))
	if err != nil {
		return err
	}

	tools := reg.List(tool.Category(toolsCategory))
	var delegates []tool.SubAgent
	for _, d := range a.kit.SubAgents() {
		if toolsCategory == "" || d.Category == tool.Category(toolsCategory) {
			delegates = append(delegates, d)
		}
	}
	if len(tools) == 0 && len(delegates) == 0 {
		fmt.Println("No tools found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY\tDESCRIPTION")
	for _, t := range tools {
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name(), t.Category(), firstLine(t.Description()))
	}
	for _, d := range delegates {
		fmt.Fprintf(w, "%s\t%s\t(delegate) %s\n", d.Name, d.Category, firstLine(d.Description))
	}
	return w.Flush()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
