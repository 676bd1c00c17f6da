package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/stevehuang0115/agentmux/internal/attachtui"
)

var attachCmd = &cobra.Command{
	Use:     "attach <session>",
	Aliases: []string{"watch"},
	Short:   "Watch an agent session's terminal live (read-only)",
	Long: `Mirror the session's terminal into a scrollable viewer. The viewer never
writes to the agent's stdin; use 'agentmux send' or 'agentmux key' to talk
to the agent.

Press q to detach (the agent keeps running).`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().Bool("plain", false, "Stream plain text to stdout instead of the full-screen viewer")
	rootCmd.AddCommand(attachCmd)
}

func runAttach(cmd *cobra.Command, args []string) error {
	plain, _ := cmd.Flags().GetBool("plain")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	runtime := ""
	if rec, ok := a.store.GetRegisteredSession(args[0]); ok {
		runtime = rec.RuntimeType
	}

	cfg := attachtui.Config{
		Backend: a.term,
		Session: args[0],
		Runtime: runtime,
	}

	if plain || !isatty.IsTerminal(os.Stdout.Fd()) {
		return attachtui.RunPlain(context.Background(), cfg, os.Stdout)
	}

	if err := attachtui.Run(cfg); err != nil {
		return err
	}
	fmt.Printf("\n  %sDetached from %s. The agent keeps running.%s\n", colorDim, args[0], colorReset)
	return nil
}
