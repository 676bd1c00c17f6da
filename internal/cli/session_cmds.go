package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var terminateCmd = &cobra.Command{
	Use:   "terminate <session>",
	Short: "Terminate an agent session and clear its record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		role := ""
		if rec, ok := a.store.GetRegisteredSession(args[0]); ok {
			role = rec.Role
		}
		res := a.engine.TerminateAgentSession(args[0], role)
		if !res.Success {
			return fmt.Errorf("terminating %s: %s", args[0], res.Error)
		}
		fmt.Printf("  %s%s%s terminated\n", styleBoldYellow, args[0], colorReset)
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <session> <message...>",
	Short: "Deliver a message to an agent with verification and retries",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		message := strings.Join(args[1:], " ")
		if err := a.engine.SendMessageToAgent(args[0], message); err != nil {
			return fmt.Errorf("sending to %s: %w", args[0], err)
		}
		fmt.Printf("  %sdelivered%s to %s\n", styleBoldGreen, colorReset, args[0])
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key <session> <key>",
	Short: "Send a single key (Enter, Escape, Ctrl-C, Up, ...) to a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		res := a.engine.SendKeyToAgent(args[0], args[1])
		if !res.Success {
			return fmt.Errorf("sending key to %s: %s", args[0], res.Error)
		}
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls"},
	Short:   "List supervised agent sessions",
	RunE:    runSessions,
}

func init() {
	rootCmd.AddCommand(terminateCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	sessions, err := a.store.Sessions()
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println(colorDim + "  No supervised sessions." + colorReset)
		fmt.Println("  Start one with " + styleBoldWhite + "agentmux create --session <name>" + colorReset)
		return nil
	}

	printHeader("  Sessions")
	var rows [][]string
	for _, s := range sessions {
		alive := colorDim + "dead" + colorReset
		if a.term.SessionExists(s.SessionName) {
			alive = styleBoldGreen + "live" + colorReset
		} else if a.store.IsRestoredSession(s.SessionName) {
			alive = styleBoldYellow + "restored" + colorReset
		}
		project := s.Cwd
		if project == "" {
			project = "-"
		}
		rows = append(rows, []string{
			s.SessionName,
			s.Role,
			s.RuntimeType,
			project,
			alive,
			formatAge(s.CreatedAt),
		})
	}
	printTable(
		[]string{"Session", "Role", "Runtime", "Project", "State", "Age"},
		rows,
	)
	fmt.Println()
	return nil
}
