package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health <session>",
	Short: "Probe whether an agent session is alive and ready",
	Args:  cobra.ExactArgs(1),
	RunE:  runHealth,
}

func init() {
	healthCmd.Flags().Duration("wait", 0, "Block until the agent shows an idle prompt (0 = probe once)")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	wait, _ := cmd.Flags().GetDuration("wait")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	role := ""
	if rec, ok := a.store.GetRegisteredSession(args[0]); ok {
		role = rec.Role
	}

	hs := a.engine.CheckAgentHealth(context.Background(), args[0], role, 0)
	running := styleBoldRed + "not running" + colorReset
	if hs.Running {
		running = styleBoldGreen + "running" + colorReset
	}
	printHeader("  Health: " + args[0])
	printField("Process", running)
	printField("Status", statusBadge(hs.Status))
	printField("Checked", hs.Timestamp.Format(time.RFC3339))

	if wait <= 0 {
		return nil
	}
	if !hs.Running {
		return fmt.Errorf("session %s is not running", args[0])
	}

	fmt.Printf("\n  %sWaiting up to %s for an idle prompt...%s\n", colorDim, wait, colorReset)
	if !a.engine.WaitForAgentReady(context.Background(), args[0], wait) {
		return fmt.Errorf("session %s did not reach an idle prompt within %s", args[0], wait)
	}
	fmt.Printf("  %sready%s\n", styleBoldGreen, colorReset)
	return nil
}
