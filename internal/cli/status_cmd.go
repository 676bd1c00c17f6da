package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show orchestrator and team agent statuses",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	orc, err := a.store.GetOrchestratorStatus()
	if err != nil {
		return fmt.Errorf("reading orchestrator status: %w", err)
	}
	printHeader("  Orchestrator")
	printField("Session", orc.SessionName)
	printField("Status", statusBadge(orc.AgentStatus))
	if orc.RuntimeType != "" {
		printField("Runtime", orc.RuntimeType)
	}

	teams, err := a.store.GetTeams()
	if err != nil {
		return fmt.Errorf("reading teams: %w", err)
	}
	if len(teams) == 0 {
		fmt.Println()
		fmt.Println(colorDim + "  No teams configured." + colorReset)
		return nil
	}

	for _, team := range teams {
		printHeader("  Team: " + team.Name)
		var rows [][]string
		for _, m := range team.Members {
			working := m.WorkingStatus
			if working == "" {
				working = "idle"
			}
			rows = append(rows, []string{
				m.Name,
				m.Role,
				m.SessionName,
				m.RuntimeType,
				statusBadge(m.AgentStatus),
				working,
			})
		}
		printTable(
			[]string{"Member", "Role", "Session", "Runtime", "Status", "Working"},
			rows,
		)
	}
	fmt.Println()
	return nil
}
