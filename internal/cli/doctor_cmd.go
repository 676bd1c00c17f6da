package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/detect"
	"github.com/stevehuang0115/agentmux/internal/pushover"
	"github.com/stevehuang0115/agentmux/internal/runtimes"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check which runtime CLIs are installed and what is configured",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	printHeader("  Runtimes")
	found := detect.Scan()
	installed := make(map[runtimes.Type]detect.DetectedRuntime, len(found))
	for _, d := range found {
		installed[d.Type] = d
	}

	var rows [][]string
	for _, rt := range []runtimes.Type{runtimes.ClaudeCode, runtimes.GeminiCLI, runtimes.CodexCLI} {
		if d, ok := installed[rt]; ok {
			rows = append(rows, []string{
				string(rt),
				styleBoldGreen + "installed" + colorReset,
				d.Version,
				d.Path,
			})
		} else {
			rows = append(rows, []string{
				string(rt),
				styleBoldRed + "missing" + colorReset,
				"-",
				"-",
			})
		}
	}
	printTable([]string{"Runtime", "State", "Version", "Path"}, rows)

	printHeader("  Notifications")
	if pushover.Configured(config.PushoverFromEnv()) {
		printField("Pushover", styleBoldGreen+"configured"+colorReset)
	} else {
		printField("Pushover", colorDim+"not configured"+colorReset)
	}

	printHeader("  Home")
	printField("Directory", config.Home())
	fmt.Println()
	return nil
}
