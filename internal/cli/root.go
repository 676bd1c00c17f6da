package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/stevehuang0115/agentmux/internal/buildinfo"
	"github.com/stevehuang0115/agentmux/internal/debug"
)

const (
	// ANSI color codes
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"

	// Combined styles
	styleBoldCyan   = "\033[1;36m"
	styleBoldGreen  = "\033[1;32m"
	styleBoldYellow = "\033[1;33m"
	styleBoldRed    = "\033[1;31m"
	styleBoldWhite  = "\033[1;37m"
)

var rootCmd = &cobra.Command{
	Use:   "agentmux",
	Short: "Supervisor for interactive AI CLI agents",
	Long: colorBold + `
                        _
   __ _  __ _  ___ _ __| |_ _ __ ___  _   ___  __
  / _` + "`" + ` |/ _` + "`" + ` |/ _ \ '_ \ __| '_ ` + "`" + ` _ \| | | \ \/ /
 | (_| | (_| |  __/ | | | |_| | | | | | |_| |>  <
  \__,_|\__, |\___|_| |_|\__|_| |_| |_|\__,_/_/\_\
        |___/` + colorReset + `

  ` + styleBoldCyan + `agentmux` + colorReset + ` v` + buildinfo.Current().Version + `

  Run AI CLI agents (Claude Code, Gemini CLI, Codex CLI) inside supervised
  PTY sessions: create them, keep them registered, deliver messages with
  verification, and watch them die gracefully.

` + colorBold + `Getting Started:` + colorReset + `
  agentmux create --session dev-1 --role developer --project ~/work/app
  agentmux send dev-1 "Start with the failing tests"
  agentmux attach dev-1               Watch the agent's terminal live
  agentmux sessions                   List supervised sessions

` + colorBold + `Supported Runtimes:` + colorReset + `
  claude-code, gemini-cli, codex-cli`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdout.Fd()) {
			return runSessions(cmd, args)
		}
		return cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = buildinfo.Current().Short()
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.agentmux/debug/")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && !debug.ShouldEnableFromEnv() {
			return nil
		}
		logPath, err := debug.Init()
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s[debug]%s logging to %s\n", colorDim, colorReset, logPath)
		bi := buildinfo.Current()
		debug.LogKV("cli", "agentmux starting",
			"version", bi.Version,
			"commit", bi.CommitHash,
			"build_date", bi.BuildDate,
			"pid", os.Getpid(),
			"command", cmd.Name(),
			"args", args,
		)
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%sError: %s%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	debug.Log("cli", "exit success")
}
