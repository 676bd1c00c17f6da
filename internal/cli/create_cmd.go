package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/continuation"
	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/detect"
	"github.com/stevehuang0115/agentmux/internal/orchestrator"
	"github.com/stevehuang0115/agentmux/internal/pushover"
	"github.com/stevehuang0115/agentmux/internal/runtimes"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create (or recover) a supervised agent session",
	Long: `Create an agent session: spawn a PTY, launch the configured runtime inside
it, wait for its prompt, and deliver the registration instructions. If a
session with the same name is still alive its runtime is probed and reused
instead of being torn down.

Sessions live inside this process; create keeps running as the supervisor
until Ctrl-C or the agent's process exits.`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().String("session", "", "Session name (required)")
	createCmd.Flags().String("role", "developer", "Agent role (developer, qa, pm, orchestrator)")
	createCmd.Flags().String("project", "", "Project path the agent works in")
	createCmd.Flags().String("member", "", "Team member ID")
	createCmd.Flags().String("team", "", "Team ID")
	createCmd.Flags().String("runtime", "", "Runtime type (claude-code, gemini-cli, codex-cli)")
	createCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	session, _ := cmd.Flags().GetString("session")
	role, _ := cmd.Flags().GetString("role")
	project, _ := cmd.Flags().GetString("project")
	member, _ := cmd.Flags().GetString("member")
	team, _ := cmd.Flags().GetString("team")
	runtime, _ := cmd.Flags().GetString("runtime")

	if rt, err := runtimes.ParseType(runtime); err == nil && !detect.Installed(rt) {
		fmt.Printf("  %swarning:%s %s binary not found; run 'agentmux doctor'\n", styleBoldYellow, colorReset, rt)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	res := a.engine.CreateAgentSession(ctx, orchestrator.CreateAgentSessionRequest{
		SessionName: session,
		Role:        role,
		ProjectPath: project,
		MemberID:    member,
		TeamID:      team,
		RuntimeType: runtime,
	})
	if !res.Success {
		return fmt.Errorf("creating session %s: %s", session, res.Error)
	}

	fmt.Printf("  %s%s%s %s\n", styleBoldGreen, session, colorReset, res.Message)
	fmt.Printf("  %sSupervising. Ctrl-C terminates the agent and exits.%s\n", colorDim, colorReset)

	exited := make(chan struct{})
	unsub, err := a.term.OnExit(session, func() { close(exited) })
	if err == nil {
		defer unsub()
	}

	analyzer := continuation.NewAnalyzer(a.cmdr, 0)
	idle := continuation.NewIdlePoller(a.cmdr, a.timing, 0, func(ev continuation.Event) {
		verdict := analyzer.Analyze(ctx, ev)
		debug.LogKV("cli", "idle analysis",
			"session", ev.SessionName,
			"conclusion", verdict.Conclusion,
			"action", verdict.Action,
		)
		if verdict.Action == continuation.ActionNotifyOwner {
			notifyOwner(session, role, fmt.Sprintf("went quiet: %s", verdict.Conclusion))
		}
	})
	idle.Watch(session)
	idle.Start(ctx)
	defer idle.Stop()

	select {
	case <-sigCh:
		fmt.Printf("\n  %sTerminating %s...%s\n", colorDim, session, colorReset)
		a.engine.TerminateAgentSession(session, role)
	case <-exited:
		verdict := analyzer.Analyze(ctx, continuation.Event{
			Trigger:     continuation.TriggerPTYExit,
			SessionName: session,
			ProjectPath: project,
			Timestamp:   time.Now(),
		})
		fmt.Printf("\n  %s%s exited (%s).%s\n", colorDim, session, verdict.Conclusion, colorReset)
		notifyOwner(session, role, fmt.Sprintf("exited: %s", verdict.Conclusion))
	}
	return nil
}

// notifyOwner pushes a supervision notification when Pushover is configured.
func notifyOwner(session, role, reason string) {
	cfg := config.PushoverFromEnv()
	if !pushover.Configured(cfg) {
		return
	}
	err := pushover.Send(cfg, pushover.Message{
		Title:    "agentmux: " + session,
		Body:     fmt.Sprintf("Session %s (%s) %s. It is no longer making progress.", session, role, reason),
		Priority: pushover.PriorityHigh,
	})
	if err != nil {
		debug.LogKV("cli", "owner notification failed", "session", session, "err", err)
	}
}
