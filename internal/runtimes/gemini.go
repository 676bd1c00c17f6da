package runtimes

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/termtext"
)

// geminiAdapter drives the Gemini CLI, the most delicate of the supported
// runtimes: Escape defocuses the input box, Ctrl-C on an empty prompt
// quits, Ctrl-U is ignored, and a `!` prompt hands input to the host shell.
type geminiAdapter struct {
	baseAdapter
}

var geminiSignature = regexp.MustCompile(`(?i)/(help|chat|memory|stats|tools)`)

func (a *geminiAdapter) RuntimeType() Type { return GeminiCLI }

func (a *geminiAdapter) Quirks() Quirks { return QuirksFor(GeminiCLI) }

func (a *geminiAdapter) ExecuteRuntimeInitScript(ctx context.Context, session, cwd string, flags []string) error {
	return a.launch(ctx, session, "gemini", flags)
}

func (a *geminiAdapter) DetectRuntimeWithCommand(ctx context.Context, session string, forceRefresh bool) bool {
	return a.detect(ctx, session, forceRefresh, geminiSignature)
}

func (a *geminiAdapter) WaitForRuntimeReady(ctx context.Context, session string, timeout, interval time.Duration) bool {
	return a.waitReady(ctx, session, timeout, interval)
}

// PostInitialize adds the working directory to Gemini's workspace allowlist
// so the registration prompt file under {projectPath}/.agentmux/prompts is
// readable. Failure is non-fatal.
func (a *geminiAdapter) PostInitialize(ctx context.Context, session, cwd string) error {
	if cwd == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := fmt.Sprintf("/directory add %s", cwd)
	if err := a.term.SendMessage(session, cmd); err != nil {
		return fmt.Errorf("workspace allowlist: %w", err)
	}
	return nil
}

// Resume is unsupported; Gemini sessions restart fresh.
func (a *geminiAdapter) Resume(ctx context.Context, session string) error {
	return nil
}

// RecoverFromShellMode sends Escape up to MaxEscapeAttempts times until the
// pane no longer shows the `!` shell-mode prompt. Returns true when the
// session is back in model mode.
func (a *geminiAdapter) RecoverFromShellMode(ctx context.Context, session string) bool {
	for attempt := 0; attempt < MaxEscapeAttempts; attempt++ {
		pane, err := a.term.CapturePane(session, 10)
		if err != nil {
			return false
		}
		if !termtext.InShellMode(pane) {
			return true
		}
		debug.LogKV("runtimes", "escaping shell mode", "session", session, "attempt", attempt+1)
		if err := a.term.SendEscape(session); err != nil {
			return false
		}
		if !sleepCtx(ctx, a.timing.EscapeRetryDelay) {
			return false
		}
	}
	pane, err := a.term.CapturePane(session, 10)
	return err == nil && !termtext.InShellMode(pane)
}
