package runtimes

import (
	"context"
	"regexp"
	"time"
)

// claudeAdapter drives the Claude Code CLI. Claude accepts injected input
// reliably and supports /resume, so it gets the lightest-touch handling.
type claudeAdapter struct {
	baseAdapter
}

// claudeSignature matches the slash-command menu Claude Code renders after a
// bare "/" is typed.
var claudeSignature = regexp.MustCompile(`(?i)/(help|clear|resume|compact|model)`)

func (a *claudeAdapter) RuntimeType() Type { return ClaudeCode }

func (a *claudeAdapter) Quirks() Quirks { return QuirksFor(ClaudeCode) }

func (a *claudeAdapter) ExecuteRuntimeInitScript(ctx context.Context, session, cwd string, flags []string) error {
	return a.launch(ctx, session, "claude", flags)
}

func (a *claudeAdapter) DetectRuntimeWithCommand(ctx context.Context, session string, forceRefresh bool) bool {
	return a.detect(ctx, session, forceRefresh, claudeSignature)
}

func (a *claudeAdapter) WaitForRuntimeReady(ctx context.Context, session string, timeout, interval time.Duration) bool {
	return a.waitReady(ctx, session, timeout, interval)
}

// PostInitialize is a no-op for Claude Code: it needs no workspace
// allowlisting and its permission mode is handled by launch flags.
func (a *claudeAdapter) PostInitialize(ctx context.Context, session, cwd string) error {
	return nil
}

// Resume restores the most recent Claude session: /resume opens the session
// picker, Enter selects the top (most recent) entry, then the prompt is
// re-awaited. Callers treat failure as non-fatal.
func (a *claudeAdapter) Resume(ctx context.Context, session string) error {
	if err := a.term.SendMessage(session, "/resume"); err != nil {
		return err
	}
	if !sleepCtx(ctx, a.timing.ResumePickerDelay) {
		return ctx.Err()
	}
	if err := a.term.SendEnter(session); err != nil {
		return err
	}
	if !sleepCtx(ctx, a.timing.ResumeEnterDelay) {
		return ctx.Err()
	}
	a.waitReady(ctx, session, a.timing.ResumeReadyBudget, a.timing.ReadyPollInterval)
	return nil
}
