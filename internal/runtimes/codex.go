package runtimes

import (
	"context"
	"regexp"
	"time"
)

// codexAdapter drives the Codex CLI. It shares the TUI delivery profile with
// Gemini but has neither shell mode nor the Escape defocus problem.
type codexAdapter struct {
	baseAdapter
}

var codexSignature = regexp.MustCompile(`(?i)/(help|model|diff|clear)`)

func (a *codexAdapter) RuntimeType() Type { return CodexCLI }

func (a *codexAdapter) Quirks() Quirks { return QuirksFor(CodexCLI) }

func (a *codexAdapter) ExecuteRuntimeInitScript(ctx context.Context, session, cwd string, flags []string) error {
	return a.launch(ctx, session, "codex", flags)
}

func (a *codexAdapter) DetectRuntimeWithCommand(ctx context.Context, session string, forceRefresh bool) bool {
	return a.detect(ctx, session, forceRefresh, codexSignature)
}

func (a *codexAdapter) WaitForRuntimeReady(ctx context.Context, session string, timeout, interval time.Duration) bool {
	return a.waitReady(ctx, session, timeout, interval)
}

func (a *codexAdapter) PostInitialize(ctx context.Context, session, cwd string) error {
	return nil
}

// Resume is unsupported for the interactive Codex TUI.
func (a *codexAdapter) Resume(ctx context.Context, session string) error {
	return nil
}
