package runtimes

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/terminal"
	"github.com/stevehuang0115/agentmux/internal/termtext"
)

// baseAdapter carries the machinery shared by all runtime adapters: launch
// command composition, slash-probe detection, and prompt polling.
type baseAdapter struct {
	term   Term
	timing config.Timing
	cache  *detectCache
}

// launch types `binary flag...` into the session followed by Enter.
func (b *baseAdapter) launch(ctx context.Context, session, binary string, flags []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parts := append([]string{binary}, flags...)
	cmd := strings.Join(parts, " ")
	debug.LogKV("runtimes", "launching runtime", "session", session, "command", cmd)
	return b.term.SendMessage(session, cmd)
}

// detect sends a slash probe and looks for the runtime's command-menu
// signature in the pane. The probe character is removed afterwards with a
// backspace, which is focus-safe on every supported runtime.
func (b *baseAdapter) detect(ctx context.Context, session string, forceRefresh bool, signature *regexp.Regexp) bool {
	if !b.term.SessionExists(session) {
		b.cache.invalidate(session)
		return false
	}
	if !forceRefresh {
		if present, ok := b.cache.get(session); ok {
			return present
		}
	}
	if err := b.term.Type(session, "/"); err != nil {
		b.cache.put(session, false)
		return false
	}
	if !sleepCtx(ctx, b.timing.DetectProbeDelay) {
		return false
	}

	pane, err := b.term.CapturePane(session, 50)
	present := err == nil && signature.MatchString(termtext.StripAnsi(pane))

	// Remove the probe character regardless of outcome.
	_ = b.term.SendKey(session, terminal.KeyBackspace)

	b.cache.put(session, present)
	debug.LogKV("runtimes", "slash probe", "session", session, "present", present)
	return present
}

// waitReady polls the pane for an idle prompt.
func (b *baseAdapter) waitReady(ctx context.Context, session string, timeout, interval time.Duration) bool {
	if timeout <= 0 {
		timeout = b.timing.ReadyTimeout
	}
	if interval <= 0 {
		interval = b.timing.ReadyPollInterval
	}
	deadline := time.Now().Add(timeout)
	for {
		if ctx.Err() != nil {
			return false
		}
		pane, err := b.term.CapturePane(session, 30)
		if err == nil && termtext.IsAtPrompt(pane) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		if !sleepCtx(ctx, interval) {
			return false
		}
	}
}

// sleepCtx waits for d or until ctx is cancelled. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
