// Package delivery pushes messages into interactive runtime sessions and
// verifies they actually arrived. Injected keystrokes race the runtime's own
// rendering, so every send is followed by an observation of the pane and, on
// failure, a best-effort cleanup back to an empty prompt.
package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/runtimes"
	"github.com/stevehuang0115/agentmux/internal/store"
	"github.com/stevehuang0115/agentmux/internal/termtext"
)

// ErrDeliveryFailed is returned after every attempt has been exhausted. The
// text is part of the public contract; callers match on it.
var ErrDeliveryFailed = errors.New("Failed to deliver message after multiple attempts")

// DefaultMaxAttempts applies when the caller passes zero.
const DefaultMaxAttempts = 3

// stuckTailLines is how much of the pane tail stuck detection inspects.
const stuckTailLines = 20

// tuiCaptureLines is the before/after window compared for TUI verification.
const tuiCaptureLines = 20

// Term is the slice of the session command helper the engine drives.
type Term interface {
	CapturePane(name string, lines int) (string, error)
	SendMessage(name, text string) error
	SendEnter(name string) error
	SendCtrlC(name string) error
	SendEscape(name string) error
	ClearCurrentCommandLine(name string) error
}

// Recorder persists delivery outcomes. The store satisfies this; a nil
// recorder disables logging.
type Recorder interface {
	RecordDelivery(log store.DeliveryLog) error
}

type Engine struct {
	term     Term
	timing   config.Timing
	recorder Recorder
}

func NewEngine(term Term, timing config.Timing, recorder Recorder) *Engine {
	return &Engine{term: term, timing: timing, recorder: recorder}
}

// SendMessageWithRetry delivers message to the session, verifying arrival
// after each attempt. Concurrent deliveries to the same session are the
// caller's responsibility to serialize. After a verified attempt no further
// keystrokes are sent.
func (e *Engine) SendMessageWithRetry(ctx context.Context, session, message string, maxAttempts int, rt runtimes.Type) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	quirks := runtimes.QuirksFor(rt)

	attempts := 0
	var lastErr error
	for attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			e.record(session, message, false, attempts, err)
			return err
		}
		attempts++

		delivered, err := e.attempt(ctx, session, message, quirks)
		if err != nil {
			lastErr = err
		}
		if delivered {
			debug.LogKV("delivery", "message delivered", "session", session, "attempt", attempts)
			e.record(session, message, true, attempts, nil)
			return nil
		}
		debug.LogKV("delivery", "attempt failed", "session", session, "attempt", attempts, "err", err)

		if attempts < maxAttempts {
			if !sleepCtx(ctx, e.timing.RetryDelay) {
				e.record(session, message, false, attempts, ctx.Err())
				return ctx.Err()
			}
		}
	}

	e.record(session, message, false, attempts, lastErr)
	return ErrDeliveryFailed
}

// attempt runs one delivery attempt. A false return with nil error means the
// attempt was skipped or verification failed; the caller decides whether to
// retry.
func (e *Engine) attempt(ctx context.Context, session, message string, quirks runtimes.Quirks) (bool, error) {
	pane, err := e.term.CapturePane(session, terminalCaptureLines)
	if err != nil {
		return false, err
	}

	// Prompt gate: without an idle prompt the input box is not accepting.
	if !termtext.IsAtPrompt(pane) {
		sleepCtx(ctx, e.timing.NotAtPromptDelay)
		return false, nil
	}

	// Shell-mode guard: in Gemini's `!` mode the host shell would execute
	// the message.
	if quirks.HasShellMode && termtext.InShellMode(pane) {
		if !e.escapeShellMode(ctx, session) {
			return false, nil
		}
	}

	// Pre-clear leftover input.
	if quirks.IsTUI {
		// Enter is a safe no-op on an empty TUI prompt and re-focuses a
		// defocused input box.
		if err := e.term.SendEnter(session); err != nil {
			return false, err
		}
		if !sleepCtx(ctx, e.timing.PreClearTUI) {
			return false, ctx.Err()
		}
	} else {
		if err := e.term.SendCtrlC(session); err != nil {
			return false, err
		}
		if !sleepCtx(ctx, e.timing.PreClearClaude) {
			return false, ctx.Err()
		}
	}

	var before string
	if quirks.IsTUI {
		if before, err = e.term.CapturePane(session, tuiCaptureLines); err != nil {
			return false, err
		}
	}

	if err := e.term.SendMessage(session, message); err != nil {
		return false, err
	}

	settle := e.timing.SettleClaude
	if quirks.IsTUI {
		settle = e.timing.SettleTUI
	}
	if !sleepCtx(ctx, settle) {
		return false, ctx.Err()
	}

	if quirks.IsTUI {
		return e.verifyTUI(ctx, session, before, quirks)
	}
	return e.verifyClaude(session, message)
}

const terminalCaptureLines = 50

// verifyClaude checks that the message is no longer sitting in the input
// box: if its search token still shows in the pane tail, the prompt is
// stuck.
func (e *Engine) verifyClaude(session, message string) (bool, error) {
	pane, err := e.term.CapturePane(session, terminalCaptureLines)
	if err != nil {
		return false, err
	}

	token := termtext.SearchToken(message)
	stuck := false
	if token != "" {
		for _, line := range termtext.TailLines(pane, stuckTailLines) {
			if strings.Contains(line, token) {
				stuck = true
				break
			}
		}
	}
	if !stuck {
		return true, nil
	}

	// Leave an empty prompt behind for the next attempt.
	if err := e.term.ClearCurrentCommandLine(session); err != nil {
		return false, err
	}
	return false, nil
}

// verifyTUI compares the pane before and after the send. Runtimes that keep
// their prompt visible while processing give no "prompt disappeared" signal,
// so growth, meaningful change, or activity indicators stand in for it.
func (e *Engine) verifyTUI(ctx context.Context, session, before string, quirks runtimes.Quirks) (bool, error) {
	after, err := e.term.CapturePane(session, tuiCaptureLines)
	if err != nil {
		return false, err
	}

	beforeClean := termtext.StripAnsi(before)
	afterClean := termtext.StripAnsi(after)
	diff := len(afterClean) - len(beforeClean)
	changed := afterClean != beforeClean

	delivered := diff > 20 ||
		(changed && abs(diff) > 10) ||
		termtext.ProcessingRe.MatchString(afterClean) ||
		termtext.DeliveryKeywordRe.MatchString(afterClean)
	if delivered {
		return true, nil
	}

	// Cleanup: an unchanged pane means the input box is likely defocused
	// (or still empty), so Enter re-engages it where ESC defocuses and
	// Ctrl-C on an empty prompt would quit. A changed pane holds our text,
	// so Ctrl-C is safe.
	if !changed && (quirks.EscapeDefocusesInput || quirks.CtrlCQuitsOnEmptyPrompt) {
		if err := e.term.SendEnter(session); err != nil {
			return false, err
		}
	} else {
		if err := e.term.SendCtrlC(session); err != nil {
			return false, err
		}
	}
	return false, nil
}

// escapeShellMode sends Escape until the `!` prompt is gone, bounded by
// MaxEscapeAttempts.
func (e *Engine) escapeShellMode(ctx context.Context, session string) bool {
	for i := 0; i < runtimes.MaxEscapeAttempts; i++ {
		if err := e.term.SendEscape(session); err != nil {
			return false
		}
		if !sleepCtx(ctx, e.timing.EscapeRetryDelay) {
			return false
		}
		pane, err := e.term.CapturePane(session, 10)
		if err != nil {
			return false
		}
		if !termtext.InShellMode(pane) {
			return true
		}
	}
	return false
}

func (e *Engine) record(session, message string, success bool, attempts int, err error) {
	if e.recorder == nil {
		return
	}
	log := store.DeliveryLog{
		SessionName: session,
		Message:     message,
		Success:     success,
		Attempts:    attempts,
	}
	if err != nil {
		log.Error = err.Error()
	} else if !success {
		log.Error = ErrDeliveryFailed.Error()
	}
	if rerr := e.recorder.RecordDelivery(log); rerr != nil {
		debug.LogKV("delivery", "failed to record delivery log", "session", session, "err", rerr)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

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
