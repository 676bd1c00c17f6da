package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/runtimes"
)

// recoverExisting attempts to reuse a live session: probe the runtime and
// verify registration delivery directly; if the probe fails, interrupt
// whatever is wedged in the foreground and retry once.
func (e *Engine) recoverExisting(ctx context.Context, req CreateAgentSessionRequest, rt runtimes.Type) bool {
	adapter := e.registry.ForType(rt)
	session := req.SessionName

	if adapter.DetectRuntimeWithCommand(ctx, session, false) {
		// Runtime confirmed live; skip the Ctrl-C cleanup.
		if e.deliverRegistrationPrompt(ctx, req, rt, true, 1) == nil {
			debug.LogKV("orchestrator", "recovered via live runtime", "session", session)
			return true
		}
	}

	// Interrupt twice in case the runtime is mid-stream, then re-probe.
	for i := 0; i < 2; i++ {
		if err := e.term.SendCtrlC(session); err != nil {
			return false
		}
		if !sleepCtx(ctx, e.timing.ClearKeyDelay) {
			return false
		}
	}
	e.registry.ClearDetectionCache(session)

	if !adapter.DetectRuntimeWithCommand(ctx, session, true) {
		return false
	}
	if e.deliverRegistrationPrompt(ctx, req, rt, false, 1) == nil {
		debug.LogKV("orchestrator", "recovered after interrupt", "session", session)
		return true
	}
	return false
}

// escalate drives the two-step bring-up. Step A cleans up and re-runs the
// init script in place; Step B recreates the session from scratch and only
// runs when enough budget remains. Step B never runs after Step A succeeds.
func (e *Engine) escalate(ctx context.Context, req CreateAgentSessionRequest, rt runtimes.Type, cwd string, restored bool, start time.Time) error {
	budget := config.RegistrationBudget(req.Role)
	deadline := start.Add(budget)

	stepACtx, cancelA := context.WithTimeout(ctx, minDuration(e.timing.StepATimeout, time.Until(deadline)))
	errA := e.stepA(stepACtx, req, rt, cwd, restored)
	cancelA()
	if errA == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("registration cancelled after %.1fs", time.Since(start).Seconds())
	}
	debug.LogKV("orchestrator", "step A failed", "session", req.SessionName, "err", errA)

	remaining := time.Until(deadline)
	if remaining <= e.timing.StepBMinRemaining {
		return fmt.Errorf("runtime not ready after %.1fs (cleanup+reinit failed, %.1fs remaining is too little for recreation): %v",
			time.Since(start).Seconds(), remaining.Seconds(), errA)
	}

	stepBCtx, cancelB := context.WithTimeout(ctx, minDuration(e.timing.StepBTimeout, remaining))
	errB := e.stepB(stepBCtx, req, rt, cwd, restored)
	cancelB()
	if errB == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("registration cancelled after %.1fs", time.Since(start).Seconds())
	}
	return fmt.Errorf("runtime not ready after %.1fs (step A: %v; step B: %v)",
		time.Since(start).Seconds(), errA, errB)
}

// stepA: cleanup + reinit inside the existing session.
func (e *Engine) stepA(ctx context.Context, req CreateAgentSessionRequest, rt runtimes.Type, cwd string, restored bool) error {
	session := req.SessionName
	adapter := e.registry.ForType(rt)

	if err := e.term.ClearCurrentCommandLine(session); err != nil {
		return err
	}
	if err := adapter.ExecuteRuntimeInitScript(ctx, session, cwd, e.launchFlags(req, rt)); err != nil {
		return fmt.Errorf("init script: %w", err)
	}
	if !adapter.WaitForRuntimeReady(ctx, session, e.timing.ReadyTimeout, e.timing.ReadyPollInterval) {
		return fmt.Errorf("runtime prompt did not appear within %s", e.timing.ReadyTimeout)
	}

	return e.finishBringUp(ctx, req, rt, cwd, restored)
}

// stepB: kill and recreate from scratch.
func (e *Engine) stepB(ctx context.Context, req CreateAgentSessionRequest, rt runtimes.Type, cwd string, restored bool) error {
	session := req.SessionName
	adapter := e.registry.ForType(rt)

	e.killQuietly(session)
	if !sleepCtx(ctx, e.timing.RecreateSettle) {
		return ctx.Err()
	}

	if _, err := e.backend.CreateSession(session, cwd); err != nil {
		return fmt.Errorf("recreating session: %w", err)
	}
	e.registerForPersistence(req, rt, cwd)
	e.exportEnvironment(session, req.Role)
	e.registry.ClearDetectionCache(session)

	if err := adapter.ExecuteRuntimeInitScript(ctx, session, cwd, e.launchFlags(req, rt)); err != nil {
		return fmt.Errorf("init script: %w", err)
	}
	if !adapter.WaitForRuntimeReady(ctx, session, config.StepBReadyTimeout(req.Role), e.timing.ReadyPollInterval) {
		return fmt.Errorf("runtime prompt did not appear within %s", config.StepBReadyTimeout(req.Role))
	}

	// The orchestrator boots more infrastructure; give it extra settle and
	// confirm it still answers.
	if config.IsOrchestrator(req.Role) {
		if !sleepCtx(ctx, e.timing.OrchestratorSettle) {
			return ctx.Err()
		}
		if !adapter.DetectRuntimeWithCommand(ctx, session, true) {
			return fmt.Errorf("orchestrator runtime unresponsive after recreation")
		}
	}

	return e.finishBringUp(ctx, req, rt, cwd, restored)
}

// finishBringUp is the shared tail of both steps once the prompt is up:
// exit monitoring, post-init hooks, residual drain, resume, and the async
// registration prompt.
func (e *Engine) finishBringUp(ctx context.Context, req CreateAgentSessionRequest, rt runtimes.Type, cwd string, restored bool) error {
	session := req.SessionName
	adapter := e.registry.ForType(rt)

	if err := e.exits.Start(session, string(rt), req.Role); err != nil {
		debug.LogKV("orchestrator", "exit monitor start failed", "session", session, "err", err)
	}

	if err := adapter.PostInitialize(ctx, session, cwd); err != nil {
		debug.LogKV("orchestrator", "post-init failed", "session", session, "err", err)
	}

	// Let residual escape sequences from the runtime's boot drain before
	// touching the input box.
	if !sleepCtx(ctx, e.timing.ResidualDrain) {
		return ctx.Err()
	}
	if rt == runtimes.ClaudeCode {
		if err := e.term.ClearCurrentCommandLine(session); err != nil {
			return err
		}
	}

	if restored && adapter.Quirks().SupportsResume {
		if err := adapter.Resume(ctx, session); err != nil {
			debug.LogKV("orchestrator", "resume failed", "session", session, "err", err)
		}
	}

	// Registration is fired in the background under the session's cancel
	// entry; "started" does not wait for the agent to read its prompt.
	regCtx, regGen, regCancel := e.registrationContext(session)
	go func() {
		defer e.clearCancel(session, regGen, regCancel)
		if err := e.deliverRegistrationPrompt(regCtx, req, rt, false, 0); err != nil {
			debug.LogKV("orchestrator", "registration prompt failed", "session", session, "err", err)
		}
	}()

	return nil
}

// registrationContext installs a fresh cancel entry for the async
// registration phase, chained to any in-flight creation cancel so either
// CancelPendingRegistration or an exit aborts both.
func (e *Engine) registrationContext(sessionName string) (context.Context, uint64, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelMu.Lock()
	prev := e.cancels[sessionName]
	e.cancelGen++
	gen := e.cancelGen
	chained := func() {
		cancel()
		if prev.cancel != nil {
			prev.cancel()
		}
	}
	e.cancels[sessionName] = cancelEntry{cancel: chained, gen: gen}
	e.cancelMu.Unlock()
	return ctx, gen, cancel
}

func (e *Engine) launchFlags(req CreateAgentSessionRequest, rt runtimes.Type) []string {
	var overrides, exclusions []string
	if !config.IsOrchestrator(req.Role) {
		if _, member, err := e.st.FindMemberBySessionName(req.SessionName); err == nil {
			overrides = member.SkillOverrides
			exclusions = member.ExcludedRoleSkills
		}
	}
	return runtimes.ResolveRuntimeFlags(req.Role, overrides, exclusions, rt)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
