// Package orchestrator is the agent registration engine: it creates and
// recovers agent sessions, escalates through cleanup and recreation when a
// runtime refuses to come up, delivers the registration prompt, and owns the
// per-session cancellation map that aborts all of it the moment the PTY
// dies.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/events"
	"github.com/stevehuang0115/agentmux/internal/exitwatch"
	"github.com/stevehuang0115/agentmux/internal/runtimes"
	"github.com/stevehuang0115/agentmux/internal/store"
	"github.com/stevehuang0115/agentmux/internal/terminal"
)

// Backend is the session backend slice the engine drives directly.
// *terminal.Service implements it.
type Backend interface {
	CreateSession(name, cwd string) (*terminal.SessionInfo, error)
	SessionExists(name string) bool
	KillSession(name string) error
	SetEnvironmentVariable(name, key, value string) error
	OnData(name string, cb func([]byte)) (func(), error)
	CapturePane(name string, lines int) (string, error)
}

// Term is the keystroke surface. *terminal.Commander implements it.
type Term interface {
	runtimes.Term
	SendCtrlC(name string) error
}

// Registry resolves runtime adapters. *runtimes.Registry implements it.
type Registry interface {
	ForType(t runtimes.Type) runtimes.Adapter
	ClearDetectionCache(session string)
}

// Deliverer pushes verified messages into sessions. *delivery.Engine
// implements it.
type Deliverer interface {
	SendMessageWithRetry(ctx context.Context, session, message string, maxAttempts int, rt runtimes.Type) error
}

// Publisher receives agent lifecycle events. *eventbus.Bus implements it; a
// nil publisher disables events.
type Publisher interface {
	Publish(ev events.AgentEvent)
}

// Briefer supplies the startup briefing appended to registration prompts.
// External memory services implement it; nil disables briefings.
type Briefer interface {
	StartupBriefing(sessionName, role string) (string, error)
}

// Engine wires the backend, runtime adapters, delivery, storage, and exit
// monitoring into the public agent lifecycle operations.
type Engine struct {
	backend  Backend
	term     Term
	registry Registry
	deliver  Deliverer
	st       *store.Store
	exits    *exitwatch.Monitor
	bus      Publisher
	briefer  Briefer
	timing   config.Timing

	cancelMu  sync.Mutex
	cancels   map[string]cancelEntry
	cancelGen uint64

	tplMu     sync.Mutex
	templates map[string]string
}

func New(backend Backend, term Term, registry Registry, deliver Deliverer, st *store.Store, exits *exitwatch.Monitor, bus Publisher, briefer Briefer, timing config.Timing) *Engine {
	e := &Engine{
		backend:   backend,
		term:      term,
		registry:  registry,
		deliver:   deliver,
		st:        st,
		exits:     exits,
		bus:       bus,
		briefer:   briefer,
		timing:    timing,
		cancels:   make(map[string]cancelEntry),
		templates: make(map[string]string),
	}
	exits.SetOnExitDetected(e.handleSessionExit)
	return e
}

// CreateAgentSessionRequest describes the session to create or recover.
type CreateAgentSessionRequest struct {
	SessionName string
	Role        string
	ProjectPath string
	MemberID    string
	RuntimeType string
	TeamID      string
}

// CreateAgentSessionResult reports the outcome. Error is empty on success.
type CreateAgentSessionResult struct {
	Success     bool
	SessionName string
	Message     string
	Error       string
}

// OperationResult is the outcome shape shared by terminate/send operations.
type OperationResult struct {
	Success bool
	Message string
	Error   string
}

// CreateAgentSession creates or recovers an agent session, drives the
// runtime up via the two-step escalation, and fires the registration prompt
// in the background. It blocks until the session is started or the
// role-dependent budget is spent.
func (e *Engine) CreateAgentSession(ctx context.Context, req CreateAgentSessionRequest) CreateAgentSessionResult {
	start := time.Now()
	session := req.SessionName

	rt, err := e.resolveRuntimeType(req)
	if err != nil {
		return CreateAgentSessionResult{SessionName: session, Error: err.Error()}
	}

	ctx, cancel := context.WithCancel(ctx)
	gen := e.bindCancel(session, cancel)
	defer e.clearCancel(session, gen, cancel)

	e.setAgentStatus(req, string(events.StatusInactive), string(events.StatusActivating))

	cwd := req.ProjectPath
	if cwd == "" {
		cwd = config.Home()
	}

	restored := e.st.IsRestoredSession(session)

	if e.backend.SessionExists(session) {
		if e.recoverExisting(ctx, req, rt) {
			e.registerForPersistence(req, rt, cwd)
			e.setAgentStatus(req, string(events.StatusActivating), string(events.StatusStarted))
			return CreateAgentSessionResult{
				Success:     true,
				SessionName: session,
				Message:     "recovered existing session",
			}
		}
		debug.LogKV("orchestrator", "recovery failed, recreating", "session", session)
		e.killQuietly(session)
		if !sleepCtx(ctx, e.timing.RecreateSettle) {
			return e.cancelled(req, start)
		}
	}

	if _, err := e.backend.CreateSession(session, cwd); err != nil {
		e.setAgentStatus(req, string(events.StatusActivating), string(events.StatusInactive))
		return CreateAgentSessionResult{SessionName: session, Error: fmt.Sprintf("creating session: %v", err)}
	}
	if !e.backend.SessionExists(session) {
		e.setAgentStatus(req, string(events.StatusActivating), string(events.StatusInactive))
		return CreateAgentSessionResult{SessionName: session, Error: "session vanished after creation"}
	}

	e.registerForPersistence(req, rt, cwd)
	e.exportEnvironment(session, req.Role)

	if err := e.escalate(ctx, req, rt, cwd, restored, start); err != nil {
		e.setAgentStatus(req, string(events.StatusActivating), string(events.StatusInactive))
		return CreateAgentSessionResult{
			SessionName: session,
			Error:       err.Error(),
		}
	}

	e.setAgentStatus(req, string(events.StatusActivating), string(events.StatusStarted))
	return CreateAgentSessionResult{
		Success:     true,
		SessionName: session,
		Message:     fmt.Sprintf("session started in %.1fs", time.Since(start).Seconds()),
	}
}

// TerminateAgentSession stops monitoring, kills the session, and clears the
// persisted record. Kill errors are swallowed; the record always goes away.
func (e *Engine) TerminateAgentSession(sessionName, role string) OperationResult {
	e.CancelPendingRegistration(sessionName)
	e.exits.Stop(sessionName)

	if err := e.backend.KillSession(sessionName); err != nil {
		debug.LogKV("orchestrator", "kill during terminate failed", "session", sessionName, "err", err)
	}
	if err := e.st.UnregisterSession(sessionName); err != nil {
		debug.LogKV("orchestrator", "unregister failed", "session", sessionName, "err", err)
	}
	if err := e.st.UpdateAgentStatus(sessionName, string(events.StatusInactive)); err != nil {
		debug.LogKV("orchestrator", "status update failed", "session", sessionName, "err", err)
	}
	e.publish(events.AgentEvent{
		Type:         events.TypeTerminated,
		SessionName:  sessionName,
		NewValue:     string(events.StatusInactive),
		ChangedField: events.FieldAgentStatus,
	})
	return OperationResult{Success: true, Message: "session terminated"}
}

// SendMessageToAgent delivers a message through the verification engine,
// resolving the runtime type from persistence. Satisfies eventbus.Notifier.
func (e *Engine) SendMessageToAgent(sessionName, message string) error {
	rt := e.runtimeTypeFor(sessionName)
	return e.deliver.SendMessageWithRetry(context.Background(), sessionName, message, 0, rt)
}

// SendKeyToAgent sends one symbolic key to the session.
func (e *Engine) SendKeyToAgent(sessionName, key string) OperationResult {
	k, ok := terminal.ParseKey(key)
	if !ok {
		return OperationResult{Error: fmt.Sprintf("unknown key %q", key)}
	}
	if err := e.term.SendKey(sessionName, k); err != nil {
		return OperationResult{Error: err.Error()}
	}
	return OperationResult{Success: true}
}

// cancelEntry ties an abort function to the generation that installed it so
// stale cleanups cannot remove a newer registration's entry.
type cancelEntry struct {
	cancel context.CancelFunc
	gen    uint64
}

// CancelPendingRegistration fires the abort signal for any in-flight
// registration on the session. Idempotent.
func (e *Engine) CancelPendingRegistration(sessionName string) {
	e.cancelMu.Lock()
	entry, ok := e.cancels[sessionName]
	if ok {
		delete(e.cancels, sessionName)
	}
	e.cancelMu.Unlock()
	if ok {
		debug.LogKV("orchestrator", "registration cancelled", "session", sessionName)
		entry.cancel()
	}
}

func (e *Engine) handleSessionExit(sessionName string) {
	e.CancelPendingRegistration(sessionName)
	if err := e.st.UpdateAgentStatus(sessionName, string(events.StatusInactive)); err != nil {
		debug.LogKV("orchestrator", "status update on exit failed", "session", sessionName, "err", err)
	}
	e.publish(events.AgentEvent{
		Type:         events.TypeTerminated,
		SessionName:  sessionName,
		NewValue:     string(events.StatusInactive),
		ChangedField: events.FieldAgentStatus,
	})
}

func (e *Engine) bindCancel(sessionName string, cancel context.CancelFunc) uint64 {
	e.cancelMu.Lock()
	// A previous pending registration for the same name loses.
	if old, ok := e.cancels[sessionName]; ok {
		old.cancel()
	}
	e.cancelGen++
	gen := e.cancelGen
	e.cancels[sessionName] = cancelEntry{cancel: cancel, gen: gen}
	e.cancelMu.Unlock()
	return gen
}

// clearCancel removes the entry only if it is still the one this generation
// installed; the async registration phase may have replaced it.
func (e *Engine) clearCancel(sessionName string, gen uint64, cancel context.CancelFunc) {
	e.cancelMu.Lock()
	if entry, ok := e.cancels[sessionName]; ok && entry.gen == gen {
		delete(e.cancels, sessionName)
	}
	e.cancelMu.Unlock()
	cancel()
}

// resolveRuntimeType prefers the request, then the member or orchestrator
// record in storage, then the default.
func (e *Engine) resolveRuntimeType(req CreateAgentSessionRequest) (runtimes.Type, error) {
	if req.RuntimeType != "" {
		return runtimes.ParseType(req.RuntimeType)
	}
	if config.IsOrchestrator(req.Role) {
		if st, err := e.st.GetOrchestratorStatus(); err == nil && st.RuntimeType != "" {
			return runtimes.ParseType(st.RuntimeType)
		}
		return runtimes.DefaultType, nil
	}
	if _, member, err := e.st.FindMemberBySessionName(req.SessionName); err == nil && member.RuntimeType != "" {
		return runtimes.ParseType(member.RuntimeType)
	}
	return runtimes.DefaultType, nil
}

func (e *Engine) runtimeTypeFor(sessionName string) runtimes.Type {
	if rec, ok := e.st.GetRegisteredSession(sessionName); ok {
		if rt, err := runtimes.ParseType(rec.RuntimeType); err == nil {
			return rt
		}
	}
	if _, member, err := e.st.FindMemberBySessionName(sessionName); err == nil {
		if rt, err := runtimes.ParseType(member.RuntimeType); err == nil {
			return rt
		}
	}
	return runtimes.DefaultType
}

func (e *Engine) registerForPersistence(req CreateAgentSessionRequest, rt runtimes.Type, cwd string) {
	err := e.st.RegisterSession(store.RegisteredSession{
		SessionName: req.SessionName,
		Cwd:         cwd,
		RuntimeType: string(rt),
		Role:        req.Role,
		TeamID:      req.TeamID,
	})
	if err != nil {
		debug.LogKV("orchestrator", "persisting session failed", "session", req.SessionName, "err", err)
	}
}

// exportEnvironment injects the session identity variables before any
// interactive traffic.
func (e *Engine) exportEnvironment(sessionName, role string) {
	vars := [][2]string{
		{"TMUX_SESSION_NAME", sessionName},
		{"AGENTMUX_ROLE", role},
		{"AGENTMUX_API_URL", config.APIURL()},
	}
	for _, kv := range vars {
		if err := e.backend.SetEnvironmentVariable(sessionName, kv[0], kv[1]); err != nil {
			debug.LogKV("orchestrator", "env export failed", "session", sessionName, "key", kv[0], "err", err)
		}
	}
}

// setAgentStatus persists a status transition and publishes the change.
// Storage failures are logged, never fatal.
func (e *Engine) setAgentStatus(req CreateAgentSessionRequest, prev, next string) {
	if err := e.st.UpdateAgentStatus(req.SessionName, next); err != nil {
		debug.LogKV("orchestrator", "status update failed", "session", req.SessionName, "status", next, "err", err)
	}
	e.publish(events.AgentEvent{
		Type:          events.TypeStatusChanged,
		TeamID:        req.TeamID,
		MemberID:      req.MemberID,
		SessionName:   req.SessionName,
		PreviousValue: prev,
		NewValue:      next,
		ChangedField:  events.FieldAgentStatus,
	})
}

// publish fills in member identity from persistence before handing the event
// to the bus. Subscription templates render {memberName}; a session with no
// team record falls back to its session name.
func (e *Engine) publish(ev events.AgentEvent) {
	if e.bus == nil {
		return
	}
	if ev.MemberName == "" && ev.SessionName != "" {
		if team, member, err := e.st.FindMemberBySessionName(ev.SessionName); err == nil {
			ev.MemberName = member.Name
			if ev.MemberID == "" {
				ev.MemberID = member.ID
			}
			if ev.TeamID == "" {
				ev.TeamID = team.ID
			}
		}
		if ev.MemberName == "" {
			ev.MemberName = ev.SessionName
		}
	}
	e.bus.Publish(ev)
}

func (e *Engine) killQuietly(sessionName string) {
	if err := e.backend.KillSession(sessionName); err != nil {
		debug.LogKV("orchestrator", "forced cleanup kill failed", "session", sessionName, "err", err)
	}
}

func (e *Engine) cancelled(req CreateAgentSessionRequest, start time.Time) CreateAgentSessionResult {
	e.setAgentStatus(req, string(events.StatusActivating), string(events.StatusInactive))
	return CreateAgentSessionResult{
		SessionName: req.SessionName,
		Error:       fmt.Sprintf("registration cancelled after %.1fs", time.Since(start).Seconds()),
	}
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
