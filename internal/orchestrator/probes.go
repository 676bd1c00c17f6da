package orchestrator

import (
	"context"
	"time"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/events"
	"github.com/stevehuang0115/agentmux/internal/termtext"
)

// HealthStatus is the checkAgentHealth result.
type HealthStatus struct {
	Running   bool      `json:"running"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// WaitForAgentReady blocks until the session's pane shows an idle prompt or
// the timeout elapses. It combines polling with a data-stream subscription:
// a prompt shape in streamed output wakes the wait early, and a capturePane
// re-check defeats false positives from partially delivered chunks.
func (e *Engine) WaitForAgentReady(ctx context.Context, sessionName string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = e.timing.AgentReadyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hint := make(chan struct{}, 1)
	unsub, err := e.backend.OnData(sessionName, func(chunk []byte) {
		if termtext.PromptStreamRe.Match(chunk) {
			select {
			case hint <- struct{}{}:
			default:
			}
		}
	})
	if err != nil {
		debug.LogKV("orchestrator", "ready wait without stream hints", "session", sessionName, "err", err)
	} else {
		defer unsub()
	}

	ticker := time.NewTicker(e.timing.AgentReadyPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-hint:
		case <-ticker.C:
		}
		pane, err := e.backend.CapturePane(sessionName, 20)
		if err != nil {
			continue
		}
		if termtext.IsAtPrompt(pane) {
			return true
		}
	}
}

// CheckAgentHealth races a session-exists probe against the timeout. A probe
// that cannot answer in time reports not running.
func (e *Engine) CheckAgentHealth(ctx context.Context, sessionName, role string, timeout time.Duration) HealthStatus {
	if timeout <= 0 {
		timeout = e.timing.HealthProbeTimeout
	}

	exists := make(chan bool, 1)
	go func() {
		exists <- e.backend.SessionExists(sessionName)
	}()

	hs := HealthStatus{Timestamp: time.Now().UTC()}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
		debug.LogKV("orchestrator", "health probe timed out", "session", sessionName)
	case running := <-exists:
		hs.Running = running
	}

	hs.Status = e.agentStatusFor(sessionName, role)
	return hs
}

func (e *Engine) agentStatusFor(sessionName, role string) string {
	if config.IsOrchestrator(role) || sessionName == config.OrchestratorSessionName {
		if st, err := e.st.GetOrchestratorStatus(); err == nil && st.AgentStatus != "" {
			return st.AgentStatus
		}
		return string(events.StatusInactive)
	}
	if _, member, err := e.st.FindMemberBySessionName(sessionName); err == nil && member.AgentStatus != "" {
		return member.AgentStatus
	}
	return string(events.StatusInactive)
}
